package payement

import (
	"math"

	"velora_back_end/internal/models"
)

// calcTotal calcule le montant total d'un panier
func calcTotal(items []models.CartLineView) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// centimes convertit un prix en euros vers des centimes Stripe.
func centimes(price float64) int64 {
	return int64(math.Round(price * 100))
}
