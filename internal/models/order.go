package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Statuts de commande (cycle de vie administratif).
const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

type Order struct {
	ID              gocql.UUID  `json:"id"`
	UserID          string      `json:"user_id"`
	Total           float64     `json:"total"`
	Status          string      `json:"status"`
	PaymentIntentID string      `json:"payment_intent_id"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
}

// OrderItem fige le prix unitaire au moment du paiement :
// un changement de prix catalogue ultérieur ne modifie jamais une commande.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// orderTransitions : table explicite des transitions autorisées.
// CANCELLED est atteignable depuis tout état non terminal, rien ne sort
// de DELIVERED ni de CANCELLED.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// IsValidOrderStatus vérifie qu'un statut fait partie de l'énumération.
func IsValidOrderStatus(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

// CanTransitionOrderStatus rejette les sauts illégaux (ex: DELIVERED → PENDING).
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
