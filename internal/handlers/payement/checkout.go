package payement

import (
	"log"
	"net/http"
	"os"

	"velora_back_end/internal/cart"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
)

type CheckoutHandler struct {
	Cart *cart.Service
}

func NewCheckoutHandler(svc *cart.Service) *CheckoutHandler {
	return &CheckoutHandler{Cart: svc}
}

// 💳 POST /api/checkout/session
// Crée une session Stripe Checkout à partir du panier courant. Les métadonnées
// user_id et cart_id permettent au webhook de retrouver le panier à honorer.
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	userID := c.GetString("user_id")
	email := c.GetString("email")
	if userID == "" || email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	ctx := c.Request.Context()

	cartID, lines, err := h.Cart.Get(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Panier vide"})
		return
	}

	// Prix et stock relus depuis le catalogue, jamais depuis le client
	views, err := h.Cart.Enrich(ctx, lines)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture catalogue"})
		return
	}

	var lineItems []*stripe.CheckoutSessionLineItemParams
	for _, v := range views {
		if v.Stock < v.Quantity {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Stock insuffisant",
				"product":   v.Name,
				"available": v.Stock,
				"requested": v.Quantity,
			})
			return
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("eur"),
				// Arrondi, pas troncature : 19.99 vaut 1999 centimes, pas 1998.
				UnitAmount: stripe.Int64(centimes(v.Price)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(v.Name),
				},
			},
			Quantity: stripe.Int64(int64(v.Quantity)),
		})
	}

	frontURL := os.Getenv("FRONTEND_URL")
	if frontURL == "" {
		frontURL = "http://localhost:5173"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:     lineItems,
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(frontURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(frontURL + "/checkout/cancel"),
		Metadata: map[string]string{
			"user_id": userID,
			"cart_id": cartID,
			"email":   email,
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		log.Printf("❌ Erreur Stripe: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur création session de paiement"})
		return
	}

	total := calcTotal(views)
	log.Printf("💳 Session Checkout créée: %s (%.2f€) pour %s", sess.ID, total, email)

	c.JSON(http.StatusOK, gin.H{
		"sessionId":   sess.ID,
		"url":         sess.URL,
		"amount":      total,
		"currency":    "eur",
		"items_count": len(views),
	})
}
