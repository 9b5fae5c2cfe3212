package payement

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"velora_back_end/internal/fulfillment"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Fulfiller honore un paiement confirmé, de façon idempotente.
type Fulfiller interface {
	Fulfill(ctx context.Context, userID, cartID, paymentRef string) (fulfillment.Result, error)
}

type WebhookHandler struct {
	Fulfiller Fulfiller
}

func NewWebhookHandler(f Fulfiller) *WebhookHandler {
	return &WebhookHandler{Fulfiller: f}
}

// ✅ Webhook Stripe
// Toute réponse 500 provoque une redélivrance par Stripe: on ne renvoie 500
// que sur les erreurs transitoires, jamais sur un paiement déjà honoré.
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event

	if secret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("❌ JSON invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
			return
		}
	} else {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			log.Println("❌ Signature Stripe invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
			return
		}
	}

	log.Printf("📥 Événement Stripe reçu : %s", event.Type)

	if event.Type != "checkout.session.completed" {
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		c.Status(http.StatusOK)
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Println("❌ Erreur décodage CheckoutSession:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Événement invalide"})
		return
	}

	userID := sess.Metadata["user_id"]
	cartID := sess.Metadata["cart_id"]
	if userID == "" || cartID == "" {
		log.Println("⚠️ Métadonnées incomplètes, session", sess.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Métadonnées incomplètes"})
		return
	}

	result, err := h.Fulfiller.Fulfill(c.Request.Context(), userID, cartID, sess.ID)
	switch {
	case err == nil && result == fulfillment.Complete:
		log.Printf("✅ Commande honorée pour session %s", sess.ID)
		c.Status(http.StatusOK)
	case result == fulfillment.AlreadyFulfilled:
		log.Printf("🔁 Session %s déjà honorée, on ignore.", sess.ID)
		c.Status(http.StatusOK)
	case errors.Is(err, fulfillment.ErrInsufficientStock):
		// Redélivrer ne changera rien: on acquitte et on trace pour le support
		log.Printf("🚨 Stock insuffisant pour session payée %s: %v", sess.ID, err)
		c.Status(http.StatusOK)
	default:
		log.Printf("❌ Échec transitoire session %s: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Échec traitement, redélivrance attendue"})
	}
}
