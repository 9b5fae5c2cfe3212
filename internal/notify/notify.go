package notify

import (
	"context"
	"log"
	"time"

	"velora_back_end/internal/models"
	"velora_back_end/internal/utils"
)

// UserEmails résout l'adresse email d'un utilisateur.
type UserEmails interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

// EmailNotifier envoie l'email de confirmation avec la facture PDF en pièce jointe.
type EmailNotifier struct {
	Users UserEmails
}

func NewEmailNotifier(users UserEmails) *EmailNotifier {
	return &EmailNotifier{Users: users}
}

// OrderConfirmed est appelé après une livraison de commande réussie.
// Tout échec est loggé mais jamais remonté: la commande est déjà validée.
func (n *EmailNotifier) OrderConfirmed(order models.Order, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	email, err := n.Users.GetEmail(ctx, userID)
	if err != nil {
		log.Printf("❌ Email confirmation: utilisateur %s introuvable: %v", userID, err)
		return
	}

	html := utils.GenerateOrderConfirmationHTML(order)

	pdf, err := utils.GenerateInvoicePDF(order)
	if err != nil {
		// On envoie quand même la confirmation sans facture
		log.Printf("⚠️ Génération facture PDF échouée pour %s: %v", order.ID.String(), err)
		pdf = nil
	}

	if err := utils.SendConfirmationEmail(email, "✅ Confirmation de votre commande - Velora", html, pdf); err != nil {
		log.Printf("❌ Erreur envoi email confirmation à %s: %v", email, err)
		return
	}

	log.Printf("📧 Confirmation de commande envoyée à %s", email)
}
