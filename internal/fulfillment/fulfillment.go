package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

var (
	ErrInsufficientStock = errors.New("stock insuffisant")
	ErrProductNotFound   = errors.New("produit introuvable")
)

// Result : issue d'une tentative de fulfillment.
type Result int

const (
	Complete Result = iota
	AlreadyFulfilled
	Failed
)

func (r Result) String() string {
	switch r {
	case Complete:
		return "complete"
	case AlreadyFulfilled:
		return "already_fulfilled"
	default:
		return "failed"
	}
}

// Products : lecture catalogue + décrément conditionnel du stock.
// DecrementStock doit être atomique vis-à-vis des décréments concurrents
// et renvoyer ErrInsufficientStock plutôt que de passer en négatif.
// IncrementStock ne sert qu'à la compensation en cas d'échec partiel.
type Products interface {
	Get(ctx context.Context, productID string) (*models.Product, error)
	DecrementStock(ctx context.Context, productID string, qty int) error
	IncrementStock(ctx context.Context, productID string, qty int) error
}

// Orders : persistance des commandes. ClaimPayment réserve la référence de
// paiement (INSERT IF NOT EXISTS) — c'est le point de commit du fulfillment
// et la contrainte d'unicité sur le payment_intent_id.
type Orders interface {
	ExistsByPayment(ctx context.Context, paymentRef string) (bool, error)
	ClaimPayment(ctx context.Context, paymentRef string, orderID string) (bool, error)
	ReleasePayment(ctx context.Context, paymentRef string) error
	Insert(ctx context.Context, order *models.Order) error
}

// Carts : lecture et vidage atomique des lignes d'un panier.
type Carts interface {
	Lines(ctx context.Context, cartID string) ([]models.CartLine, error)
	Drain(ctx context.Context, cartID string) ([]models.CartLine, error)
}

// Locks : verrou d'idempotence par référence de paiement (SetNX Redis).
// Première ligne de défense contre une livraison dupliquée concurrente.
type Locks interface {
	Acquire(ctx context.Context, paymentRef string) (bool, error)
	Release(ctx context.Context, paymentRef string) error
}

// Notifier : effets post-commit (e-mail de confirmation, facture).
// Jamais bloquant pour le résultat du fulfillment.
type Notifier interface {
	OrderConfirmed(order models.Order, userID string)
}

type Service struct {
	products Products
	orders   Orders
	carts    Carts
	locks    Locks
	notifier Notifier // optionnel
}

func NewService(products Products, orders Orders, carts Carts, locks Locks) *Service {
	return &Service{
		products: products,
		orders:   orders,
		carts:    carts,
		locks:    locks,
	}
}

// WithNotifier branche les effets post-commit (e-mail, facture PDF).
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Fulfill convertit un paiement confirmé en commande durable : création de
// la commande, décrément du stock ligne par ligne, vidage du panier.
// Effectivement exactement-une-fois par référence de paiement : toute
// redélivrance renvoie AlreadyFulfilled sans effet de bord supplémentaire.
//
// Le stockage Scylla/Redis n'offre pas de transaction multi-entités, donc
// l'atomicité est obtenue par protocole de compensation : rien ne persiste
// avant le claim de la référence de paiement, et tout décrément déjà
// appliqué est restauré si une étape ultérieure échoue.
func (s *Service) Fulfill(ctx context.Context, userID, cartID, paymentRef string) (Result, error) {
	// 1. Garde d'idempotence : commande déjà enregistrée pour ce paiement ?
	exists, err := s.orders.ExistsByPayment(ctx, paymentRef)
	if err != nil {
		return Failed, fmt.Errorf("vérification commande existante: %w", err)
	}
	if exists {
		log.Printf("🔁 Paiement %s déjà traité, on ignore", paymentRef)
		return AlreadyFulfilled, nil
	}

	// 2. Verrou en vol : une seule livraison du même paiement à la fois.
	ok, err := s.locks.Acquire(ctx, paymentRef)
	if err != nil {
		return Failed, fmt.Errorf("acquisition verrou fulfillment: %w", err)
	}
	if !ok {
		log.Printf("🔁 Fulfillment déjà en cours pour %s", paymentRef)
		return AlreadyFulfilled, nil
	}

	// 3. Panier absent ou déjà vidé = première livraison déjà passée.
	lines, err := s.carts.Lines(ctx, cartID)
	if err != nil {
		s.release(ctx, paymentRef)
		return Failed, fmt.Errorf("lecture panier %s: %w", cartID, err)
	}
	if len(lines) == 0 {
		log.Printf("🔁 Panier %s vide, paiement %s considéré comme déjà traité", cartID, paymentRef)
		return AlreadyFulfilled, nil
	}

	// 4. Prix relus au catalogue à l'instant du fulfillment (comportement
	// historique conservé : c'est le prix à la confirmation qui fait foi,
	// pas celui affiché à l'initiation du checkout).
	order := models.Order{
		ID:              gocql.UUID(uuid.New()),
		UserID:          userID,
		Status:          models.OrderStatusProcessing,
		PaymentIntentID: paymentRef,
		CreatedAt:       time.Now(),
	}
	for _, line := range lines {
		product, err := s.products.Get(ctx, line.ProductID)
		if err != nil {
			s.release(ctx, paymentRef)
			return Failed, fmt.Errorf("lecture produit %s: %w", line.ProductID, err)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
		order.Total += product.Price * float64(line.Quantity)
	}

	// 5. Décréments conditionnels; compensation totale au premier échec.
	applied := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		if err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			s.compensate(ctx, applied)
			s.release(ctx, paymentRef)
			if errors.Is(err, ErrInsufficientStock) {
				log.Printf("❌ Stock insuffisant pour %s (paiement %s), fulfillment annulé", line.ProductID, paymentRef)
				return Failed, ErrInsufficientStock
			}
			return Failed, fmt.Errorf("décrément stock %s: %w", line.ProductID, err)
		}
		applied = append(applied, line)
	}

	// 6. Point de commit : réservation de la référence de paiement.
	claimed, err := s.orders.ClaimPayment(ctx, paymentRef, order.ID.String())
	if err != nil {
		s.compensate(ctx, applied)
		s.release(ctx, paymentRef)
		return Failed, fmt.Errorf("claim paiement %s: %w", paymentRef, err)
	}
	if !claimed {
		// Course perdue contre une livraison dupliquée : l'autre a gagné.
		s.compensate(ctx, applied)
		log.Printf("🔁 Paiement %s réclamé par un fulfillment concurrent", paymentRef)
		return AlreadyFulfilled, nil
	}

	// 7. Commande + lignes.
	if err := s.orders.Insert(ctx, &order); err != nil {
		if rerr := s.orders.ReleasePayment(ctx, paymentRef); rerr != nil {
			log.Printf("⚠️ Libération claim %s impossible: %v", paymentRef, rerr)
		}
		s.compensate(ctx, applied)
		s.release(ctx, paymentRef)
		return Failed, fmt.Errorf("insertion commande: %w", err)
	}

	// 8. Vidage du panier. La commande est commitée : un échec ici est
	// journalisé mais ne remet rien en cause (le claim protège les
	// redélivrances).
	if _, err := s.carts.Drain(ctx, cartID); err != nil {
		log.Printf("⚠️ Vidage panier %s après commande %s impossible: %v", cartID, order.ID, err)
	}

	log.Printf("✅ Commande %s créée (%.2f€, %d articles) pour %s", order.ID, order.Total, len(order.Items), userID)

	if s.notifier != nil {
		go s.notifier.OrderConfirmed(order, userID)
	}

	return Complete, nil
}

// compensate restaure les décréments déjà appliqués (ordre inverse).
func (s *Service) compensate(ctx context.Context, applied []models.CartLine) {
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		if err := s.products.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("⚠️ Compensation stock impossible pour %s (+%d): %v", line.ProductID, line.Quantity, err)
		}
	}
}

func (s *Service) release(ctx context.Context, paymentRef string) {
	if err := s.locks.Release(ctx, paymentRef); err != nil {
		log.Printf("⚠️ Libération verrou %s impossible: %v", paymentRef, err)
	}
}
