package cart

import (
	"context"
	"errors"
	"fmt"

	"velora_back_end/internal/models"
)

var (
	ErrInsufficientStock = errors.New("stock insuffisant")
	ErrProductNotFound   = errors.New("produit introuvable")
)

// Store : persistance des paniers. Update applique fn sur les lignes
// courantes de façon atomique par panier (aucune mutation concurrente ne
// peut observer un état intermédiaire, ni écraser celle-ci).
type Store interface {
	CartID(ctx context.Context, userID string) (string, error)
	Lines(ctx context.Context, cartID string) ([]models.CartLine, error)
	Update(ctx context.Context, cartID string, fn func([]models.CartLine) ([]models.CartLine, error)) ([]models.CartLine, error)
}

// Catalog : collaborateur externe, lecture produit seule.
type Catalog interface {
	Get(ctx context.Context, productID string) (*models.Product, error)
}

// Service : panier côté serveur, source de vérité unique (le front ne garde
// qu'un cache invalidé à chaque mutation).
type Service struct {
	store   Store
	catalog Catalog
}

func NewService(store Store, catalog Catalog) *Service {
	return &Service{store: store, catalog: catalog}
}

// Get renvoie l'identifiant du panier (créé au premier appel) et ses lignes.
func (s *Service) Get(ctx context.Context, userID string) (string, []models.CartLine, error) {
	cartID, err := s.store.CartID(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("résolution panier de %s: %w", userID, err)
	}
	lines, err := s.store.Lines(ctx, cartID)
	if err != nil {
		return "", nil, fmt.Errorf("lecture panier %s: %w", cartID, err)
	}
	return cartID, lines, nil
}

// Add fusionne la quantité dans la ligne existante du produit (un produit =
// une ligne, invariant du panier) après validation du stock : quantité
// existante + demandée ≤ stock catalogue, sinon ErrInsufficientStock.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) ([]models.CartLine, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantité invalide: %d", qty)
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, ErrProductNotFound
	}

	cartID, err := s.store.CartID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("résolution panier de %s: %w", userID, err)
	}

	return s.store.Update(ctx, cartID, func(lines []models.CartLine) ([]models.CartLine, error) {
		existing := 0
		for _, l := range lines {
			if l.ProductID == productID {
				existing = l.Quantity
				break
			}
		}
		if existing+qty > product.Stock {
			return nil, ErrInsufficientStock
		}
		return mergeLine(lines, productID, existing+qty), nil
	})
}

// UpdateLine remplace la quantité d'une ligne; qty ≤ 0 supprime la ligne.
// Même contrat qu'Add : produit connu du catalogue, quantité ≤ stock.
func (s *Service) UpdateLine(ctx context.Context, userID, productID string, qty int) ([]models.CartLine, error) {
	cartID, err := s.store.CartID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("résolution panier de %s: %w", userID, err)
	}

	if qty <= 0 {
		return s.store.Update(ctx, cartID, func(lines []models.CartLine) ([]models.CartLine, error) {
			return removeLine(lines, productID), nil
		})
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, ErrProductNotFound
	}

	return s.store.Update(ctx, cartID, func(lines []models.CartLine) ([]models.CartLine, error) {
		if qty > product.Stock {
			return nil, ErrInsufficientStock
		}
		return mergeLine(lines, productID, qty), nil
	})
}

// Remove supprime la ligne du produit.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]models.CartLine, error) {
	cartID, err := s.store.CartID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("résolution panier de %s: %w", userID, err)
	}

	return s.store.Update(ctx, cartID, func(lines []models.CartLine) ([]models.CartLine, error) {
		return removeLine(lines, productID), nil
	})
}

// Clear vide toutes les lignes. Le panier lui-même survit.
func (s *Service) Clear(ctx context.Context, userID string) error {
	cartID, err := s.store.CartID(ctx, userID)
	if err != nil {
		return fmt.Errorf("résolution panier de %s: %w", userID, err)
	}

	_, err = s.store.Update(ctx, cartID, func([]models.CartLine) ([]models.CartLine, error) {
		return nil, nil
	})
	return err
}

// Drain lit puis vide les lignes en une seule unité atomique. C'est
// l'opération dont dépend l'orchestrateur de fulfillment.
func (s *Service) Drain(ctx context.Context, cartID string) ([]models.CartLine, error) {
	var drained []models.CartLine
	_, err := s.store.Update(ctx, cartID, func(lines []models.CartLine) ([]models.CartLine, error) {
		drained = lines
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain panier %s: %w", cartID, err)
	}
	return drained, nil
}

// Lines expose la lecture seule pour l'orchestrateur.
func (s *Service) Lines(ctx context.Context, cartID string) ([]models.CartLine, error) {
	return s.store.Lines(ctx, cartID)
}

// Enrich construit la vue front des lignes avec les infos catalogue du moment.
func (s *Service) Enrich(ctx context.Context, lines []models.CartLine) ([]models.CartLineView, error) {
	views := make([]models.CartLineView, 0, len(lines))
	for _, line := range lines {
		product, err := s.catalog.Get(ctx, line.ProductID)
		if err != nil {
			// Produit retiré du catalogue : la ligne reste affichable a minima
			views = append(views, models.CartLineView{ProductID: line.ProductID, Quantity: line.Quantity})
			continue
		}
		view := models.CartLineView{
			ProductID: line.ProductID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  line.Quantity,
			Stock:     product.Stock,
		}
		if len(product.ImageURLs) > 0 {
			view.ImageURL = product.ImageURLs[0]
		}
		views = append(views, view)
	}
	return views, nil
}

func mergeLine(lines []models.CartLine, productID string, qty int) []models.CartLine {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = qty
			return lines
		}
	}
	return append(lines, models.CartLine{ProductID: productID, Quantity: qty})
}

func removeLine(lines []models.CartLine, productID string) []models.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	return out
}
