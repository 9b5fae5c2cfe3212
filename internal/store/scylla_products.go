package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"velora_back_end/internal/database"
	"velora_back_end/internal/fulfillment"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Nombre d'essais du décrément conditionnel avant d'abandonner
// (contention LWT sur la même ligne produit).
const stockCASRetries = 5

var ErrStockContention = errors.New("stock trop disputé, réessayez")

// ScyllaProducts : catalogue + registre de stock sur le keyspace products.
type ScyllaProducts struct{}

func NewScyllaProducts() *ScyllaProducts {
	return &ScyllaProducts{}
}

// Get lit un produit par son identifiant.
func (s *ScyllaProducts) Get(ctx context.Context, productID string) (*models.Product, error) {
	session, err := database.GetProductsSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace products: %w", err)
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return nil, fmt.Errorf("ID produit invalide %q: %w", productID, err)
	}

	var product models.Product
	err = session.Query(`SELECT product_id, name, slug, description, price, stock, image_urls, is_active
		FROM products WHERE product_id = ?`, gocql.UUID(pid)).WithContext(ctx).Scan(
		&product.ID, &product.Name, &product.Slug, &product.Description,
		&product.Price, &product.Stock, &product.ImageURLs, &product.IsActive)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, fulfillment.ErrProductNotFound
		}
		return nil, fmt.Errorf("lecture produit %s: %w", productID, err)
	}

	return &product, nil
}

// List renvoie les produits actifs du catalogue.
func (s *ScyllaProducts) List(ctx context.Context, limit int) ([]models.Product, error) {
	session, err := database.GetProductsSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace products: %w", err)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	iter := session.Query(`SELECT product_id, name, slug, description, price, stock, image_urls, is_active
		FROM products LIMIT ?`, limit).WithContext(ctx).Iter()

	var products []models.Product
	var p models.Product
	for iter.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Stock, &p.ImageURLs, &p.IsActive) {
		if p.IsActive {
			products = append(products, p)
		}
		p = models.Product{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("lecture catalogue: %w", err)
	}
	return products, nil
}

// DecrementStock retire qty du stock du produit, atomiquement vis-à-vis des
// décréments concurrents : UPDATE conditionnel (LWT) sur la valeur lue, en
// boucle bornée. Le stock ne passe jamais en négatif; un stock insuffisant
// renvoie fulfillment.ErrInsufficientStock sans rien modifier.
func (s *ScyllaProducts) DecrementStock(ctx context.Context, productID string, qty int) error {
	session, err := database.GetProductsSession()
	if err != nil {
		return fmt.Errorf("connexion keyspace products: %w", err)
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return fmt.Errorf("ID produit invalide %q: %w", productID, err)
	}
	productUUID := gocql.UUID(pid)

	for attempt := 0; attempt < stockCASRetries; attempt++ {
		var stock int
		if err := session.Query(`SELECT stock FROM products WHERE product_id = ?`, productUUID).
			WithContext(ctx).Scan(&stock); err != nil {
			if errors.Is(err, gocql.ErrNotFound) {
				return fulfillment.ErrProductNotFound
			}
			return fmt.Errorf("lecture stock %s: %w", productID, err)
		}

		if stock < qty {
			return fulfillment.ErrInsufficientStock
		}

		var prevStock int
		applied, err := session.Query(`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			stock-qty, time.Now(), productUUID, stock).WithContext(ctx).ScanCAS(&prevStock)
		if err != nil {
			return fmt.Errorf("décrément stock %s: %w", productID, err)
		}
		if applied {
			s.recordMovement(ctx, session, productUUID, "sale", -qty, stock, stock-qty)
			return nil
		}
		// Un décrément concurrent est passé avant nous, on relit
	}

	return ErrStockContention
}

// IncrementStock restaure qty (compensation de fulfillment ou restock admin).
func (s *ScyllaProducts) IncrementStock(ctx context.Context, productID string, qty int) error {
	session, err := database.GetProductsSession()
	if err != nil {
		return fmt.Errorf("connexion keyspace products: %w", err)
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return fmt.Errorf("ID produit invalide %q: %w", productID, err)
	}
	productUUID := gocql.UUID(pid)

	for attempt := 0; attempt < stockCASRetries; attempt++ {
		var stock int
		if err := session.Query(`SELECT stock FROM products WHERE product_id = ?`, productUUID).
			WithContext(ctx).Scan(&stock); err != nil {
			return fmt.Errorf("lecture stock %s: %w", productID, err)
		}

		var prevStock int
		applied, err := session.Query(`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			stock+qty, time.Now(), productUUID, stock).WithContext(ctx).ScanCAS(&prevStock)
		if err != nil {
			return fmt.Errorf("incrément stock %s: %w", productID, err)
		}
		if applied {
			s.recordMovement(ctx, session, productUUID, "return", qty, stock, stock+qty)
			return nil
		}
	}

	return ErrStockContention
}

// SetStock fixe le stock à une valeur absolue (restock / ajustement admin).
// Retourne le stock précédent.
func (s *ScyllaProducts) SetStock(ctx context.Context, productID string, newStock int, movementType, reason, userID string) (int, error) {
	if newStock < 0 {
		return 0, fmt.Errorf("le stock ne peut pas être négatif")
	}

	session, err := database.GetProductsSession()
	if err != nil {
		return 0, fmt.Errorf("connexion keyspace products: %w", err)
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return 0, fmt.Errorf("ID produit invalide %q: %w", productID, err)
	}
	productUUID := gocql.UUID(pid)

	for attempt := 0; attempt < stockCASRetries; attempt++ {
		var stock int
		if err := session.Query(`SELECT stock FROM products WHERE product_id = ?`, productUUID).
			WithContext(ctx).Scan(&stock); err != nil {
			if errors.Is(err, gocql.ErrNotFound) {
				return 0, fulfillment.ErrProductNotFound
			}
			return 0, fmt.Errorf("lecture stock %s: %w", productID, err)
		}

		var prevStock int
		applied, err := session.Query(`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			newStock, time.Now(), productUUID, stock).WithContext(ctx).ScanCAS(&prevStock)
		if err != nil {
			return 0, fmt.Errorf("mise à jour stock %s: %w", productID, err)
		}
		if applied {
			movement := models.StockMovement{
				ID:        gocql.TimeUUID(),
				ProductID: productUUID,
				Type:      movementType,
				Quantity:  newStock - stock,
				PrevStock: stock,
				NewStock:  newStock,
				Reason:    reason,
				UserID:    userID,
				CreatedAt: time.Now(),
			}
			if err := session.Query(`INSERT INTO stock_movements (id, product_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				movement.ID, movement.ProductID, movement.Type, movement.Quantity,
				movement.PrevStock, movement.NewStock, movement.Reason, movement.UserID,
				movement.CreatedAt).WithContext(ctx).Exec(); err != nil {
				log.Printf("⚠️ Erreur enregistrement mouvement stock: %v", err)
			}
			return stock, nil
		}
	}

	return 0, ErrStockContention
}

// recordMovement trace le mouvement de stock, en best-effort.
func (s *ScyllaProducts) recordMovement(ctx context.Context, session *gocql.Session, productID gocql.UUID, movementType string, qty, prevStock, newStock int) {
	movement := models.StockMovement{
		ID:        gocql.TimeUUID(),
		ProductID: productID,
		Type:      movementType,
		Quantity:  qty,
		PrevStock: prevStock,
		NewStock:  newStock,
		CreatedAt: time.Now(),
	}

	if err := session.Query(`INSERT INTO stock_movements (id, product_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		movement.ID, movement.ProductID, movement.Type, movement.Quantity,
		movement.PrevStock, movement.NewStock, movement.Reason, movement.UserID,
		movement.CreatedAt).WithContext(ctx).Exec(); err != nil {
		log.Printf("⚠️ Erreur enregistrement mouvement stock: %v", err)
	}
}
