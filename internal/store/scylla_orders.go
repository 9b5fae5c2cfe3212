package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// ScyllaOrders : persistance des commandes sur le keyspace orders.
//
// Tables :
//   - orders              (partition par order_id)
//   - orders_by_user      (partition par user_id, tri created_at DESC, dénormalisée)
//   - order_items         (partition par order_id)
//   - orders_by_payment   (partition par payment_intent_id — unicité du paiement)
type ScyllaOrders struct{}

func NewScyllaOrders() *ScyllaOrders {
	return &ScyllaOrders{}
}

// ExistsByPayment vérifie si une commande est déjà enregistrée pour cette
// référence de paiement (garde d'idempotence du webhook).
func (s *ScyllaOrders) ExistsByPayment(ctx context.Context, paymentRef string) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, fmt.Errorf("connexion keyspace orders: %w", err)
	}

	var orderID gocql.UUID
	err = session.Query(`SELECT order_id FROM orders_by_payment WHERE payment_intent_id = ?`, paymentRef).
		WithContext(ctx).Scan(&orderID)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lecture orders_by_payment: %w", err)
	}
	return true, nil
}

// ClaimPayment réserve la référence de paiement via INSERT IF NOT EXISTS.
// C'est la contrainte d'unicité au niveau stockage : sous livraison
// dupliquée réellement concurrente, un seul claim est appliqué.
func (s *ScyllaOrders) ClaimPayment(ctx context.Context, paymentRef string, orderID string) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, fmt.Errorf("connexion keyspace orders: %w", err)
	}

	oid, err := uuid.Parse(orderID)
	if err != nil {
		return false, fmt.Errorf("ID commande invalide %q: %w", orderID, err)
	}

	previous := make(map[string]interface{})
	applied, err := session.Query(`INSERT INTO orders_by_payment (payment_intent_id, order_id, created_at)
		VALUES (?, ?, ?) IF NOT EXISTS`, paymentRef, gocql.UUID(oid), time.Now()).
		WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return false, fmt.Errorf("claim paiement %s: %w", paymentRef, err)
	}
	return applied, nil
}

// ReleasePayment relâche un claim dont la commande n'a pas pu être insérée.
func (s *ScyllaOrders) ReleasePayment(ctx context.Context, paymentRef string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return fmt.Errorf("connexion keyspace orders: %w", err)
	}
	return session.Query(`DELETE FROM orders_by_payment WHERE payment_intent_id = ?`, paymentRef).
		WithContext(ctx).Exec()
}

// Insert écrit la commande, sa vue par utilisateur et ses lignes dans un
// batch loggé : les trois écritures finissent par s'appliquer ensemble.
func (s *ScyllaOrders) Insert(ctx context.Context, order *models.Order) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return fmt.Errorf("connexion keyspace orders: %w", err)
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(`INSERT INTO orders (order_id, user_id, total, status, payment_intent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Total, order.Status, order.PaymentIntentID, order.CreatedAt)

	batch.Query(`INSERT INTO orders_by_user (user_id, created_at, order_id, total, status, payment_intent_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.UserID, order.CreatedAt, order.ID, order.Total, order.Status, order.PaymentIntentID)

	for _, item := range order.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fmt.Errorf("ID produit invalide %q: %w", item.ProductID, err)
		}
		batch.Query(`INSERT INTO order_items (order_id, product_id, name, quantity, price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, gocql.UUID(pid), item.Name, item.Quantity, item.Price)
	}

	if err := session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("insertion commande %s: %w", order.ID, err)
	}
	return nil
}

// GetByID récupère une commande complète (avec ses lignes).
func (s *ScyllaOrders) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace orders: %w", err)
	}

	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, fmt.Errorf("ID commande invalide %q: %w", orderID, err)
	}

	var order models.Order
	err = session.Query(`SELECT order_id, user_id, total, status, payment_intent_id, created_at
		FROM orders WHERE order_id = ?`, gocql.UUID(oid)).WithContext(ctx).Scan(
		&order.ID, &order.UserID, &order.Total, &order.Status, &order.PaymentIntentID, &order.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture commande %s: %w", orderID, err)
	}

	items, err := s.itemsFor(ctx, session, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// ListByUser récupère les commandes d'un utilisateur, plus récentes d'abord.
func (s *ScyllaOrders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace orders: %w", err)
	}

	iter := session.Query(`SELECT order_id, user_id, total, status, payment_intent_id, created_at
		FROM orders_by_user WHERE user_id = ?`, userID).WithContext(ctx).Iter()

	orders, err := s.collect(ctx, session, iter)
	if err != nil {
		return nil, fmt.Errorf("lecture commandes de %s: %w", userID, err)
	}
	return orders, nil
}

// ListAll récupère les commandes pour le back-office.
func (s *ScyllaOrders) ListAll(ctx context.Context, limit int) ([]models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace orders: %w", err)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	iter := session.Query(`SELECT order_id, user_id, total, status, payment_intent_id, created_at
		FROM orders LIMIT ?`, limit).WithContext(ctx).Iter()

	orders, err := s.collect(ctx, session, iter)
	if err != nil {
		return nil, fmt.Errorf("lecture commandes: %w", err)
	}
	return orders, nil
}

// UpdateStatus écrit le nouveau statut dans les deux tables. La validation
// de la transition appartient à l'appelant (table de transitions du modèle).
func (s *ScyllaOrders) UpdateStatus(ctx context.Context, order *models.Order, status string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return fmt.Errorf("connexion keyspace orders: %w", err)
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`UPDATE orders SET status = ? WHERE order_id = ?`, status, order.ID)
	batch.Query(`UPDATE orders_by_user SET status = ? WHERE user_id = ? AND created_at = ? AND order_id = ?`,
		status, order.UserID, order.CreatedAt, order.ID)

	if err := session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("mise à jour statut %s: %w", order.ID, err)
	}
	return nil
}

func (s *ScyllaOrders) collect(ctx context.Context, session *gocql.Session, iter *gocql.Iter) ([]models.Order, error) {
	var orders []models.Order
	var order models.Order
	for iter.Scan(&order.ID, &order.UserID, &order.Total, &order.Status, &order.PaymentIntentID, &order.CreatedAt) {
		orders = append(orders, order)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.itemsFor(ctx, session, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *ScyllaOrders) itemsFor(ctx context.Context, session *gocql.Session, orderID gocql.UUID) ([]models.OrderItem, error) {
	iter := session.Query(`SELECT product_id, name, quantity, price FROM order_items WHERE order_id = ?`, orderID).
		WithContext(ctx).Iter()

	var items []models.OrderItem
	var pid gocql.UUID
	var item models.OrderItem
	for iter.Scan(&pid, &item.Name, &item.Quantity, &item.Price) {
		item.ProductID = pid.String()
		items = append(items, item)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("lecture lignes commande %s: %w", orderID, err)
	}
	return items, nil
}
