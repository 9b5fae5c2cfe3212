package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"velora_back_end/internal/models"
)

// Mock Store : Update sérialisé par mutex, comme l'adaptateur Redis WATCH/MULTI.
type mockStore struct {
	mu    sync.Mutex
	ids   map[string]string
	lines map[string][]models.CartLine
}

func newMockStore() *mockStore {
	return &mockStore{
		ids:   make(map[string]string),
		lines: make(map[string][]models.CartLine),
	}
}

func (m *mockStore) CartID(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[userID]
	if !ok {
		id = "cart-" + userID
		m.ids[userID] = id
	}
	return id, nil
}

func (m *mockStore) Lines(ctx context.Context, cartID string) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CartLine, len(m.lines[cartID]))
	copy(out, m.lines[cartID])
	return out, nil
}

func (m *mockStore) Update(ctx context.Context, cartID string, fn func([]models.CartLine) ([]models.CartLine, error)) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := make([]models.CartLine, len(m.lines[cartID]))
	copy(current, m.lines[cartID])
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	m.lines[cartID] = next
	return next, nil
}

// Mock Catalog
type mockCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newMockCatalog(products map[string]*models.Product) *mockCatalog {
	return &mockCatalog{products: products}
}

func (m *mockCatalog) Get(ctx context.Context, productID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, errors.New("introuvable")
	}
	cp := *p
	return &cp, nil
}

func newTestService(stock int) (*Service, *mockStore) {
	store := newMockStore()
	catalog := newMockCatalog(map[string]*models.Product{
		"prod-a": {Name: "Produit A", Price: 10.00, Stock: stock},
		"prod-b": {Name: "Produit B", Price: 25.00, Stock: stock},
	})
	return NewService(store, catalog), store
}

func TestAdd_MergesExistingLine(t *testing.T) {
	svc, _ := newTestService(10)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "user-1", "prod-a", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	lines, err := svc.Add(ctx, "user-1", "prod-a", 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// Un produit = une ligne
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", lines[0].Quantity)
	}
}

func TestAdd_RejectsBeyondStock(t *testing.T) {
	svc, store := newTestService(5)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "user-1", "prod-a", 4); err != nil {
		t.Fatalf("add: %v", err)
	}

	// 4 + 2 > 5 : refusé, panier inchangé
	_, err := svc.Add(ctx, "user-1", "prod-a", 2)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	lines, _ := store.Lines(ctx, "cart-user-1")
	if len(lines) != 1 || lines[0].Quantity != 4 {
		t.Errorf("expected cart unchanged at qty 4, got %+v", lines)
	}
}

func TestAdd_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(5)

	_, err := svc.Add(context.Background(), "user-1", "prod-x", 1)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestAdd_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(5)

	if _, err := svc.Add(context.Background(), "user-1", "prod-a", 0); err == nil {
		t.Error("expected error for qty 0")
	}
	if _, err := svc.Add(context.Background(), "user-1", "prod-a", -3); err == nil {
		t.Error("expected error for negative qty")
	}
}

func TestUpdateLine_ZeroDeletes(t *testing.T) {
	svc, _ := newTestService(10)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "user-1", "prod-a", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, "user-1", "prod-b", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	lines, err := svc.UpdateLine(ctx, "user-1", "prod-a", 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductID != "prod-b" {
		t.Errorf("expected only prod-b left, got %+v", lines)
	}
}

func TestUpdateLine_RejectsBeyondStock(t *testing.T) {
	svc, store := newTestService(5)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "user-1", "prod-a", 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := svc.UpdateLine(ctx, "user-1", "prod-a", 6)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	lines, _ := store.Lines(ctx, "cart-user-1")
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Errorf("expected cart unchanged at qty 2, got %+v", lines)
	}
}

func TestUpdateLine_UnknownProduct(t *testing.T) {
	svc, store := newTestService(5)
	ctx := context.Background()

	_, err := svc.UpdateLine(ctx, "user-1", "prod-x", 1)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	lines, _ := store.Lines(ctx, "cart-user-1")
	if len(lines) != 0 {
		t.Errorf("expected empty cart, got %+v", lines)
	}
}

func TestRemove(t *testing.T) {
	svc, _ := newTestService(10)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "user-1", "prod-a", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	lines, err := svc.Remove(ctx, "user-1", "prod-a")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected empty cart, got %+v", lines)
	}
}

func TestDrain_ReturnsAndClears(t *testing.T) {
	svc, store := newTestService(10)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "user-1", "prod-a", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	cartID, _ := store.CartID(ctx, "user-1")

	drained, err := svc.Drain(ctx, cartID)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(drained) != 1 || drained[0].Quantity != 2 {
		t.Errorf("expected drained line qty 2, got %+v", drained)
	}

	remaining, _ := svc.Lines(ctx, cartID)
	if len(remaining) != 0 {
		t.Errorf("expected empty cart after drain, got %+v", remaining)
	}

	// Le panier conserve son identifiant après le drain
	again, _ := store.CartID(ctx, "user-1")
	if again != cartID {
		t.Errorf("cart ID changed after drain: %s != %s", again, cartID)
	}
}

func TestGet_CreatesStableCartID(t *testing.T) {
	svc, _ := newTestService(10)
	ctx := context.Background()

	id1, _, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	id2, _, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id1 == "" || id1 != id2 {
		t.Errorf("expected stable cart ID, got %q / %q", id1, id2)
	}
}

func TestAdd_Concurrent(t *testing.T) {
	svc, store := newTestService(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Add(ctx, "user-1", "prod-a", 1); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	lines, _ := store.Lines(ctx, "cart-user-1")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 50 {
		t.Errorf("expected quantity 50, got %d", lines[0].Quantity)
	}
}

func TestEnrich(t *testing.T) {
	svc, _ := newTestService(7)
	ctx := context.Background()

	views, err := svc.Enrich(ctx, []models.CartLine{
		{ProductID: "prod-a", Quantity: 2},
		{ProductID: "prod-disparu", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].Name != "Produit A" || views[0].Price != 10.00 || views[0].Stock != 7 {
		t.Errorf("unexpected view: %+v", views[0])
	}
	// Produit retiré du catalogue : vue minimale
	if views[1].ProductID != "prod-disparu" || views[1].Name != "" {
		t.Errorf("unexpected fallback view: %+v", views[1])
	}
}
