package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"velora_back_end/internal/models"
)

// Mock Products
type mockProducts struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newMockProducts(products ...*models.Product) *mockProducts {
	m := &mockProducts{products: make(map[string]*models.Product)}
	for _, p := range products {
		m.products[p.ID.String()] = p
	}
	return m
}

func (m *mockProducts) Get(ctx context.Context, productID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProducts) DecrementStock(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

func (m *mockProducts) IncrementStock(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock += qty
	return nil
}

func (m *mockProducts) stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

// Mock Orders
type mockOrders struct {
	mu         sync.Mutex
	claims     map[string]string
	inserted   []models.Order
	failInsert bool
}

func newMockOrders() *mockOrders {
	return &mockOrders{claims: make(map[string]string)}
}

func (m *mockOrders) ExistsByPayment(ctx context.Context, paymentRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[paymentRef]
	return ok, nil
}

func (m *mockOrders) ClaimPayment(ctx context.Context, paymentRef, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[paymentRef]; ok {
		return false, nil
	}
	m.claims[paymentRef] = orderID
	return true, nil
}

func (m *mockOrders) ReleasePayment(ctx context.Context, paymentRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, paymentRef)
	return nil
}

func (m *mockOrders) Insert(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return errors.New("insertion indisponible")
	}
	m.inserted = append(m.inserted, *order)
	return nil
}

func (m *mockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

// Mock Carts
type mockCarts struct {
	mu    sync.Mutex
	lines map[string][]models.CartLine
}

func newMockCarts() *mockCarts {
	return &mockCarts{lines: make(map[string][]models.CartLine)}
}

func (m *mockCarts) set(cartID string, lines []models.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[cartID] = lines
}

func (m *mockCarts) Lines(ctx context.Context, cartID string) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CartLine, len(m.lines[cartID]))
	copy(out, m.lines[cartID])
	return out, nil
}

func (m *mockCarts) Drain(ctx context.Context, cartID string) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.lines[cartID]
	delete(m.lines, cartID)
	return out, nil
}

func (m *mockCarts) len(cartID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines[cartID])
}

// Mock Locks
type mockLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMockLocks() *mockLocks {
	return &mockLocks{held: make(map[string]bool)}
}

func (m *mockLocks) Acquire(ctx context.Context, paymentRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[paymentRef] {
		return false, nil
	}
	m.held[paymentRef] = true
	return true, nil
}

func (m *mockLocks) Release(ctx context.Context, paymentRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, paymentRef)
	return nil
}

func product(id string, price float64, stock int) *models.Product {
	var uid [16]byte
	copy(uid[:], id)
	p := &models.Product{Name: "Produit " + id, Price: price, Stock: stock}
	copy(p.ID[:], uid[:])
	return p
}

func TestFulfill_Success(t *testing.T) {
	pA := product("prod-a", 10.00, 5)
	pB := product("prod-b", 25.00, 3)
	products := newMockProducts(pA, pB)
	orders := newMockOrders()
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{
		{ProductID: pA.ID.String(), Quantity: 2},
		{ProductID: pB.ID.String(), Quantity: 1},
	})

	svc := NewService(products, orders, carts, newMockLocks())

	result, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result != Complete {
		t.Errorf("expected Complete, got %s", result)
	}

	if orders.count() != 1 {
		t.Fatalf("expected 1 order, got %d", orders.count())
	}
	order := orders.inserted[0]
	if order.Total != 45.00 {
		t.Errorf("expected total 45.00, got %.2f", order.Total)
	}
	if order.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", order.UserID)
	}
	if order.PaymentIntentID != "cs_test_1" {
		t.Errorf("expected cs_test_1, got %s", order.PaymentIntentID)
	}
	if order.Status != models.OrderStatusProcessing {
		t.Errorf("expected status %s, got %s", models.OrderStatusProcessing, order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	if got := products.stock(pA.ID.String()); got != 3 {
		t.Errorf("expected stock A 3, got %d", got)
	}
	if got := products.stock(pB.ID.String()); got != 2 {
		t.Errorf("expected stock B 2, got %d", got)
	}

	if carts.len("cart-1") != 0 {
		t.Error("expected cart drained")
	}
}

func TestFulfill_PriceSnapshot(t *testing.T) {
	p := product("prod-a", 19.99, 10)
	products := newMockProducts(p)
	orders := newMockOrders()
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{{ProductID: p.ID.String(), Quantity: 2}})

	svc := NewService(products, orders, carts, newMockLocks())
	if _, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1"); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	// Le prix catalogue au moment du fulfillment est figé dans la ligne
	item := orders.inserted[0].Items[0]
	if item.Price != 19.99 {
		t.Errorf("expected snapshot price 19.99, got %.2f", item.Price)
	}
	if item.Name != p.Name {
		t.Errorf("expected snapshot name %q, got %q", p.Name, item.Name)
	}

	// Un changement de prix ultérieur n'affecte pas la commande enregistrée
	products.products[p.ID.String()].Price = 5.00
	if orders.inserted[0].Items[0].Price != 19.99 {
		t.Error("snapshot price mutated by catalog change")
	}
}

func TestFulfill_Redelivery(t *testing.T) {
	p := product("prod-a", 10.00, 5)
	products := newMockProducts(p)
	orders := newMockOrders()
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{{ProductID: p.ID.String(), Quantity: 2}})

	svc := NewService(products, orders, carts, newMockLocks())

	result, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err != nil || result != Complete {
		t.Fatalf("first fulfill: %s, %v", result, err)
	}

	// Redélivrance du même événement
	result, err = svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result != AlreadyFulfilled {
		t.Errorf("expected AlreadyFulfilled, got %s", result)
	}

	if orders.count() != 1 {
		t.Errorf("expected 1 order after redelivery, got %d", orders.count())
	}
	if got := products.stock(p.ID.String()); got != 3 {
		t.Errorf("expected stock 3 after redelivery, got %d", got)
	}
}

func TestFulfill_EmptyCartRedelivery(t *testing.T) {
	// Panier déjà vidé mais claim absent (ex: fulfillment interrompu après
	// le drain d'une instance précédente) : on ne crée pas de commande vide.
	products := newMockProducts(product("prod-a", 10.00, 5))
	orders := newMockOrders()
	carts := newMockCarts()

	svc := NewService(products, orders, carts, newMockLocks())

	result, err := svc.Fulfill(context.Background(), "user-1", "cart-absent", "cs_test_9")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result != AlreadyFulfilled {
		t.Errorf("expected AlreadyFulfilled, got %s", result)
	}
	if orders.count() != 0 {
		t.Errorf("expected no order, got %d", orders.count())
	}
}

func TestFulfill_ConcurrentRedelivery(t *testing.T) {
	p := product("prod-a", 10.00, 100)
	products := newMockProducts(p)
	orders := newMockOrders()
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{{ProductID: p.ID.String(), Quantity: 1}})

	svc := NewService(products, orders, carts, newMockLocks())

	const deliveries = 20
	var complete, already atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
			if err != nil {
				t.Errorf("fulfill: %v", err)
				return
			}
			switch result {
			case Complete:
				complete.Add(1)
			case AlreadyFulfilled:
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	if complete.Load() != 1 {
		t.Errorf("expected exactly 1 Complete, got %d", complete.Load())
	}
	if already.Load() != deliveries-1 {
		t.Errorf("expected %d AlreadyFulfilled, got %d", deliveries-1, already.Load())
	}
	if orders.count() != 1 {
		t.Errorf("expected 1 order, got %d", orders.count())
	}
	if got := products.stock(p.ID.String()); got != 99 {
		t.Errorf("expected stock 99, got %d", got)
	}
}

func TestFulfill_InsufficientStockRollback(t *testing.T) {
	pA := product("prod-a", 10.00, 5)
	pB := product("prod-b", 25.00, 0) // épuisé entre checkout et webhook
	products := newMockProducts(pA, pB)
	orders := newMockOrders()
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{
		{ProductID: pA.ID.String(), Quantity: 2},
		{ProductID: pB.ID.String(), Quantity: 1},
	})
	locks := newMockLocks()

	svc := NewService(products, orders, carts, locks)

	result, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if result != Failed {
		t.Errorf("expected Failed, got %s", result)
	}

	// Aucune commande, stock A restauré, panier intact
	if orders.count() != 0 {
		t.Errorf("expected no order, got %d", orders.count())
	}
	if got := products.stock(pA.ID.String()); got != 5 {
		t.Errorf("expected stock A restored to 5, got %d", got)
	}
	if carts.len("cart-1") != 2 {
		t.Error("expected cart untouched")
	}

	// Le verrou est relâché : un réapprovisionnement puis une redélivrance
	// doivent aboutir.
	products.products[pB.ID.String()].Stock = 1
	result, err = svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err != nil || result != Complete {
		t.Fatalf("fulfill after restock: %s, %v", result, err)
	}
}

func TestFulfill_ClaimRaceLoser(t *testing.T) {
	p := product("prod-a", 10.00, 5)
	products := newMockProducts(p)
	orders := newMockOrders()
	// Référence déjà réclamée par un fulfillment concurrent sur une autre
	// instance (le verrou Redis local n'a rien vu passer).
	orders.claims["cs_test_1"] = "other-order"
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{{ProductID: p.ID.String(), Quantity: 2}})

	// ExistsByPayment répond false au premier appel pour simuler la fenêtre
	// de course : on passe par un wrapper.
	svc := NewService(products, &racingOrders{mockOrders: orders}, carts, newMockLocks())

	result, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result != AlreadyFulfilled {
		t.Errorf("expected AlreadyFulfilled, got %s", result)
	}
	// Décrément compensé
	if got := products.stock(p.ID.String()); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}
	if orders.count() != 0 {
		t.Errorf("expected no order inserted, got %d", orders.count())
	}
}

// racingOrders masque le claim existant à la garde d'idempotence pour forcer
// le chemin "course perdue au claim".
type racingOrders struct {
	*mockOrders
}

func (r *racingOrders) ExistsByPayment(ctx context.Context, paymentRef string) (bool, error) {
	return false, nil
}

func TestFulfill_InsertFailureCompensates(t *testing.T) {
	p := product("prod-a", 10.00, 5)
	products := newMockProducts(p)
	orders := newMockOrders()
	orders.failInsert = true
	carts := newMockCarts()
	carts.set("cart-1", []models.CartLine{{ProductID: p.ID.String(), Quantity: 2}})

	svc := NewService(products, orders, carts, newMockLocks())

	result, err := svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err == nil {
		t.Fatal("expected error")
	}
	if result != Failed {
		t.Errorf("expected Failed, got %s", result)
	}

	// Claim relâché, stock restauré : la redélivrance repart de zéro
	if got := products.stock(p.ID.String()); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}
	if _, claimed := orders.claims["cs_test_1"]; claimed {
		t.Error("expected claim released after insert failure")
	}

	orders.failInsert = false
	result, err = svc.Fulfill(context.Background(), "user-1", "cart-1", "cs_test_1")
	if err != nil || result != Complete {
		t.Fatalf("fulfill after recovery: %s, %v", result, err)
	}
}

func TestFulfill_ConcurrentDistinctPayments(t *testing.T) {
	// Plusieurs paiements distincts qui se partagent le même produit :
	// jamais de survente, même sous contention.
	p := product("prod-a", 10.00, 10)
	products := newMockProducts(p)
	orders := newMockOrders()
	carts := newMockCarts()

	const buyers = 25
	for i := 0; i < buyers; i++ {
		carts.set(fmt.Sprintf("cart-%d", i), []models.CartLine{{ProductID: p.ID.String(), Quantity: 1}})
	}

	svc := NewService(products, orders, carts, newMockLocks())

	var complete atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, _ := svc.Fulfill(context.Background(), fmt.Sprintf("user-%d", i),
				fmt.Sprintf("cart-%d", i), fmt.Sprintf("cs_test_%d", i))
			if result == Complete {
				complete.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if complete.Load() != 10 {
		t.Errorf("expected 10 fulfilled orders, got %d", complete.Load())
	}
	if got := products.stock(p.ID.String()); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
	if orders.count() != 10 {
		t.Errorf("expected 10 orders, got %d", orders.count())
	}
}
