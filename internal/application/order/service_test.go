package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	domcart "github.com/minimart/storefront/internal/domain/cart"
	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	domorder "github.com/minimart/storefront/internal/domain/order"
	"github.com/minimart/storefront/internal/infrastructure/memory"
)

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("order-%d", g.n)
}

// flakyCatalog wraps the memory catalog and injects per-product errors
// on decrement, to force mid-saga failures the pre-check cannot see.
type flakyCatalog struct {
	*memory.Catalog
	mu         sync.Mutex
	failOnDrop map[string]error
}

func newFlakyCatalog(inner *memory.Catalog) *flakyCatalog {
	return &flakyCatalog{
		Catalog:    inner,
		failOnDrop: make(map[string]error),
	}
}

func (f *flakyCatalog) AdjustStock(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	err, ok := f.failOnDrop[id]
	f.mu.Unlock()
	if ok && delta < 0 {
		return err
	}
	return f.Catalog.AdjustStock(ctx, id, delta)
}

type fixture struct {
	catalog *memory.Catalog
	flaky   *flakyCatalog
	carts   *memory.CartRepository
	orders  *memory.OrderRepository
	svc     *Service
}

func newFixture(t *testing.T, products ...domcatalog.Product) *fixture {
	t.Helper()

	catalog := memory.NewCatalog()
	catalog.Seed(products...)
	flaky := newFlakyCatalog(catalog)

	f := &fixture{
		catalog: catalog,
		flaky:   flaky,
		carts:   memory.NewCartRepository(),
		orders:  memory.NewOrderRepository(),
	}
	f.svc = NewService(f.orders, f.carts, flaky, &seqIDGen{}, nil)
	return f
}

func (f *fixture) fillCart(t *testing.T, userID string, lines ...domcart.Line) {
	t.Helper()
	c := domcart.New(userID)
	for _, l := range lines {
		if err := c.AddLine(l.ProductID, l.Quantity, l.UnitPrice, l.DisplayName); err != nil {
			t.Fatalf("fill cart: %v", err)
		}
	}
	if err := f.carts.Save(context.Background(), c); err != nil {
		t.Fatalf("save cart: %v", err)
	}
}

func TestCreate_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "user-1", "")
	if !errors.Is(err, domorder.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	orders, _ := f.orders.ListByUser(context.Background(), "user-1")
	if len(orders) != 0 {
		t.Errorf("no order should exist, got %d", len(orders))
	}
}

func TestCreate_Success(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000})

	o, err := f.svc.Create(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if o.Status != domorder.StatusPending {
		t.Errorf("expected pending, got %s", o.Status)
	}
	if o.TotalAmount != 2000 {
		t.Errorf("expected total 2000, got %d", o.TotalAmount)
	}
	if got := f.catalog.Stock("p1"); got != 8 {
		t.Errorf("expected stock 8, got %d", got)
	}

	c, _ := f.carts.Get(context.Background(), "user-1")
	if !c.IsEmpty() {
		t.Error("cart should be cleared after order creation")
	}
}

func TestCreate_TotalUsesPriceSnapshot(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000})

	// Catalog price changes after the line was added.
	f.catalog.Seed(domcatalog.Product{ID: "p1", Name: "Widget", Price: 9999, Stock: 10})

	o, err := f.svc.Create(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.TotalAmount != 2000 {
		t.Errorf("total must come from the add-time snapshot, got %d", o.TotalAmount)
	}
}

func TestCreate_InsufficientStock(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 1})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000})

	_, err := f.svc.Create(context.Background(), "user-1", "")
	if !errors.Is(err, domcatalog.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := f.catalog.Stock("p1"); got != 1 {
		t.Errorf("stock must be untouched, got %d", got)
	}
}

func TestCreate_ProductGone(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 5})
	f.fillCart(t, "user-1",
		domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 1000},
		domcart.Line{ProductID: "vanished", Quantity: 1, UnitPrice: 500},
	)

	_, err := f.svc.Create(context.Background(), "user-1", "")
	if !errors.Is(err, domcatalog.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for vanished product, got %v", err)
	}
	if got := f.catalog.Stock("p1"); got != 5 {
		t.Errorf("stock must be untouched, got %d", got)
	}
}

func TestCreate_CompensatesEarlierDecrements(t *testing.T) {
	f := newFixture(t,
		domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 5},
		domcatalog.Product{ID: "p2", Name: "Gadget", Price: 500, Stock: 5},
	)
	f.fillCart(t, "user-1",
		domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000},
		domcart.Line{ProductID: "p2", Quantity: 1, UnitPrice: 500},
	)

	// The pre-check sees plenty of stock; the decrement itself is
	// rejected, as happens when a concurrent order wins the race.
	f.flaky.failOnDrop["p2"] = domcatalog.ErrInsufficientStock

	_, err := f.svc.Create(context.Background(), "user-1", "")
	if !errors.Is(err, domcatalog.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := f.catalog.Stock("p1"); got != 5 {
		t.Errorf("p1 decrement must be compensated, stock %d", got)
	}
	if got := f.catalog.Stock("p2"); got != 5 {
		t.Errorf("p2 must be untouched, stock %d", got)
	}

	orders, _ := f.orders.ListByUser(context.Background(), "user-1")
	if len(orders) != 0 {
		t.Errorf("no partial order may exist, got %d", len(orders))
	}
}

func TestCreate_AmbiguousDecrementNotDoubleCompensated(t *testing.T) {
	f := newFixture(t,
		domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 5},
		domcatalog.Product{ID: "p2", Name: "Gadget", Price: 500, Stock: 5},
	)
	f.fillCart(t, "user-1",
		domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000},
		domcart.Line{ProductID: "p2", Quantity: 1, UnitPrice: 500},
	)

	// A timeout leaves the second decrement in an unknown state.
	f.flaky.failOnDrop["p2"] = context.DeadlineExceeded

	_, err := f.svc.Create(context.Background(), "user-1", "")
	if !errors.Is(err, domcatalog.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	// Only the confirmed decrement is undone; the ambiguous one is left
	// for reconciliation rather than risking a double increment.
	if got := f.catalog.Stock("p1"); got != 5 {
		t.Errorf("confirmed decrement must be compensated, stock %d", got)
	}
	if got := f.catalog.Stock("p2"); got != 5 {
		t.Errorf("ambiguous line saw no local mutation, stock %d", got)
	}
}

func TestCreate_ConcurrentBoundedByStock(t *testing.T) {
	const (
		initialStock  = 20
		totalRequests = 50
	)
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: initialStock})

	for i := 0; i < totalRequests; i++ {
		f.fillCart(t, fmt.Sprintf("user-%d", i), domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 1000})
	}

	var successCount, stockFailCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), fmt.Sprintf("user-%d", i), "")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domcatalog.ErrInsufficientStock):
				stockFailCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != initialStock {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if stockFailCount.Load() != totalRequests-initialStock {
		t.Errorf("expected %d stock failures, got %d", totalRequests-initialStock, stockFailCount.Load())
	}
	if got := f.catalog.Stock("p1"); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestCreate_LastUnitSingleWinner(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 1})
	f.fillCart(t, "user-a", domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 1000})
	f.fillCart(t, "user-b", domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 1000})

	var successCount, stockFailCount atomic.Int32
	var wg sync.WaitGroup
	for _, user := range []string{"user-a", "user-b"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), user, "")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domcatalog.ErrInsufficientStock):
				stockFailCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(user)
	}
	wg.Wait()

	if successCount.Load() != 1 || stockFailCount.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d successes and %d stock failures",
			successCount.Load(), stockFailCount.Load())
	}
}

func TestCreate_IdempotentReplay(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000})

	first, err := f.svc.Create(context.Background(), "user-1", "retry-key")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A retry with the same key must not touch stock again, even though
	// the cart was already cleared.
	second, err := f.svc.Create(context.Background(), "user-1", "retry-key")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected replayed order %s, got %s", first.ID, second.ID)
	}
	if got := f.catalog.Stock("p1"); got != 8 {
		t.Errorf("stock must be decremented exactly once, got %d", got)
	}
}

func TestCancel_ReturnsStockExactlyOnce(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 3, UnitPrice: 1000})

	o, err := f.svc.Create(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.catalog.Stock("p1"); got != 7 {
		t.Fatalf("expected stock 7 after create, got %d", got)
	}

	cancelled, err := f.svc.Cancel(context.Background(), "user-1", o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domorder.StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.catalog.Stock("p1"); got != 10 {
		t.Errorf("expected stock restored to 10, got %d", got)
	}

	if _, err := f.svc.Cancel(context.Background(), "user-1", o.ID); !errors.Is(err, domorder.ErrInvalidState) {
		t.Fatalf("second cancel: expected ErrInvalidState, got %v", err)
	}
	if got := f.catalog.Stock("p1"); got != 10 {
		t.Errorf("stock must not be double-credited, got %d", got)
	}
}

func TestCancel_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 2, UnitPrice: 1000})

	o, err := f.svc.Create(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Cancel(context.Background(), "user-1", o.ID); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly one successful cancel, got %d", successCount.Load())
	}
	if got := f.catalog.Stock("p1"); got != 10 {
		t.Errorf("expected stock restored exactly once, got %d", got)
	}
}

func TestCancel_NotOwned(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 1000})

	o, err := f.svc.Create(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), "someone-else", o.ID); !errors.Is(err, domorder.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign order, got %v", err)
	}
}

func TestGet_HidesForeignOrders(t *testing.T) {
	f := newFixture(t, domcatalog.Product{ID: "p1", Name: "Widget", Price: 1000, Stock: 10})
	f.fillCart(t, "user-1", domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 1000})

	o, err := f.svc.Create(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), "someone-else", o.ID); !errors.Is(err, domorder.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), "user-1", o.ID); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
}
