package saga

import (
	"context"
	"errors"
	"sync"
	"testing"

	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	"github.com/minimart/storefront/internal/infrastructure/memory"
)

type countingRecorder struct {
	mu              sync.Mutex
	compensations   map[string]int
	reconciliations int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{compensations: make(map[string]int)}
}

func (r *countingRecorder) IncCompensation(trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensations[trigger]++
}

func (r *countingRecorder) IncReconciliation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciliations++
}

type brokenCatalog struct {
	*memory.Catalog
	failing map[string]error
}

func (b *brokenCatalog) AdjustStock(ctx context.Context, id string, delta int) error {
	if err, ok := b.failing[id]; ok {
		return err
	}
	return b.Catalog.AdjustStock(ctx, id, delta)
}

func TestReturnStock_IncrementsAll(t *testing.T) {
	catalog := memory.NewCatalog()
	catalog.Seed(
		domcatalog.Product{ID: "p1", Stock: 3},
		domcatalog.Product{ID: "p2", Stock: 0},
	)
	rec := newCountingRecorder()
	c := NewCompensator(catalog, rec)

	c.ReturnStock(context.Background(), "cancel", []StockItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 5},
	})

	if got := catalog.Stock("p1"); got != 5 {
		t.Errorf("expected p1 stock 5, got %d", got)
	}
	if got := catalog.Stock("p2"); got != 5 {
		t.Errorf("expected p2 stock 5, got %d", got)
	}
	if rec.compensations["cancel"] != 2 {
		t.Errorf("expected 2 recorded compensations, got %d", rec.compensations["cancel"])
	}
	if rec.reconciliations != 0 {
		t.Errorf("expected no reconciliation work, got %d", rec.reconciliations)
	}
}

func TestReturnStock_ContinuesPastFailures(t *testing.T) {
	inner := memory.NewCatalog()
	inner.Seed(
		domcatalog.Product{ID: "p1", Stock: 0},
		domcatalog.Product{ID: "p3", Stock: 0},
	)
	catalog := &brokenCatalog{
		Catalog: inner,
		failing: map[string]error{"p2": errors.New("connection reset")},
	}
	rec := newCountingRecorder()
	c := NewCompensator(catalog, rec)

	c.ReturnStock(context.Background(), "create_failed", []StockItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p3", Quantity: 1},
	})

	// The broken middle item must not strand the one after it.
	if got := inner.Stock("p1"); got != 1 {
		t.Errorf("expected p1 stock 1, got %d", got)
	}
	if got := inner.Stock("p3"); got != 1 {
		t.Errorf("expected p3 stock 1, got %d", got)
	}
	if rec.compensations["create_failed"] != 2 {
		t.Errorf("expected 2 compensations, got %d", rec.compensations["create_failed"])
	}
	if rec.reconciliations != 1 {
		t.Errorf("expected 1 reconciliation entry, got %d", rec.reconciliations)
	}
}

func TestReturnStock_SurvivesCancelledContext(t *testing.T) {
	catalog := memory.NewCatalog()
	catalog.Seed(domcatalog.Product{ID: "p1", Stock: 0})
	c := NewCompensator(catalog, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Compensation is owed regardless of the caller's cancellation.
	c.ReturnStock(ctx, "cancel", []StockItem{{ProductID: "p1", Quantity: 4}})

	if got := catalog.Stock("p1"); got != 4 {
		t.Errorf("expected stock 4, got %d", got)
	}
}
