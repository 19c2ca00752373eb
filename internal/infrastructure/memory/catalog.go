package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/minimart/storefront/internal/domain/catalog"
)

// Catalog is an in-memory catalog reader. AdjustStock performs the
// check and the mutation under one lock, so the conditional decrement
// is atomic with respect to concurrent callers.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]*domain.Product),
	}
}

func (c *Catalog) Seed(products ...domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		cp := p
		cp.UpdatedAt = time.Now().UTC()
		c.products[p.ID] = &cp
	}
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (c *Catalog) AdjustStock(ctx context.Context, id string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	if delta < 0 && p.Stock < -delta {
		return domain.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Stock reports the current stock level, mainly for tests and seeding checks.
func (c *Catalog) Stock(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.products[id]; ok {
		return p.Stock
	}
	return 0
}
