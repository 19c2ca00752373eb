package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrUnavailable       = errors.New("catalog: unavailable")
)

// Product is the catalog's view of a sellable item. Price is int64 cents.
type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int
	UpdatedAt time.Time
}

// Reader is the boundary to the catalog service. AdjustStock with a
// negative delta must be an atomic conditional decrement: it either
// applies the full delta while stock remains sufficient, or fails with
// ErrInsufficientStock leaving stock untouched. A positive delta
// returns previously reserved stock and must not fail for capacity
// reasons.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	AdjustStock(ctx context.Context, id string, delta int) error
}
