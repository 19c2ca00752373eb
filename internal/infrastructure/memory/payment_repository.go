package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/minimart/storefront/internal/domain/payment"
)

type PaymentRepository struct {
	mu      sync.RWMutex
	byOrder map[string]*domain.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		byOrder: make(map[string]*domain.Payment),
	}
}

// Insert rejects a second payment for the same order with ErrConflict.
func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" || p.OrderID == "" {
		return fmt.Errorf("payment repository: id and order id are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[p.OrderID]; exists {
		return domain.ErrConflict
	}
	r.byOrder[p.OrderID] = p.Clone()
	return nil
}

func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}
