package payment

import "context"

// Repository persists payment records. Insert enforces the one-payment-
// per-order invariant and fails with ErrConflict when a record for the
// same order already exists, regardless of its status.
type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	GetByOrder(ctx context.Context, orderID string) (*Payment, error)
}
