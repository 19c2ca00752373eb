package order

import "context"

// Repository persists orders. Transition is a conditional state change:
// it succeeds only while the order's current status still equals from,
// otherwise it fails with ErrInvalidState without modifying the row.
// This is the serialization point for concurrent cancel/settle attempts.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	FindByIdempotency(ctx context.Context, userID, key string) (*Order, error)
	Transition(ctx context.Context, id string, from, to Status, paymentID string) error
}
