package cart

import "context"

// Repository stores one cart per user. Get returns an empty cart for a
// user that never added anything; Clear keeps the cart around with no
// lines so quantity accumulation survives within a session.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Clear(ctx context.Context, userID string) error
}
