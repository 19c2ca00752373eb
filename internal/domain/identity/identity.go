package identity

import (
	"context"
	"errors"
)

var ErrUnauthorized = errors.New("identity: could not validate credentials")

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

type Identity struct {
	UserID string
	Role   Role
}

// Verifier validates a bearer credential. Identity issuance lives in an
// external auth service; this side only checks tokens it is handed.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type ctxKey struct{}

func ContextWith(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
