package identity

import (
	"context"
	"strings"

	domain "github.com/minimart/storefront/internal/domain/identity"
)

// StaticVerifier resolves opaque bearer tokens from a fixed table.
// Token issuance and real verification live in the external auth
// service; this stands in for it in local and test deployments.
type StaticVerifier struct {
	tokens map[string]domain.Identity
}

func NewStaticVerifier(tokens map[string]domain.Identity) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	_ = ctx
	id, ok := v.tokens[token]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return id, nil
}

// ParseTokens reads "token:user:role,token:user:role" pairs, the format
// used by the AUTH_TOKENS environment variable.
func ParseTokens(s string) map[string]domain.Identity {
	tokens := make(map[string]domain.Identity)
	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		role := domain.RoleCustomer
		if len(parts) > 2 && parts[2] != "" {
			role = domain.Role(parts[2])
		}
		tokens[parts[0]] = domain.Identity{UserID: parts[1], Role: role}
	}
	return tokens
}
