package httptransport

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	domidentity "github.com/minimart/storefront/internal/domain/identity"
	"github.com/minimart/storefront/internal/pkg/logging"
)

// requireIdentity validates the bearer credential and injects the
// verified identity into the request context. The gateway normally does
// this in front of us; the middleware keeps the service safe when hit
// directly.
func (h *Handler) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(authorization, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeError(w, http.StatusUnauthorized, domidentity.ErrUnauthorized)
			return
		}

		id, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, domidentity.ErrUnauthorized)
			return
		}

		ctx := domidentity.ContextWith(r.Context(), id)
		logger := logging.FromContext(ctx).With(zap.String("user_id", id.UserID))
		ctx = logging.ContextWithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
