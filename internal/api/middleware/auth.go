package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/service"
)

const PrincipalKey contextKey = "principal"

// TokenValidator resolves a bearer token to a principal.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.Principal, error)
}

// BearerAuth authenticates requests with a bearer token and stores the
// resolved principal in the request context.
func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			principal, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the authenticated principal, or nil outside the auth
// group.
func GetPrincipal(ctx context.Context) *service.Principal {
	principal, _ := ctx.Value(PrincipalKey).(*service.Principal)
	return principal
}
