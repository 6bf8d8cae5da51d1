package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/eventpass/backend/internal/models"
)

type contextKey string

const (
	ctxIdentityKey contextKey = "identity"
	ctxRoleKey     contextKey = "role"
)

// TokenValidator resolves a bearer token to an identity and role.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (models.Identity, string, error)
}

// BearerAuth validates the Bearer JWT and sets the caller's identity and
// role into request context.
func BearerAuth(tv TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or malformed Authorization header")
				return
			}
			id, role, err := tv.ValidateToken(r.Context(), raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id, role)))
		})
	}
}

// RequireRole rejects callers whose token does not carry role. It must run
// after BearerAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromCtx(r.Context()) != role {
				writeError(w, http.StatusForbidden, "unauthorized", "requires the "+role+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromCtx returns the authenticated identity, or "" if none.
func IdentityFromCtx(ctx context.Context) models.Identity {
	id, _ := ctx.Value(ctxIdentityKey).(models.Identity)
	return id
}

// RoleFromCtx returns the authenticated role, or "" if none.
func RoleFromCtx(ctx context.Context) string {
	role, _ := ctx.Value(ctxRoleKey).(string)
	return role
}

// WithIdentity returns a context carrying the given identity and role.
func WithIdentity(ctx context.Context, id models.Identity, role string) context.Context {
	ctx = context.WithValue(ctx, ctxIdentityKey, id)
	return context.WithValue(ctx, ctxRoleKey, role)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
