package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/stylebook/internal/models"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

// AdminUserLookup finds an admin user by normalized email.
type AdminUserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
}

// AuthMiddleware validates JWT tokens and injects user claims into context
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			// Parse Bearer token
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows the request only when the token carries the admin role and
// the subject is still an active admin. The second check goes through the
// AdminCache so the database is consulted at most once per TTL per subject.
func RequireAdmin(cache *AdminCache, users AdminUserLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Must be used after AuthMiddleware
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if claims.Role != models.RoleAdmin {
				pkghttp.WriteForbidden(w, "forbidden: insufficient permissions")
				return
			}

			subject := claims.Subject
			allowed, err := cache.IsAllowed(r.Context(), subject, func(ctx context.Context) (bool, error) {
				user, err := users.GetByEmail(ctx, NormalizeSubject(subject))
				if errors.Is(err, models.ErrNotFound) {
					return false, nil
				}
				if err != nil {
					return false, err
				}
				return user.IsAdmin(), nil
			})
			if err != nil {
				slog.Error("admin authorization lookup failed", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}
			if !allowed {
				pkghttp.WriteForbidden(w, "forbidden: insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
