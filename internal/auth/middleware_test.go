package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/stylebook/internal/models"
)

// MockAdminUserLookup is a function-field mock of AdminUserLookup.
type MockAdminUserLookup struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.AdminUser, error)
	calls          int32
}

func (m *MockAdminUserLookup) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func adminChain(tm *TokenManager, cache *AdminCache, users AdminUserLookup) http.Handler {
	return AuthMiddleware(tm)(RequireAdmin(cache, users)(okHandler()))
}

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/appointments", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func activeAdmin(email string) *models.AdminUser {
	return &models.AdminUser{ID: "u1", Email: email, Role: models.RoleAdmin, Active: true}
}

func TestAuthMiddleware_RejectsMissingAndMalformedHeaders(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)
	h := AuthMiddleware(tm)(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireAdmin_ActiveAdminAllowedAndCached(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)
	cache := NewAdminCache(time.Minute)
	users := &MockAdminUserLookup{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.AdminUser, error) {
			assert.Equal(t, "admin@example.com", email)
			return activeAdmin(email), nil
		},
	}
	token, err := tm.GenerateAccessToken("Admin@Example.com", models.RoleAdmin)
	require.NoError(t, err)

	h := adminChain(tm, cache, users)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest(token))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&users.calls), "lookup should be cached across requests")
}

func TestRequireAdmin_NonAdminRoleClaim(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)
	users := &MockAdminUserLookup{}
	token, err := tm.GenerateAccessToken("staff@example.com", models.RoleStaff)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	adminChain(tm, NewAdminCache(time.Minute), users).ServeHTTP(w, bearerRequest(token))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&users.calls), "role claim is checked before the lookup")
}

func TestRequireAdmin_DeactivatedOrMissingUser(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)

	tests := []struct {
		name string
		user *models.AdminUser
		err  error
	}{
		{name: "inactive", user: &models.AdminUser{Email: "admin@example.com", Role: models.RoleAdmin, Active: false}},
		{name: "demoted", user: &models.AdminUser{Email: "admin@example.com", Role: models.RoleStaff, Active: true}},
		{name: "deleted", err: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &MockAdminUserLookup{
				GetByEmailFunc: func(ctx context.Context, email string) (*models.AdminUser, error) {
					return tt.user, tt.err
				},
			}
			token, err := tm.GenerateAccessToken("admin@example.com", models.RoleAdmin)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			adminChain(tm, NewAdminCache(time.Minute), users).ServeHTTP(w, bearerRequest(token))
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestRequireAdmin_LookupErrorIsServerError(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)
	users := &MockAdminUserLookup{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.AdminUser, error) {
			return nil, errors.New("db unavailable")
		},
	}
	token, err := tm.GenerateAccessToken("admin@example.com", models.RoleAdmin)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	adminChain(tm, NewAdminCache(time.Minute), users).ServeHTTP(w, bearerRequest(token))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireAdmin_WithoutClaims(t *testing.T) {
	w := httptest.NewRecorder()
	RequireAdmin(NewAdminCache(time.Minute), &MockAdminUserLookup{})(okHandler()).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)

	token, err := tm.GenerateAccessToken("  Admin@Example.com ", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Subject)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	other := NewTokenManager("a-different-secret-of-enough-length", time.Hour)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-bytes-long!!", -time.Minute)

	token, err := tm.GenerateAccessToken("admin@example.com", models.RoleAdmin)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}
