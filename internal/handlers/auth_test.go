package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/stylebook/internal/handlers"
	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/ratelimit"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

func newAuthHandler(t *testing.T, svc handlers.AuthServiceInterface) *handlers.AuthHandler {
	t.Helper()
	resolver, err := pkghttp.NewClientIPResolver([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	return handlers.NewAuthHandler(svc, resolver, discardLogger())
}

func TestLogin_Success(t *testing.T) {
	var gotIP, gotEmail string
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
			gotIP, gotEmail = ip, email
			return &models.LoginResult{Token: "access_token_123", ExpiresIn: 43200}, nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.20")

	w := httptest.NewRecorder()
	newAuthHandler(t, mockAuth).Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(43200), resp.ExpiresIn)
	assert.Equal(t, "198.51.100.20", gotIP, "client IP comes from the trusted proxy chain")
	assert.Equal(t, "admin@example.com", gotEmail)
}

func TestLogin_AuthenticationFailed(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
			return nil, models.ErrUnauthorized
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "admin@example.com",
		Password: "wrongpassword",
	})
	w := httptest.NewRecorder()
	newAuthHandler(t, mockAuth).Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_BackoffLocked(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
			return nil, &ratelimit.LimitError{Limiter: "login", RetryAfter: 1500 * time.Millisecond}
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	w := httptest.NewRecorder()
	newAuthHandler(t, mockAuth).Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
	assert.Equal(t, "2", w.Header().Get("Retry-After"), "Retry-After rounds up to whole seconds")
}

func TestLogin_InternalError(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
			return nil, errors.Join(models.ErrInternalServer, errors.New("db down"))
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	w := httptest.NewRecorder()
	newAuthHandler(t, mockAuth).Login(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestLogin_InvalidRequest(t *testing.T) {
	called := false
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
			called = true
			return nil, models.ErrUnauthorized
		},
	}
	h := newAuthHandler(t, mockAuth)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing password", body: handlers.LoginRequest{Email: "admin@example.com"}},
		{name: "invalid email", body: handlers.LoginRequest{Email: "not-an-email", Password: "x"}},
		{name: "not json", body: "just a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Login(w, handlers.NewTestRequest(t, "POST", "/api/auth/login", tt.body))
			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
	assert.False(t, called)
}
