package routes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/stylebook/internal/auth"
	"github.com/BradenHooton/stylebook/internal/handlers"
	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/ratelimit"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
	"github.com/BradenHooton/stylebook/pkg/logger"
)

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

type stubAdmins struct{}

func (stubAdmins) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	if email == "owner@example.com" {
		return &models.AdminUser{Email: email, Role: models.RoleAdmin, Active: true}, nil
	}
	return nil, models.ErrNotFound
}

func newTestRouter(t *testing.T, health HealthChecker, publicReads int) (http.Handler, *auth.TokenManager) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver, err := pkghttp.NewClientIPResolver(pkghttp.DefaultTrustedProxies)
	require.NoError(t, err)
	tm := auth.NewTokenManager("routes-test-secret-with-32-bytes!!", time.Hour)

	public := handlers.NewPublicHandler(handlers.PublicHandlerConfig{
		Booking:        &handlers.MockBookingService{},
		Suggestions:    &handlers.MockSuggestionService{},
		BookingLimiter: ratelimit.NewWindowLimiter(ratelimit.WindowConfig{Name: "booking", PerMinute: 5, PerHour: 10}),
		AILimiter:      ratelimit.NewWindowLimiter(ratelimit.WindowConfig{Name: "ai", PerMinute: 5, PerHour: 10}),
		AIGate:         ratelimit.NewGate("ai", 1),
		Resolver:       resolver,
		MaxImageBytes:  1 << 20,
		Logger:         log,
		AuditLogger:    logger.NewAuditLogger(log),
	})

	router := chi.NewRouter()
	RegisterRoutes(router, Dependencies{
		PublicHandler:       public,
		AuthHandler:         handlers.NewAuthHandler(&handlers.MockAuthService{}, resolver, log),
		AdminHandler:        handlers.NewAdminHandler(&handlers.MockAppointmentService{}, &handlers.MockClientService{}, log),
		TokenManager:        tm,
		AdminCache:          auth.NewAdminCache(time.Minute),
		AdminUsers:          stubAdmins{},
		Resolver:            resolver,
		PublicReadPerMinute: publicReads,
		Health:              health,
	})
	return router, tm
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_AdminRequiresToken(t *testing.T) {
	router, tm := newTestRouter(t, stubHealth{}, 10)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/admin/clients", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tm.GenerateAccessToken("owner@example.com", models.RoleAdmin)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/clients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(router, req).Code)

	stranger, err := tm.GenerateAccessToken("someone@example.com", models.RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/services", nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)
}

func TestRoutes_PublicReadsAreRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, stubHealth{}, 2)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/public/services", nil)
		req.RemoteAddr = "203.0.113.9:1000"
		assert.Equal(t, http.StatusOK, serve(router, req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/public/services", nil)
	req.RemoteAddr = "203.0.113.9:1000"
	assert.Equal(t, http.StatusTooManyRequests, serve(router, req).Code)
}

func TestRoutes_Health(t *testing.T) {
	up, _ := newTestRouter(t, stubHealth{}, 10)
	assert.Equal(t, http.StatusOK, serve(up, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	down, _ := newTestRouter(t, stubHealth{err: errors.New("no pool")}, 10)
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestRoutes_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, stubHealth{}, 10)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
