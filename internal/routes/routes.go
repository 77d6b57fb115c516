package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/stylebook/internal/auth"
	"github.com/BradenHooton/stylebook/internal/handlers"
	"github.com/BradenHooton/stylebook/internal/metrics"
	"github.com/BradenHooton/stylebook/internal/middleware"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds everything the router needs.
type Dependencies struct {
	PublicHandler       *handlers.PublicHandler
	AuthHandler         *handlers.AuthHandler
	AdminHandler        *handlers.AdminHandler
	TokenManager        *auth.TokenManager
	AdminCache          *auth.AdminCache
	AdminUsers          auth.AdminUserLookup
	Resolver            *pkghttp.ClientIPResolver
	PublicReadPerMinute int
	Health              HealthChecker
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	publicReads := middleware.RateLimitByClientIP(deps.Resolver, middleware.RateLimitConfig{
		Name:              "public_read",
		RequestsPerMinute: deps.PublicReadPerMinute,
	})

	router.Get("/health", healthHandler(deps.Health))
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		// Public routes - no authentication required.
		// Booking and AI apply their own limiters inside the handler.
		r.Route("/public", func(r chi.Router) {
			r.Post("/appointments", deps.PublicHandler.CreateAppointment)
			r.Post("/ai/haircut-suggestions", deps.PublicHandler.SuggestHaircut)

			r.Group(func(r chi.Router) {
				r.Use(publicReads)
				r.Get("/appointments/occupied", deps.PublicHandler.ListOccupied)
				r.Get("/services", deps.PublicHandler.ListServices)
			})
		})

		// Login is guarded by the backoff limiter in AuthService.
		r.Post("/auth/login", deps.AuthHandler.Login)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthMiddleware(deps.TokenManager))
			r.Use(auth.RequireAdmin(deps.AdminCache, deps.AdminUsers))

			r.Get("/appointments", deps.AdminHandler.ListAppointments)
			r.Get("/appointments/stale-pending", deps.AdminHandler.ListStalePending)
			r.Patch("/appointments/{id}/status", deps.AdminHandler.UpdateAppointmentStatus)
			r.Put("/appointments/{id}", deps.AdminHandler.UpdateAppointment)
			r.Delete("/appointments/{id}", deps.AdminHandler.DeleteAppointment)

			r.Get("/clients", deps.AdminHandler.ListClients)
			r.Post("/clients/merge", deps.AdminHandler.MergeClients)
			r.Put("/clients/{id}", deps.AdminHandler.UpdateClient)
			r.Delete("/clients/{id}", deps.AdminHandler.DeleteClient)

			r.Get("/services", deps.AdminHandler.ListServices)
		})
	})
}

func healthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
