package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/stylebook/internal/auth"
	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/services"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// AppointmentServiceInterface defines the admin appointment contract.
type AppointmentServiceInterface interface {
	List(ctx context.Context, month string, limit, page int) ([]*models.AppointmentDetails, error)
	ListServices(ctx context.Context) ([]*models.Service, error)
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]services.StalePendingAppointment, error)
	UpdateStatus(ctx context.Context, actor, id string, target models.AppointmentStatus) (*models.AppointmentDetails, error)
	Update(ctx context.Context, actor, id string, in services.AppointmentUpdate) (*models.AppointmentDetails, error)
	Delete(ctx context.Context, actor, id string) error
}

// ClientServiceInterface defines the admin client contract.
type ClientServiceInterface interface {
	List(ctx context.Context) ([]*models.ClientSummary, error)
	Update(ctx context.Context, actor, id, name, phone string) (*models.Client, error)
	Merge(ctx context.Context, actor, sourceID, targetID string) (int64, error)
	Delete(ctx context.Context, actor, id string) error
}

// AdminHandler handles the staff-only appointment, client and catalog endpoints.
// Routes are mounted behind AuthMiddleware and RequireAdmin.
type AdminHandler struct {
	appointments AppointmentServiceInterface
	clients      ClientServiceInterface
	logger       *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(appointments AppointmentServiceInterface, clients ClientServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		appointments: appointments,
		clients:      clients,
		logger:       logger,
	}
}

// ListServices handles GET /api/admin/services
func (h *AdminHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.appointments.ListServices(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toServiceResponses(list))
}

// actor returns the authenticated admin's email for audit entries.
func actor(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.Subject
	}
	return ""
}

// pathID reads and validates the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if _, err := uuid.Parse(id); err != nil {
		pkghttp.WriteBadRequest(w, "id must be a valid UUID")
		return "", false
	}
	return id, true
}
