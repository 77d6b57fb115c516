package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/ratelimit"
	"github.com/BradenHooton/stylebook/internal/services"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
	"github.com/BradenHooton/stylebook/pkg/logger"
)

// tooBusyRetryAfter is the Retry-After hint sent when the AI gate is saturated.
const tooBusyRetryAfter = 5 * time.Second

// BookingServiceInterface defines the public booking contract.
type BookingServiceInterface interface {
	Create(ctx context.Context, req services.BookingRequest) (*models.AppointmentDetails, error)
	ListOccupied(ctx context.Context, serviceID string, date time.Time) ([]time.Time, error)
	ListActiveServices(ctx context.Context) ([]*models.Service, error)
}

// SuggestionServiceInterface defines the haircut suggestion contract.
type SuggestionServiceInterface interface {
	Suggest(ctx context.Context, imageDataURL string) (*services.HaircutSuggestion, error)
}

// PublicHandler serves the unauthenticated booking site.
type PublicHandler struct {
	booking        BookingServiceInterface
	suggestions    SuggestionServiceInterface
	bookingLimiter ratelimit.Limiter
	aiLimiter      ratelimit.Limiter
	aiGate         *ratelimit.Gate
	resolver       *pkghttp.ClientIPResolver
	maxImageBytes  int64
	logger         *slog.Logger
	auditLogger    *logger.AuditLogger
}

// PublicHandlerConfig groups the collaborators of PublicHandler.
type PublicHandlerConfig struct {
	Booking        BookingServiceInterface
	Suggestions    SuggestionServiceInterface
	BookingLimiter ratelimit.Limiter
	AILimiter      ratelimit.Limiter
	AIGate         *ratelimit.Gate
	Resolver       *pkghttp.ClientIPResolver
	MaxImageBytes  int
	Logger         *slog.Logger
	AuditLogger    *logger.AuditLogger
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(cfg PublicHandlerConfig) *PublicHandler {
	return &PublicHandler{
		booking:        cfg.Booking,
		suggestions:    cfg.Suggestions,
		bookingLimiter: cfg.BookingLimiter,
		aiLimiter:      cfg.AILimiter,
		aiGate:         cfg.AIGate,
		resolver:       cfg.Resolver,
		// base64 inflates by 4/3; leave room for the JSON envelope.
		maxImageBytes: int64(cfg.MaxImageBytes)*4/3 + 4096,
		logger:        cfg.Logger,
		auditLogger:   cfg.AuditLogger,
	}
}

// CreateAppointment handles POST /api/public/appointments
func (h *PublicHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := decodeAndValidate(w, r, maxBodyBytes, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := h.resolver.FromRequest(r)
	if !h.admit(w, r.Context(), h.bookingLimiter, ip) {
		return
	}

	appt, err := h.booking.Create(r.Context(), services.BookingRequest{
		ClientName:    req.ClientName,
		ClientPhone:   req.ClientPhone,
		ServiceID:     req.ServiceID,
		AppointmentAt: req.AppointmentAt,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toPublicAppointment(appt))
}

// ListOccupied handles GET /api/public/appointments/occupied?serviceId=&date=YYYY-MM-DD
func (h *PublicHandler) ListOccupied(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	serviceID := strings.TrimSpace(q.Get("serviceId"))
	if _, err := uuid.Parse(serviceID); err != nil {
		pkghttp.WriteBadRequest(w, "serviceId must be a valid UUID")
		return
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(q.Get("date")))
	if err != nil {
		pkghttp.WriteBadRequest(w, "date must use the YYYY-MM-DD format")
		return
	}

	slots, err := h.booking.ListOccupied(r.Context(), serviceID, date)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]OccupiedSlotResponse, 0, len(slots))
	for _, at := range slots {
		resp = append(resp, OccupiedSlotResponse{ServiceID: serviceID, AppointmentAt: at.UTC()})
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ListServices handles GET /api/public/services
func (h *PublicHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.booking.ListActiveServices(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toServiceResponses(list))
}

// SuggestHaircut handles POST /api/public/ai/haircut-suggestions
//
// Flow:
// 1. Resolve the client IP and admit it through the AI limiter (check + record)
// 2. Take a permit on the AI gate without waiting; saturated -> 429
// 3. Run the suggestion while holding the permit, released on every exit path
func (h *PublicHandler) SuggestHaircut(w http.ResponseWriter, r *http.Request) {
	var req HaircutSuggestionRequest
	if err := decodeAndValidate(w, r, h.maxImageBytes, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := h.resolver.FromRequest(r)
	if !h.admit(w, r.Context(), h.aiLimiter, ip) {
		return
	}

	var result *services.HaircutSuggestion
	err := h.aiGate.Do(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = h.suggestions.Suggest(ctx, req.ImageDataURL)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrTooBusy) {
			h.auditLogger.LogAdmissionRejected("ai_gate", ip, tooBusyRetryAfter)
		}
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toHaircutSuggestionResponse(result))
}

// admit runs limiter.Admit for ip and writes the 429 response when rejected.
func (h *PublicHandler) admit(w http.ResponseWriter, ctx context.Context, limiter ratelimit.Limiter, ip string) bool {
	err := limiter.Admit(ctx, ip)
	if err == nil {
		return true
	}

	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) {
		h.auditLogger.LogAdmissionRejected(limitErr.Limiter, ip, limitErr.RetryAfter)
	}
	writeServiceError(w, h.logger, err)
	return false
}
