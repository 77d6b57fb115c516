package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/stylebook/internal/metrics"
	"github.com/BradenHooton/stylebook/internal/models"
	pkglogger "github.com/BradenHooton/stylebook/pkg/logger"
)

const (
	DefaultAppointmentPageSize = 500
	MaxAppointmentPageSize     = 500
)

// errSlotTaken marks a conflict found by the pre-check rather than the unique index.
var errSlotTaken = fmt.Errorf("%w: slot already occupied", models.ErrSlotConflict)

// AppointmentRepository defines the interface for appointment persistence
type AppointmentRepository interface {
	Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.Appointment, error)
	GetDetails(ctx context.Context, id string) (*models.AppointmentDetails, error)
	ExistsOccupying(ctx context.Context, serviceID string, at time.Time, excludeID string) (bool, error)
	Update(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.AppointmentDetails, error)
	ListOccupiedTimes(ctx context.Context, serviceID string, from, to time.Time) ([]time.Time, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.AppointmentDetails, error)
	ReassignClient(ctx context.Context, sourceID, targetID string) (int64, error)
	DeleteByClient(ctx context.Context, clientID string) (int64, error)
}

// AppointmentUpdate is an admin edit of an existing appointment.
type AppointmentUpdate struct {
	ClientName    string
	ClientPhone   string
	ServiceID     string
	AppointmentAt time.Time
	Notes         string
}

// StalePendingAppointment is a PENDING appointment nobody has confirmed yet.
type StalePendingAppointment struct {
	*models.AppointmentDetails
	MinutesPending int64
}

// AppointmentService handles the admin side of the appointment lifecycle
type AppointmentService struct {
	tx           Transactor
	catalog      ServiceCatalogRepository
	clients      ClientRepository
	appointments AppointmentRepository
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	now          func() time.Time
}

// NewAppointmentService creates a new AppointmentService
func NewAppointmentService(
	tx Transactor,
	catalog ServiceCatalogRepository,
	clients ClientRepository,
	appointments AppointmentRepository,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AppointmentService {
	return &AppointmentService{
		tx:           tx,
		catalog:      catalog,
		clients:      clients,
		appointments: appointments,
		logger:       logger,
		auditLogger:  auditLogger,
		now:          time.Now,
	}
}

// List returns appointments ordered by time. month is "" or YYYY-MM (UTC);
// page is zero-based.
func (s *AppointmentService) List(ctx context.Context, month string, limit, page int) ([]*models.AppointmentDetails, error) {
	if limit <= 0 {
		limit = DefaultAppointmentPageSize
	}
	if limit > MaxAppointmentPageSize {
		limit = MaxAppointmentPageSize
	}
	if page < 0 {
		page = 0
	}

	var from, to time.Time
	if month = strings.TrimSpace(month); month != "" {
		start, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, models.ErrInvalidMonth
		}
		from, to = start, start.AddDate(0, 1, 0)
	}

	return s.appointments.List(ctx, from, to, limit, page*limit)
}

// ListServices returns the whole catalog, inactive services included.
func (s *AppointmentService) ListServices(ctx context.Context) ([]*models.Service, error) {
	return s.catalog.List(ctx, false)
}

// ListStalePending returns PENDING appointments created at least olderThan ago.
func (s *AppointmentService) ListStalePending(ctx context.Context, olderThan time.Duration) ([]StalePendingAppointment, error) {
	if olderThan < 0 {
		olderThan = 0
	}
	now := s.now()

	list, err := s.appointments.ListStalePending(ctx, now.Add(-olderThan))
	if err != nil {
		return nil, err
	}

	stale := make([]StalePendingAppointment, 0, len(list))
	for _, a := range list {
		stale = append(stale, StalePendingAppointment{
			AppointmentDetails: a,
			MinutesPending:     int64(now.Sub(a.CreatedAt) / time.Minute),
		})
	}
	return stale, nil
}

// UpdateStatus moves an appointment through the status state machine. Moving into
// an occupying status re-checks the slot against every other appointment.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor, id string, target models.AppointmentStatus) (*models.AppointmentDetails, error) {
	var from models.AppointmentStatus
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := s.appointments.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = appt.Status

		if err := models.ValidateTransition(appt.Status, target); err != nil {
			return err
		}
		if appt.Status == target {
			return nil
		}

		if target.IsOccupying() {
			if err := s.ensureSlotFree(ctx, appt.ServiceID, appt.AppointmentAt, appt.ID); err != nil {
				return err
			}
		}

		appt.Status = target
		_, err = s.appointments.Update(ctx, appt)
		return err
	})
	if err != nil {
		return nil, s.conflictAware(err)
	}

	s.auditLogger.LogAdminAction("appointment_status_changed", actor, map[string]string{
		"appointment_id": id,
		"from":           string(from),
		"to":             string(target),
	})
	return s.appointments.GetDetails(ctx, id)
}

// Update edits client, service, time and notes. The client is resolved by phone
// and, as an explicit staff edit, takes the submitted name.
func (s *AppointmentService) Update(ctx context.Context, actor, id string, in AppointmentUpdate) (*models.AppointmentDetails, error) {
	name := strings.TrimSpace(in.ClientName)
	phone := strings.TrimSpace(in.ClientPhone)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", models.ErrBadRequest)
	}
	phoneNormalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := s.appointments.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		service, err := s.catalog.GetByID(ctx, in.ServiceID)
		if err != nil {
			return err
		}
		if !service.Active {
			return models.ErrInactiveService
		}

		at := models.TruncateToSlot(in.AppointmentAt)
		if appt.Status.IsOccupying() {
			if err := s.ensureSlotFree(ctx, service.ID, at, appt.ID); err != nil {
				return err
			}
		}

		client, err := s.clients.GetOrCreateByPhone(ctx, &models.Client{
			Name:            name,
			Phone:           phone,
			PhoneNormalized: phoneNormalized,
		})
		if err != nil {
			return fmt.Errorf("resolve client: %w", err)
		}
		if client.Name != name {
			client.Name = name
			if client, err = s.clients.Update(ctx, client); err != nil {
				return fmt.Errorf("rename client: %w", err)
			}
		}

		appt.ClientID = client.ID
		appt.ServiceID = service.ID
		appt.AppointmentAt = at
		appt.Notes = optionalText(in.Notes)
		_, err = s.appointments.Update(ctx, appt)
		return err
	})
	if err != nil {
		return nil, s.conflictAware(err)
	}

	s.auditLogger.LogAdminAction("appointment_updated", actor, map[string]string{"appointment_id": id})
	return s.appointments.GetDetails(ctx, id)
}

// Delete removes an appointment permanently.
func (s *AppointmentService) Delete(ctx context.Context, actor, id string) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.auditLogger.LogAdminAction("appointment_deleted", actor, map[string]string{"appointment_id": id})
	return nil
}

func (s *AppointmentService) ensureSlotFree(ctx context.Context, serviceID string, at time.Time, excludeID string) error {
	occupied, err := s.appointments.ExistsOccupying(ctx, serviceID, at, excludeID)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if occupied {
		return errSlotTaken
	}
	return nil
}

// conflictAware records slot conflicts by where they were detected and logs unexpected errors.
func (s *AppointmentService) conflictAware(err error) error {
	switch {
	case errors.Is(err, errSlotTaken):
		metrics.RecordBookingConflict("precheck")
		return models.ErrSlotConflict
	case errors.Is(err, models.ErrSlotConflict):
		metrics.RecordBookingConflict("constraint")
		return models.ErrSlotConflict
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInactiveService),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrBadRequest):
		return err
	}
	s.logger.Error("appointment update failed", slog.Any("error", err))
	return err
}
