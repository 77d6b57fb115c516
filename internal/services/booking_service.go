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

// Transactor runs fn inside a database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ServiceCatalogRepository defines the lookups booking needs from the service catalog
type ServiceCatalogRepository interface {
	GetByID(ctx context.Context, id string) (*models.Service, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Service, error)
}

// BookingRequest is a public booking after JSON decoding.
type BookingRequest struct {
	ClientName    string
	ClientPhone   string
	ServiceID     string
	AppointmentAt time.Time
	Notes         string
}

// BookingService creates public bookings and answers slot availability.
type BookingService struct {
	tx           Transactor
	catalog      ServiceCatalogRepository
	clients      ClientRepository
	appointments AppointmentRepository
	notifier     Notifier
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	now          func() time.Time
}

// NewBookingService creates a new BookingService. A nil notifier disables notifications.
func NewBookingService(
	tx Transactor,
	catalog ServiceCatalogRepository,
	clients ClientRepository,
	appointments AppointmentRepository,
	notifier Notifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *BookingService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &BookingService{
		tx:           tx,
		catalog:      catalog,
		clients:      clients,
		appointments: appointments,
		notifier:     notifier,
		logger:       logger,
		auditLogger:  auditLogger,
		now:          time.Now,
	}
}

// Create books a PENDING appointment. The pre-check gives early feedback; the
// occupied-slot index decides races, and both surface as models.ErrSlotConflict.
func (s *BookingService) Create(ctx context.Context, req BookingRequest) (*models.AppointmentDetails, error) {
	name := strings.TrimSpace(req.ClientName)
	phone := strings.TrimSpace(req.ClientPhone)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", models.ErrBadRequest)
	}
	phoneNormalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	service, err := s.activeService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	if !req.AppointmentAt.After(s.now()) {
		return nil, fmt.Errorf("%w: appointment time must be in the future", models.ErrBadRequest)
	}
	at := models.TruncateToSlot(req.AppointmentAt)

	occupied, err := s.appointments.ExistsOccupying(ctx, service.ID, at, "")
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if occupied {
		metrics.RecordBookingConflict("precheck")
		s.logBookingRejected(phoneNormalized, "slot_taken")
		return nil, models.ErrSlotConflict
	}

	var (
		client *models.Client
		appt   *models.Appointment
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		client, err = s.clients.GetOrCreateByPhone(ctx, &models.Client{
			Name:            name,
			Phone:           phone,
			PhoneNormalized: phoneNormalized,
		})
		if err != nil {
			return fmt.Errorf("resolve client: %w", err)
		}

		appt, err = s.appointments.Create(ctx, &models.Appointment{
			ClientID:      client.ID,
			ServiceID:     service.ID,
			AppointmentAt: at,
			Status:        models.StatusPending,
			Notes:         optionalText(req.Notes),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrSlotConflict) {
			metrics.RecordBookingConflict("constraint")
			s.logBookingRejected(phoneNormalized, "slot_taken_concurrently")
			return nil, models.ErrSlotConflict
		}
		s.logger.Error("failed to create appointment", slog.Any("error", err))
		return nil, err
	}

	details := &models.AppointmentDetails{
		Appointment: *appt,
		ClientName:  client.Name,
		ClientPhone: client.Phone,
		ServiceName: service.Name,
	}

	s.logger.Info("appointment booked",
		slog.String("appointment_id", appt.ID),
		slog.String("service_id", service.ID),
		slog.Time("appointment_at", at))
	s.auditLogger.LogBookingEvent(pkglogger.AuditEvent{
		EventType: "appointment_booked",
		Subject:   pkglogger.MaskedPhone(phoneNormalized),
		Success:   true,
		Metadata:  map[string]string{"appointment_id": appt.ID},
	})

	s.notify(details)
	return details, nil
}

// ListOccupied returns the occupied slot times of a service on the UTC day of date.
func (s *BookingService) ListOccupied(ctx context.Context, serviceID string, date time.Time) ([]time.Time, error) {
	service, err := s.catalog.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	d := date.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return s.appointments.ListOccupiedTimes(ctx, service.ID, from, from.AddDate(0, 0, 1))
}

// ListActiveServices returns the services offered for public booking.
func (s *BookingService) ListActiveServices(ctx context.Context) ([]*models.Service, error) {
	return s.catalog.List(ctx, true)
}

func (s *BookingService) activeService(ctx context.Context, id string) (*models.Service, error) {
	service, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.Active {
		return nil, models.ErrInactiveService
	}
	return service, nil
}

// notify sends the booking notification in the background; failures are only logged.
func (s *BookingService) notify(details *models.AppointmentDetails) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.AppointmentBooked(ctx, details); err != nil {
			s.logger.Warn("booking notification failed",
				slog.String("appointment_id", details.ID),
				slog.Any("error", err))
		}
	}()
}

func (s *BookingService) logBookingRejected(phoneNormalized, reason string) {
	s.auditLogger.LogBookingEvent(pkglogger.AuditEvent{
		EventType:     "appointment_rejected",
		Subject:       pkglogger.MaskedPhone(phoneNormalized),
		Success:       false,
		FailureReason: reason,
	})
}

// optionalText trims s and returns nil when nothing is left.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
