package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BradenHooton/stylebook/internal/models"
	pkglogger "github.com/BradenHooton/stylebook/pkg/logger"
)

// ClientRepository defines the interface for client persistence
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetOrCreateByPhone(ctx context.Context, c *models.Client) (*models.Client, error)
	ExistsByPhoneExcluding(ctx context.Context, phoneNormalized, excludeID string) (bool, error)
	Update(ctx context.Context, c *models.Client) (*models.Client, error)
	Delete(ctx context.Context, id string) error
	ListSummaries(ctx context.Context) ([]*models.ClientSummary, error)
}

// ClientService handles admin client management, including merging duplicates
type ClientService struct {
	tx           Transactor
	clients      ClientRepository
	appointments AppointmentRepository
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewClientService creates a new ClientService
func NewClientService(
	tx Transactor,
	clients ClientRepository,
	appointments AppointmentRepository,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *ClientService {
	return &ClientService{
		tx:           tx,
		clients:      clients,
		appointments: appointments,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// List returns every client with completed-visit statistics.
func (s *ClientService) List(ctx context.Context) ([]*models.ClientSummary, error) {
	return s.clients.ListSummaries(ctx)
}

// Update renames a client or changes their phone. The phone goes through the same
// normalization as booking and must not belong to another client.
func (s *ClientService) Update(ctx context.Context, actor, id, name, phone string) (*models.Client, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrBadRequest)
	}
	phoneNormalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.clients.ExistsByPhoneExcluding(ctx, phoneNormalized, id)
	if err != nil {
		return nil, fmt.Errorf("check phone: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: another client already uses this phone", models.ErrConflict)
	}

	client.Name = name
	client.Phone = phone
	client.PhoneNormalized = phoneNormalized
	updated, err := s.clients.Update(ctx, client)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAdminAction("client_updated", actor, map[string]string{"client_id": id})
	return updated, nil
}

// Merge moves every appointment of sourceID to targetID and deletes the source,
// all in one transaction. It returns the number of appointments moved.
func (s *ClientService) Merge(ctx context.Context, actor, sourceID, targetID string) (int64, error) {
	if strings.TrimSpace(sourceID) == strings.TrimSpace(targetID) {
		return 0, models.ErrSameClient
	}

	var moved int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.clients.GetByID(ctx, sourceID); err != nil {
			return err
		}
		if _, err := s.clients.GetByID(ctx, targetID); err != nil {
			return err
		}

		var err error
		if moved, err = s.appointments.ReassignClient(ctx, sourceID, targetID); err != nil {
			return fmt.Errorf("reassign appointments: %w", err)
		}
		return s.clients.Delete(ctx, sourceID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("clients merged",
		slog.String("source_client_id", sourceID),
		slog.String("target_client_id", targetID),
		slog.Int64("appointments_moved", moved))
	s.auditLogger.LogAdminAction("clients_merged", actor, map[string]string{
		"source_client_id":   sourceID,
		"target_client_id":   targetID,
		"appointments_moved": strconv.FormatInt(moved, 10),
	})
	return moved, nil
}

// Delete removes a client together with all of their appointments.
func (s *ClientService) Delete(ctx context.Context, actor, id string) error {
	var removed int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.clients.GetByID(ctx, id); err != nil {
			return err
		}

		var err error
		if removed, err = s.appointments.DeleteByClient(ctx, id); err != nil {
			return fmt.Errorf("delete appointments: %w", err)
		}
		return s.clients.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.auditLogger.LogAdminAction("client_deleted", actor, map[string]string{
		"client_id":            id,
		"appointments_removed": strconv.FormatInt(removed, 10),
	})
	return nil
}
