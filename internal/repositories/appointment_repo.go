package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/stylebook/internal/database"
	"github.com/BradenHooton/stylebook/internal/models"
)

type AppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepository(db *database.DB) *AppointmentRepository {
	return &AppointmentRepository{pool: db.Pool}
}

const appointmentColumns = `id, client_id, service_id, appointment_at, status, notes, created_at, updated_at`

var occupyingStatuses = statusStrings(models.OccupyingStatuses)

func statusStrings(statuses []models.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanAppointmentRow(scanner rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	var status string
	err := scanner.Scan(&a.ID, &a.ClientID, &a.ServiceID, &a.AppointmentAt, &status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	a.Status = models.AppointmentStatus(status)
	a.AppointmentAt = a.AppointmentAt.UTC()
	return &a, nil
}

const detailsSelect = `
	SELECT a.id, a.client_id, a.service_id, a.appointment_at, a.status, a.notes, a.created_at, a.updated_at,
	       c.name, c.phone, s.name
	FROM appointments a
	JOIN clients c ON c.id = a.client_id
	JOIN services s ON s.id = a.service_id
`

func scanDetailsRows(rows pgx.Rows) ([]*models.AppointmentDetails, error) {
	defer rows.Close()

	list := make([]*models.AppointmentDetails, 0)
	for rows.Next() {
		var d models.AppointmentDetails
		var status string
		if err := rows.Scan(
			&d.ID, &d.ClientID, &d.ServiceID, &d.AppointmentAt, &status, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
			&d.ClientName, &d.ClientPhone, &d.ServiceName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		d.Status = models.AppointmentStatus(status)
		d.AppointmentAt = d.AppointmentAt.UTC()
		list = append(list, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return list, nil
}

// Create inserts a new appointment. Losing the race for an occupied slot
// returns models.ErrSlotConflict via the partial unique index.
func (r *AppointmentRepository) Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	now := time.Now()
	query := `
		INSERT INTO appointments (id, client_id, service_id, appointment_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + appointmentColumns

	return scanAppointmentRow(database.Conn(ctx, r.pool).QueryRow(ctx, query,
		uuid.New().String(), a.ClientID, a.ServiceID, a.AppointmentAt, string(a.Status), a.Notes, now,
	))
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return scanAppointmentRow(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the row for the rest of the surrounding transaction.
func (r *AppointmentRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`
	return scanAppointmentRow(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// ExistsOccupying reports whether an occupying appointment holds the slot.
// excludeID may be empty; otherwise that appointment is ignored.
func (r *AppointmentRepository) ExistsOccupying(ctx context.Context, serviceID string, at time.Time, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE service_id = $1 AND appointment_at = $2 AND status = ANY($3)
			  AND ($4 = '' OR id::text <> $4)
		)
	`

	var exists bool
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, serviceID, at, occupyingStatuses, excludeID).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// Update persists client, service, time, notes and status of an existing appointment.
func (r *AppointmentRepository) Update(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET client_id = $1, service_id = $2, appointment_at = $3, status = $4, notes = $5, updated_at = $6
		WHERE id = $7
		RETURNING ` + appointmentColumns

	return scanAppointmentRow(database.Conn(ctx, r.pool).QueryRow(ctx, query,
		a.ClientID, a.ServiceID, a.AppointmentAt, string(a.Status), a.Notes, time.Now(), a.ID,
	))
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List returns appointments ordered by time. A zero from/to leaves that bound open.
func (r *AppointmentRepository) List(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.AppointmentDetails, error) {
	query := detailsSelect + `
		WHERE ($1::timestamptz IS NULL OR a.appointment_at >= $1)
		  AND ($2::timestamptz IS NULL OR a.appointment_at < $2)
		ORDER BY a.appointment_at ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, nullableTime(from), nullableTime(to), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	return scanDetailsRows(rows)
}

// GetDetails returns one appointment joined with client and service names.
func (r *AppointmentRepository) GetDetails(ctx context.Context, id string) (*models.AppointmentDetails, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, detailsSelect+` WHERE a.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointment: %w", err)
	}
	list, err := scanDetailsRows(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, models.ErrNotFound
	}
	return list[0], nil
}

// ListOccupiedTimes returns the occupied slot times of a service in [from, to).
func (r *AppointmentRepository) ListOccupiedTimes(ctx context.Context, serviceID string, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT appointment_at FROM appointments
		WHERE service_id = $1 AND appointment_at >= $2 AND appointment_at < $3 AND status = ANY($4)
		ORDER BY appointment_at
	`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, serviceID, from, to, occupyingStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupied slots: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		times = append(times, t.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return times, nil
}

// ListStalePending returns PENDING appointments created before cutoff, oldest first.
func (r *AppointmentRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.AppointmentDetails, error) {
	query := detailsSelect + `
		WHERE a.status = 'PENDING' AND a.created_at <= $1
		ORDER BY a.created_at ASC
	`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending appointments: %w", err)
	}
	return scanDetailsRows(rows)
}

// ReassignClient moves every appointment of sourceID to targetID.
func (r *AppointmentRepository) ReassignClient(ctx context.Context, sourceID, targetID string) (int64, error) {
	result, err := database.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointments SET client_id = $1, updated_at = NOW() WHERE client_id = $2`, targetID, sourceID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteByClient removes every appointment of a client.
func (r *AppointmentRepository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	result, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointments WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
