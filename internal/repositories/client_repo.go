package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/stylebook/internal/database"
	"github.com/BradenHooton/stylebook/internal/models"
)

type ClientRepository struct {
	pool *pgxpool.Pool
}

func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{pool: db.Pool}
}

const clientColumns = `id, name, phone, phone_normalized, created_at, updated_at`

func scanClientRow(scanner rowScanner) (*models.Client, error) {
	var c models.Client
	err := scanner.Scan(&c.ID, &c.Name, &c.Phone, &c.PhoneNormalized, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	return scanClientRow(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ClientRepository) GetByPhone(ctx context.Context, phoneNormalized string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE phone_normalized = $1`
	return scanClientRow(database.Conn(ctx, r.pool).QueryRow(ctx, query, phoneNormalized))
}

// GetOrCreateByPhone returns the client owning phone_normalized, inserting c when
// none exists. An existing client keeps its stored name and display phone.
// The upsert makes concurrent first bookings for the same phone converge on one row.
func (r *ClientRepository) GetOrCreateByPhone(ctx context.Context, c *models.Client) (*models.Client, error) {
	now := time.Now()
	query := `
		INSERT INTO clients (id, name, phone, phone_normalized, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (phone_normalized) DO UPDATE SET phone_normalized = EXCLUDED.phone_normalized
		RETURNING ` + clientColumns

	return scanClientRow(database.Conn(ctx, r.pool).QueryRow(ctx, query,
		uuid.New().String(), c.Name, c.Phone, c.PhoneNormalized, now,
	))
}

// ExistsByPhoneExcluding reports whether another client already owns phoneNormalized.
func (r *ClientRepository) ExistsByPhoneExcluding(ctx context.Context, phoneNormalized, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM clients WHERE phone_normalized = $1 AND id <> $2)`

	var exists bool
	if err := database.Conn(ctx, r.pool).QueryRow(ctx, query, phoneNormalized, excludeID).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// Update changes name and phone. A phone owned by another client yields models.ErrConflict.
func (r *ClientRepository) Update(ctx context.Context, c *models.Client) (*models.Client, error) {
	query := `
		UPDATE clients SET name = $1, phone = $2, phone_normalized = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + clientColumns

	return scanClientRow(database.Conn(ctx, r.pool).QueryRow(ctx, query,
		c.Name, c.Phone, c.PhoneNormalized, time.Now(), c.ID,
	))
}

func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListSummaries returns every client with completed-visit statistics,
// most recent visitors first.
func (r *ClientRepository) ListSummaries(ctx context.Context) ([]*models.ClientSummary, error) {
	query := `
		SELECT c.id, c.name, c.phone, c.phone_normalized, c.created_at, c.updated_at,
		       COUNT(a.id) FILTER (WHERE a.status = 'COMPLETED'),
		       MAX(a.appointment_at) FILTER (WHERE a.status = 'COMPLETED')
		FROM clients c
		LEFT JOIN appointments a ON a.client_id = c.id
		GROUP BY c.id
		ORDER BY 8 DESC NULLS LAST, c.name
	`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.ClientSummary, 0)
	for rows.Next() {
		var s models.ClientSummary
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Phone, &s.PhoneNormalized, &s.CreatedAt, &s.UpdatedAt,
			&s.CompletedCount, &s.LastVisitAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return summaries, nil
}
