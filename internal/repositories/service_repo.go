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

type ServiceRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(db *database.DB) *ServiceRepository {
	return &ServiceRepository{pool: db.Pool}
}

const serviceColumns = `id, name, price, duration_minutes, description, active, created_at, updated_at`

func scanServiceRow(scanner rowScanner) (*models.Service, error) {
	var s models.Service
	err := scanner.Scan(&s.ID, &s.Name, &s.Price, &s.DurationMinutes, &s.Description, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func scanServiceRows(rows pgx.Rows) ([]*models.Service, error) {
	defer rows.Close()

	services := make([]*models.Service, 0)
	for rows.Next() {
		s, err := scanServiceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return services, nil
}

func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	return scanServiceRow(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// List returns services ordered by name; activeOnly hides inactive ones.
func (r *ServiceRepository) List(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE ($1 = FALSE OR active) ORDER BY name`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	return scanServiceRows(rows)
}

func (r *ServiceRepository) Create(ctx context.Context, s *models.Service) (*models.Service, error) {
	now := time.Now()
	query := `
		INSERT INTO services (id, name, price, duration_minutes, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + serviceColumns

	return scanServiceRow(database.Conn(ctx, r.pool).QueryRow(ctx, query,
		uuid.New().String(), s.Name, s.Price, s.DurationMinutes, s.Description, s.Active, now,
	))
}
