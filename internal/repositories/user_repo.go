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

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

type AdminUserRepository struct {
	pool *pgxpool.Pool
}

func NewAdminUserRepository(db *database.DB) *AdminUserRepository {
	return &AdminUserRepository{pool: db.Pool}
}

const adminUserColumns = `id, email, password_hash, role, active, created_at, updated_at`

func scanAdminUserRow(scanner rowScanner) (*models.AdminUser, error) {
	var u models.AdminUser
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

// GetByEmail matches case-insensitively; emails are stored normalized.
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	query := `SELECT ` + adminUserColumns + ` FROM admin_users WHERE email = LOWER(TRIM($1))`
	return scanAdminUserRow(database.Conn(ctx, r.pool).QueryRow(ctx, query, email))
}

// Upsert creates the admin user or, when the email exists, resets its password hash,
// role and active flag. Used for the ADMIN_EMAIL bootstrap.
func (r *AdminUserRepository) Upsert(ctx context.Context, user *models.AdminUser) (*models.AdminUser, error) {
	now := time.Now()
	if user.Role == "" {
		user.Role = models.RoleAdmin
	}

	query := `
		INSERT INTO admin_users (id, email, password_hash, role, active, created_at, updated_at)
		VALUES ($1, LOWER(TRIM($2)), $3, $4, $5, $6, $6)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at
		RETURNING ` + adminUserColumns

	saved, err := scanAdminUserRow(database.Conn(ctx, r.pool).QueryRow(ctx, query,
		uuid.New().String(), user.Email, user.PasswordHash, user.Role, user.Active, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert admin user: %w", err)
	}
	return saved, nil
}
