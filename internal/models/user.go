package models

import (
	"time"
)

// Role values for admin users.
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// AdminUser is a staff account allowed to sign in to the admin API.
type AdminUser struct {
	ID           string
	Email        string // stored trimmed and lowercased
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user may use admin endpoints.
func (u *AdminUser) IsAdmin() bool {
	return u != nil && u.Active && u.Role == RoleAdmin
}
