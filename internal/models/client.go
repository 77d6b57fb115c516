package models

import "time"

// Client is a customer identified by their canonical phone number.
type Client struct {
	ID              string
	Name            string
	Phone           string // as entered, display only
	PhoneNormalized string // digits only, unique
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ClientSummary adds visit statistics for the admin client list.
type ClientSummary struct {
	Client
	CompletedCount int
	LastVisitAt    *time.Time
}

// Service is a bookable barber service.
type Service struct {
	ID              string
	Name            string
	Price           int64 // minor currency units
	DurationMinutes int
	Description     *string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
