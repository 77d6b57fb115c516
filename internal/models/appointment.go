package models

import (
	"fmt"
	"slices"
	"time"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

// OccupyingStatuses hold a slot exclusively. The partial unique index
// uq_appointments_occupied_slot uses the same set.
var OccupyingStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

// transitions lists the allowed next states for each status.
// Same-state updates are always allowed and are not listed here.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ParseAppointmentStatus validates a raw status string.
func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	s := AppointmentStatus(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("unknown status %q: %w", raw, ErrBadRequest)
	}
	return s, nil
}

// IsOccupying reports whether the status counts toward slot exclusivity.
func (s AppointmentStatus) IsOccupying() bool {
	return slices.Contains(OccupyingStatuses, s)
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		_, known := transitions[s]
		return known
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to AppointmentStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// TruncateToSlot drops seconds and sub-second precision so slot comparisons are exact.
func TruncateToSlot(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

type Appointment struct {
	ID            string
	ClientID      string
	ServiceID     string
	AppointmentAt time.Time // minute precision, UTC
	Status        AppointmentStatus
	Notes         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AppointmentDetails is an appointment joined with its client and service for admin listings.
type AppointmentDetails struct {
	Appointment
	ClientName  string
	ClientPhone string
	ServiceName string
}
