package handlers

import (
	"time"

	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/services"
)

// Request DTOs

// CreateAppointmentRequest is the public booking body.
type CreateAppointmentRequest struct {
	ClientName    string    `json:"client_name" validate:"required,max=120"`
	ClientPhone   string    `json:"client_phone" validate:"required,min=7,max=40,phonechars"`
	ServiceID     string    `json:"service_id" validate:"required,uuid"`
	AppointmentAt time.Time `json:"appointment_at" validate:"required"`
	Notes         string    `json:"notes" validate:"max=500"`
}

// HaircutSuggestionRequest carries a base64 image data URL.
type HaircutSuggestionRequest struct {
	ImageDataURL string `json:"image_data_url" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=128"`
}

// UpdateAppointmentStatusRequest moves an appointment through the state machine.
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED COMPLETED CANCELLED"`
}

// UpdateAppointmentRequest is an admin edit of an appointment.
type UpdateAppointmentRequest struct {
	ClientName    string    `json:"client_name" validate:"required,max=120"`
	ClientPhone   string    `json:"client_phone" validate:"required,min=7,max=40,phonechars"`
	ServiceID     string    `json:"service_id" validate:"required,uuid"`
	AppointmentAt time.Time `json:"appointment_at" validate:"required"`
	Notes         string    `json:"notes" validate:"max=500"`
}

// UpdateClientRequest renames a client or changes their phone.
type UpdateClientRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Phone string `json:"phone" validate:"required,min=7,max=40,phonechars"`
}

// MergeClientsRequest folds source into target.
type MergeClientsRequest struct {
	SourceClientID string `json:"source_client_id" validate:"required,uuid"`
	TargetClientID string `json:"target_client_id" validate:"required,uuid"`
}

// Response DTOs

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// ServiceResponse is one catalog entry.
type ServiceResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           int64   `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	Description     *string `json:"description,omitempty"`
	Active          bool    `json:"active"`
}

// PublicAppointmentResponse is what a customer sees after booking.
type PublicAppointmentResponse struct {
	ID            string    `json:"id"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	AppointmentAt time.Time `json:"appointment_at"`
	Status        string    `json:"status"`
}

// OccupiedSlotResponse is one taken slot for the availability picker.
type OccupiedSlotResponse struct {
	ServiceID     string    `json:"service_id"`
	AppointmentAt time.Time `json:"appointment_at"`
}

// HaircutStyleResponse is one suggested cut.
type HaircutStyleResponse struct {
	StyleName   string `json:"style_name"`
	Reason      string `json:"reason"`
	Maintenance string `json:"maintenance"`
}

// HaircutSuggestionResponse is the AI endpoint result.
type HaircutSuggestionResponse struct {
	DetectedDescription string                 `json:"detected_description"`
	Suggestions         []HaircutStyleResponse `json:"suggestions"`
}

// AppointmentResponse is the admin view of an appointment.
type AppointmentResponse struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	ClientName    string    `json:"client_name"`
	ClientPhone   string    `json:"client_phone"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	AppointmentAt time.Time `json:"appointment_at"`
	Status        string    `json:"status"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StalePendingAppointmentResponse is a PENDING appointment awaiting confirmation.
type StalePendingAppointmentResponse struct {
	ID             string    `json:"id"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	ServiceName    string    `json:"service_name"`
	AppointmentAt  time.Time `json:"appointment_at"`
	CreatedAt      time.Time `json:"created_at"`
	MinutesPending int64     `json:"minutes_pending"`
}

// ClientResponse is a single client after an edit.
type ClientResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ClientSummaryResponse adds visit statistics.
type ClientSummaryResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	CompletedCount int        `json:"completed_count"`
	LastVisitAt    *time.Time `json:"last_visit_at,omitempty"`
}

// MergeClientsResponse reports how many appointments moved.
type MergeClientsResponse struct {
	TargetClientID    string `json:"target_client_id"`
	MovedAppointments int64  `json:"moved_appointments"`
}

func toServiceResponses(list []*models.Service) []ServiceResponse {
	out := make([]ServiceResponse, 0, len(list))
	for _, s := range list {
		out = append(out, ServiceResponse{
			ID:              s.ID,
			Name:            s.Name,
			Price:           s.Price,
			DurationMinutes: s.DurationMinutes,
			Description:     s.Description,
			Active:          s.Active,
		})
	}
	return out
}

func toPublicAppointment(a *models.AppointmentDetails) PublicAppointmentResponse {
	return PublicAppointmentResponse{
		ID:            a.ID,
		ServiceID:     a.ServiceID,
		ServiceName:   a.ServiceName,
		AppointmentAt: a.AppointmentAt.UTC(),
		Status:        string(a.Status),
	}
}

func toAppointmentResponse(a *models.AppointmentDetails) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		ClientID:      a.ClientID,
		ClientName:    a.ClientName,
		ClientPhone:   a.ClientPhone,
		ServiceID:     a.ServiceID,
		ServiceName:   a.ServiceName,
		AppointmentAt: a.AppointmentAt.UTC(),
		Status:        string(a.Status),
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

func toAppointmentResponses(list []*models.AppointmentDetails) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toStalePendingResponses(list []services.StalePendingAppointment) []StalePendingAppointmentResponse {
	out := make([]StalePendingAppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, StalePendingAppointmentResponse{
			ID:             a.ID,
			ClientName:     a.ClientName,
			ClientPhone:    a.ClientPhone,
			ServiceName:    a.ServiceName,
			AppointmentAt:  a.AppointmentAt.UTC(),
			CreatedAt:      a.CreatedAt.UTC(),
			MinutesPending: a.MinutesPending,
		})
	}
	return out
}

func toClientSummaryResponses(list []*models.ClientSummary) []ClientSummaryResponse {
	out := make([]ClientSummaryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, ClientSummaryResponse{
			ID:             c.ID,
			Name:           c.Name,
			Phone:          c.Phone,
			CompletedCount: c.CompletedCount,
			LastVisitAt:    c.LastVisitAt,
		})
	}
	return out
}

func toHaircutSuggestionResponse(s *services.HaircutSuggestion) HaircutSuggestionResponse {
	styles := make([]HaircutStyleResponse, 0, len(s.Suggestions))
	for _, st := range s.Suggestions {
		styles = append(styles, HaircutStyleResponse{
			StyleName:   st.StyleName,
			Reason:      st.Reason,
			Maintenance: st.Maintenance,
		})
	}
	return HaircutSuggestionResponse{
		DetectedDescription: s.DetectedDescription,
		Suggestions:         styles,
	}
}
