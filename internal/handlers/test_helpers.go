package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/stylebook/internal/auth"
	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/services"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdminContext adds admin claims to the request context
func WithAdminContext(req *http.Request, email string) *http.Request {
	claims := &models.TokenClaims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi URL parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password, ip string) (*models.LoginResult, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, ip)
}

// MockBookingService implements BookingServiceInterface for testing
type MockBookingService struct {
	CreateFunc             func(ctx context.Context, req services.BookingRequest) (*models.AppointmentDetails, error)
	ListOccupiedFunc       func(ctx context.Context, serviceID string, date time.Time) ([]time.Time, error)
	ListActiveServicesFunc func(ctx context.Context) ([]*models.Service, error)
	creates                int32
}

func (m *MockBookingService) Create(ctx context.Context, req services.BookingRequest) (*models.AppointmentDetails, error) {
	atomic.AddInt32(&m.creates, 1)
	if m.CreateFunc == nil {
		return nil, models.ErrSlotConflict
	}
	return m.CreateFunc(ctx, req)
}

// Creates returns how many times Create was called.
func (m *MockBookingService) Creates() int {
	return int(atomic.LoadInt32(&m.creates))
}

func (m *MockBookingService) ListOccupied(ctx context.Context, serviceID string, date time.Time) ([]time.Time, error) {
	if m.ListOccupiedFunc == nil {
		return []time.Time{}, nil
	}
	return m.ListOccupiedFunc(ctx, serviceID, date)
}

func (m *MockBookingService) ListActiveServices(ctx context.Context) ([]*models.Service, error) {
	if m.ListActiveServicesFunc == nil {
		return []*models.Service{}, nil
	}
	return m.ListActiveServicesFunc(ctx)
}

// MockSuggestionService implements SuggestionServiceInterface for testing
type MockSuggestionService struct {
	SuggestFunc func(ctx context.Context, imageDataURL string) (*services.HaircutSuggestion, error)
}

func (m *MockSuggestionService) Suggest(ctx context.Context, imageDataURL string) (*services.HaircutSuggestion, error) {
	if m.SuggestFunc == nil {
		return nil, models.ErrAIUnavailable
	}
	return m.SuggestFunc(ctx, imageDataURL)
}

// MockAppointmentService implements AppointmentServiceInterface for testing
type MockAppointmentService struct {
	ListFunc             func(ctx context.Context, month string, limit, page int) ([]*models.AppointmentDetails, error)
	ListServicesFunc     func(ctx context.Context) ([]*models.Service, error)
	ListStalePendingFunc func(ctx context.Context, olderThan time.Duration) ([]services.StalePendingAppointment, error)
	UpdateStatusFunc     func(ctx context.Context, actor, id string, target models.AppointmentStatus) (*models.AppointmentDetails, error)
	UpdateFunc           func(ctx context.Context, actor, id string, in services.AppointmentUpdate) (*models.AppointmentDetails, error)
	DeleteFunc           func(ctx context.Context, actor, id string) error
}

func (m *MockAppointmentService) List(ctx context.Context, month string, limit, page int) ([]*models.AppointmentDetails, error) {
	if m.ListFunc == nil {
		return []*models.AppointmentDetails{}, nil
	}
	return m.ListFunc(ctx, month, limit, page)
}

func (m *MockAppointmentService) ListServices(ctx context.Context) ([]*models.Service, error) {
	if m.ListServicesFunc == nil {
		return []*models.Service{}, nil
	}
	return m.ListServicesFunc(ctx)
}

func (m *MockAppointmentService) ListStalePending(ctx context.Context, olderThan time.Duration) ([]services.StalePendingAppointment, error) {
	if m.ListStalePendingFunc == nil {
		return []services.StalePendingAppointment{}, nil
	}
	return m.ListStalePendingFunc(ctx, olderThan)
}

func (m *MockAppointmentService) UpdateStatus(ctx context.Context, actor, id string, target models.AppointmentStatus) (*models.AppointmentDetails, error) {
	if m.UpdateStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateStatusFunc(ctx, actor, id, target)
}

func (m *MockAppointmentService) Update(ctx context.Context, actor, id string, in services.AppointmentUpdate) (*models.AppointmentDetails, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, actor, id, in)
}

func (m *MockAppointmentService) Delete(ctx context.Context, actor, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actor, id)
}

// MockClientService implements ClientServiceInterface for testing
type MockClientService struct {
	ListFunc   func(ctx context.Context) ([]*models.ClientSummary, error)
	UpdateFunc func(ctx context.Context, actor, id, name, phone string) (*models.Client, error)
	MergeFunc  func(ctx context.Context, actor, sourceID, targetID string) (int64, error)
	DeleteFunc func(ctx context.Context, actor, id string) error
}

func (m *MockClientService) List(ctx context.Context) ([]*models.ClientSummary, error) {
	if m.ListFunc == nil {
		return []*models.ClientSummary{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockClientService) Update(ctx context.Context, actor, id, name, phone string) (*models.Client, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, actor, id, name, phone)
}

func (m *MockClientService) Merge(ctx context.Context, actor, sourceID, targetID string) (int64, error) {
	if m.MergeFunc == nil {
		return 0, nil
	}
	return m.MergeFunc(ctx, actor, sourceID, targetID)
}

func (m *MockClientService) Delete(ctx context.Context, actor, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actor, id)
}
