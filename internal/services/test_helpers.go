package services

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/sashabaranov/go-openai"

	"github.com/BradenHooton/stylebook/internal/models"
	pkglogger "github.com/BradenHooton/stylebook/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// MockTransactor runs fn directly, optionally recording how often it was used
type MockTransactor struct {
	mu    sync.Mutex
	calls int
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *MockTransactor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockServiceCatalogRepository implements ServiceCatalogRepository for testing
type MockServiceCatalogRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Service, error)
	ListFunc    func(ctx context.Context, activeOnly bool) ([]*models.Service, error)
}

func (m *MockServiceCatalogRepository) GetByID(ctx context.Context, id string) (*models.Service, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockServiceCatalogRepository) List(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, activeOnly)
	}
	return []*models.Service{}, nil
}

// MockClientRepository implements ClientRepository for testing
type MockClientRepository struct {
	GetByIDFunc                func(ctx context.Context, id string) (*models.Client, error)
	GetOrCreateByPhoneFunc     func(ctx context.Context, c *models.Client) (*models.Client, error)
	ExistsByPhoneExcludingFunc func(ctx context.Context, phoneNormalized, excludeID string) (bool, error)
	UpdateFunc                 func(ctx context.Context, c *models.Client) (*models.Client, error)
	DeleteFunc                 func(ctx context.Context, id string) error
	ListSummariesFunc          func(ctx context.Context) ([]*models.ClientSummary, error)
}

func (m *MockClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockClientRepository) GetOrCreateByPhone(ctx context.Context, c *models.Client) (*models.Client, error) {
	if m.GetOrCreateByPhoneFunc != nil {
		return m.GetOrCreateByPhoneFunc(ctx, c)
	}
	created := *c
	created.ID = "client-" + c.PhoneNormalized
	return &created, nil
}

func (m *MockClientRepository) ExistsByPhoneExcluding(ctx context.Context, phoneNormalized, excludeID string) (bool, error) {
	if m.ExistsByPhoneExcludingFunc != nil {
		return m.ExistsByPhoneExcludingFunc(ctx, phoneNormalized, excludeID)
	}
	return false, nil
}

func (m *MockClientRepository) Update(ctx context.Context, c *models.Client) (*models.Client, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, c)
	}
	return c, nil
}

func (m *MockClientRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockClientRepository) ListSummaries(ctx context.Context) ([]*models.ClientSummary, error) {
	if m.ListSummariesFunc != nil {
		return m.ListSummariesFunc(ctx)
	}
	return []*models.ClientSummary{}, nil
}

// MockAppointmentRepository implements AppointmentRepository for testing
type MockAppointmentRepository struct {
	CreateFunc            func(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	GetByIDForUpdateFunc  func(ctx context.Context, id string) (*models.Appointment, error)
	GetDetailsFunc        func(ctx context.Context, id string) (*models.AppointmentDetails, error)
	ExistsOccupyingFunc   func(ctx context.Context, serviceID string, at time.Time, excludeID string) (bool, error)
	UpdateFunc            func(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	DeleteFunc            func(ctx context.Context, id string) error
	ListFunc              func(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.AppointmentDetails, error)
	ListOccupiedTimesFunc func(ctx context.Context, serviceID string, from, to time.Time) ([]time.Time, error)
	ListStalePendingFunc  func(ctx context.Context, cutoff time.Time) ([]*models.AppointmentDetails, error)
	ReassignClientFunc    func(ctx context.Context, sourceID, targetID string) (int64, error)
	DeleteByClientFunc    func(ctx context.Context, clientID string) (int64, error)
}

func (m *MockAppointmentRepository) Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, a)
	}
	created := *a
	created.ID = "appt-1"
	return &created, nil
}

func (m *MockAppointmentRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Appointment, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAppointmentRepository) GetDetails(ctx context.Context, id string) (*models.AppointmentDetails, error) {
	if m.GetDetailsFunc != nil {
		return m.GetDetailsFunc(ctx, id)
	}
	return &models.AppointmentDetails{Appointment: models.Appointment{ID: id}}, nil
}

func (m *MockAppointmentRepository) ExistsOccupying(ctx context.Context, serviceID string, at time.Time, excludeID string) (bool, error) {
	if m.ExistsOccupyingFunc != nil {
		return m.ExistsOccupyingFunc(ctx, serviceID, at, excludeID)
	}
	return false, nil
}

func (m *MockAppointmentRepository) Update(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, a)
	}
	return a, nil
}

func (m *MockAppointmentRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockAppointmentRepository) List(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.AppointmentDetails, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, from, to, limit, offset)
	}
	return []*models.AppointmentDetails{}, nil
}

func (m *MockAppointmentRepository) ListOccupiedTimes(ctx context.Context, serviceID string, from, to time.Time) ([]time.Time, error) {
	if m.ListOccupiedTimesFunc != nil {
		return m.ListOccupiedTimesFunc(ctx, serviceID, from, to)
	}
	return []time.Time{}, nil
}

func (m *MockAppointmentRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.AppointmentDetails, error) {
	if m.ListStalePendingFunc != nil {
		return m.ListStalePendingFunc(ctx, cutoff)
	}
	return []*models.AppointmentDetails{}, nil
}

func (m *MockAppointmentRepository) ReassignClient(ctx context.Context, sourceID, targetID string) (int64, error) {
	if m.ReassignClientFunc != nil {
		return m.ReassignClientFunc(ctx, sourceID, targetID)
	}
	return 0, nil
}

func (m *MockAppointmentRepository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	if m.DeleteByClientFunc != nil {
		return m.DeleteByClientFunc(ctx, clientID)
	}
	return 0, nil
}

// MockAdminUserRepository implements AdminUserRepository for testing
type MockAdminUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.AdminUser, error)
}

func (m *MockAdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockNotifier records booked appointments on a channel
type MockNotifier struct {
	Booked chan *models.AppointmentDetails
	Err    error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Booked: make(chan *models.AppointmentDetails, 16)}
}

func (m *MockNotifier) AppointmentBooked(_ context.Context, appt *models.AppointmentDetails) error {
	m.Booked <- appt
	return m.Err
}

// MockCaptioner implements Captioner for testing
type MockCaptioner struct {
	CaptionFunc func(ctx context.Context, imageDataURL string) (string, error)
}

func (m *MockCaptioner) Caption(ctx context.Context, imageDataURL string) (string, error) {
	if m.CaptionFunc != nil {
		return m.CaptionFunc(ctx, imageDataURL)
	}
	return "a man with short hair", nil
}

// MockChatCompleter implements ChatCompleter for testing
type MockChatCompleter struct {
	CreateChatCompletionFunc func(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (m *MockChatCompleter) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return m.CreateChatCompletionFunc(ctx, request)
}

// MockSESClient implements SESClient for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

// slotStore is an in-memory appointment table enforcing the occupied-slot
// uniqueness the database index provides.
type slotStore struct {
	mu       sync.Mutex
	seq      int
	occupied map[string]string
	byID     map[string]*models.Appointment
}

func newSlotStore() *slotStore {
	return &slotStore{occupied: make(map[string]string), byID: make(map[string]*models.Appointment)}
}

func slotKey(serviceID string, at time.Time) string {
	return serviceID + "|" + at.UTC().Format(time.RFC3339)
}

func (s *slotStore) exists(serviceID string, at time.Time, excludeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.occupied[slotKey(serviceID, at)]
	return ok && id != excludeID
}

func (s *slotStore) create(a *models.Appointment) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey(a.ServiceID, a.AppointmentAt)
	if _, taken := s.occupied[key]; taken && a.Status.IsOccupying() {
		return nil, models.ErrSlotConflict
	}
	s.seq++
	created := *a
	created.ID = "appt-" + strconv.Itoa(s.seq)
	if created.Status.IsOccupying() {
		s.occupied[key] = created.ID
	}
	s.byID[created.ID] = &created
	return &created, nil
}

func (s *slotStore) repository() *MockAppointmentRepository {
	return &MockAppointmentRepository{
		ExistsOccupyingFunc: func(_ context.Context, serviceID string, at time.Time, excludeID string) (bool, error) {
			return s.exists(serviceID, at, excludeID), nil
		},
		CreateFunc: func(_ context.Context, a *models.Appointment) (*models.Appointment, error) {
			return s.create(a)
		},
	}
}
