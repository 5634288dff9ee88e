package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"museum.zuyanh.net/internal/chatbot"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/jsonlog"
	"museum.zuyanh.net/internal/mailer"
	"museum.zuyanh.net/internal/notify"
	"museum.zuyanh.net/internal/payment"
	"museum.zuyanh.net/internal/repository"
)

type MockMuseums struct{ mock.Mock }

func (m *MockMuseums) Insert(museum *entity.Museum) error {
	return m.Called(museum).Error(0)
}

func (m *MockMuseums) Get(id int64) (*entity.Museum, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Museum), args.Error(1)
}

func (m *MockMuseums) Update(museum *entity.Museum) error {
	return m.Called(museum).Error(0)
}

func (m *MockMuseums) Delete(id int64) error {
	return m.Called(id).Error(0)
}

func (m *MockMuseums) GetAll(q string, city string, category string, filters repository.Filters) ([]*entity.Museum, repository.Metadata, error) {
	args := m.Called(q, city, category, filters)
	return args.Get(0).([]*entity.Museum), args.Get(1).(repository.Metadata), args.Error(2)
}

type MockEvents struct{ mock.Mock }

func (m *MockEvents) Insert(event *entity.Event) error {
	return m.Called(event).Error(0)
}

func (m *MockEvents) Get(id int64) (*entity.Event, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Event), args.Error(1)
}

func (m *MockEvents) Update(event *entity.Event) error {
	return m.Called(event).Error(0)
}

func (m *MockEvents) Delete(id int64) error {
	return m.Called(id).Error(0)
}

func (m *MockEvents) GetAll(museumID int64, q string, date string, upcoming bool, filters repository.Filters) ([]*entity.Event, repository.Metadata, error) {
	args := m.Called(museumID, q, date, upcoming, filters)
	return args.Get(0).([]*entity.Event), args.Get(1).(repository.Metadata), args.Error(2)
}

type MockBookings struct{ mock.Mock }

func (m *MockBookings) Insert(booking *entity.Booking) error {
	return m.Called(booking).Error(0)
}

func (m *MockBookings) Get(id int64) (*entity.Booking, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Booking), args.Error(1)
}

func (m *MockBookings) GetByReference(reference string) (*entity.Booking, error) {
	args := m.Called(reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Booking), args.Error(1)
}

func (m *MockBookings) GetAll(userID int64, museumID int64, status string, visitDate string, filters repository.Filters) ([]*entity.Booking, repository.Metadata, error) {
	args := m.Called(userID, museumID, status, visitDate, filters)
	return args.Get(0).([]*entity.Booking), args.Get(1).(repository.Metadata), args.Error(2)
}

func (m *MockBookings) UpdateStatus(booking *entity.Booking, to entity.BookingStatus) error {
	args := m.Called(booking, to)
	if args.Error(0) == nil {
		booking.Status = to
	}
	return args.Error(0)
}

func (m *MockBookings) ExpirePending(olderThan time.Duration) (int64, error) {
	args := m.Called(olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type MockRegistrations struct{ mock.Mock }

func (m *MockRegistrations) Insert(reg *entity.Registration) error {
	return m.Called(reg).Error(0)
}

func (m *MockRegistrations) GetByReference(reference string) (*entity.Registration, error) {
	args := m.Called(reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Registration), args.Error(1)
}

func (m *MockRegistrations) GetAllForEvent(eventID int64, filters repository.Filters) ([]*entity.Registration, repository.Metadata, error) {
	args := m.Called(eventID, filters)
	return args.Get(0).([]*entity.Registration), args.Get(1).(repository.Metadata), args.Error(2)
}

func (m *MockRegistrations) GetAllForUser(userID int64, filters repository.Filters) ([]*entity.Registration, repository.Metadata, error) {
	args := m.Called(userID, filters)
	return args.Get(0).([]*entity.Registration), args.Get(1).(repository.Metadata), args.Error(2)
}

func (m *MockRegistrations) UpdateStatus(reg *entity.Registration, to entity.RegistrationStatus) error {
	args := m.Called(reg, to)
	if args.Error(0) == nil {
		reg.Status = to
	}
	return args.Error(0)
}

type MockUsers struct{ mock.Mock }

func (m *MockUsers) Insert(user *entity.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUsers) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUsers) Update(user *entity.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUsers) GetForToken(tokenScope, tokenPlaintext string) (*entity.User, error) {
	args := m.Called(tokenScope, tokenPlaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

type MockPermissions struct{ mock.Mock }

func (m *MockPermissions) GetAllForUser(userID int64) (repository.Permissions, error) {
	args := m.Called(userID)
	return args.Get(0).(repository.Permissions), args.Error(1)
}

func (m *MockPermissions) AddForUser(userID int64, codes ...string) error {
	return m.Called(userID, codes).Error(0)
}

type MockStats struct{ mock.Mock }

func (m *MockStats) Summary() (*repository.Summary, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Summary), args.Error(1)
}

type sentMail struct {
	recipient   string
	template    string
	attachments []mailer.Attachment
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(recipient, templateFile string, _ any, attachments ...mailer.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{recipient: recipient, template: templateFile, attachments: attachments})
	return nil
}

func (f *fakeMailer) messages() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type fakeWhatsApp struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeWhatsApp) Send(msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreateOrder(ctx context.Context, order payment.Order) (*payment.OrderResult, error) {
	args := m.Called(order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.OrderResult), args.Error(1)
}

func (m *MockGateway) VerifyCallback(cb payment.Callback) (string, *payment.CallbackData, error) {
	args := m.Called(cb)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*payment.CallbackData), args.Error(2)
}

// testApp bundles an application with the mocks behind it.
type testApp struct {
	*application
	museums       *MockMuseums
	events        *MockEvents
	bookings      *MockBookings
	registrations *MockRegistrations
	users         *MockUsers
	permissions   *MockPermissions
	stats         *MockStats
	mail          *fakeMailer
	whatsappMsgs  *fakeWhatsApp
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()

	ta := &testApp{
		museums:       new(MockMuseums),
		events:        new(MockEvents),
		bookings:      new(MockBookings),
		registrations: new(MockRegistrations),
		users:         new(MockUsers),
		permissions:   new(MockPermissions),
		stats:         new(MockStats),
		mail:          &fakeMailer{},
		whatsappMsgs:  &fakeWhatsApp{},
	}

	logger := jsonlog.NewWithCore(zapcore.NewNopCore())

	ta.application = &application{
		logger: logger,
		models: repository.Models{
			Museums:       ta.museums,
			Events:        ta.events,
			Bookings:      ta.bookings,
			Registrations: ta.registrations,
			Users:         ta.users,
			Permissions:   ta.permissions,
			Stats:         ta.stats,
		},
		mailer:   ta.mail,
		whatsapp: ta.whatsappMsgs,
		metrics:  newMetrics(),
	}
	ta.config.Env = "testing"
	ta.config.Chat.SessionTTL = time.Hour

	ta.chat = chatbot.New(chatbot.NewMemoryStore(time.Hour), chatBackend{app: ta.application}, nil, logger)

	t.Cleanup(func() {
		ta.wg.Wait()
		ta.museums.AssertExpectations(t)
		ta.events.AssertExpectations(t)
		ta.bookings.AssertExpectations(t)
		ta.registrations.AssertExpectations(t)
		ta.users.AssertExpectations(t)
		ta.permissions.AssertExpectations(t)
		ta.stats.AssertExpectations(t)
	})

	return ta
}

const testToken = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// loginAs makes testToken authenticate as user with the given permissions.
func (ta *testApp) loginAs(user *entity.User, codes ...string) {
	ta.users.On("GetForToken", entity.ScopeAuthentication, testToken).Return(user, nil)
	ta.permissions.On("GetAllForUser", user.ID).Return(repository.Permissions(codes), nil)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(r.body, &out))
	return out
}

func (ta *testApp) do(t *testing.T, method, path string, body any, authenticated bool) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(js)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	rr := httptest.NewRecorder()
	ta.routes().ServeHTTP(rr, req)

	// let background deliveries finish before assertions look at fakes
	ta.wg.Wait()

	return response{status: rr.Code, header: rr.Header(), body: rr.Body.Bytes()}
}
