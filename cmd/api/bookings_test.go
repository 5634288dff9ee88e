package main

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/payment"
	"museum.zuyanh.net/internal/repository"
)

func testMuseum() *entity.Museum {
	return &entity.Museum{
		ID:   7,
		Name: "Salar Jung Museum",
		City: "Hyderabad",
		TicketTypes: []entity.TicketType{
			{Name: "adult", Price: decimal.NewFromInt(50)},
			{Name: "child", Price: decimal.NewFromInt(20)},
		},
	}
}

func bookingRequest(method string) map[string]any {
	return map[string]any{
		"museum_id":  7,
		"visit_date": time.Now().UTC().AddDate(0, 0, 3).Format(time.DateOnly),
		"tickets": []map[string]any{
			{"type": "adult", "quantity": 2},
			{"type": "child", "quantity": 1},
		},
		"visitor_name":   "Asha Rao",
		"email":          "asha@example.com",
		"phone":          "+919876543210",
		"payment_method": method,
	}
}

func insertsBooking(ta *testApp) {
	ta.bookings.On("Insert", mock.AnythingOfType("*entity.Booking")).Run(func(args mock.Arguments) {
		b := args.Get(0).(*entity.Booking)
		b.ID = 42
		b.Reference = "MUSEUM-123456-7890"
	}).Return(nil).Once()
}

func TestCreateBookingOfflinePayment(t *testing.T) {
	ta := newTestApplication(t)

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	insertsBooking(ta)

	res := ta.do(t, http.MethodPost, "/v1/bookings", bookingRequest(entity.PaymentUPI), false)

	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	assert.Equal(t, "/v1/tickets/MUSEUM-123456-7890", res.header.Get("Location"))

	booking := res.decode(t)["booking"].(map[string]any)
	assert.Equal(t, "confirmed", booking["status"])
	assert.Equal(t, "120", booking["total_amount"])
	assert.Equal(t, "Salar Jung Museum", booking["museum_name"])
	assert.Nil(t, booking["user_id"])

	sent := ta.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "asha@example.com", sent[0].recipient)
	assert.Equal(t, "booking_confirmation.tmpl", sent[0].template)
	require.Len(t, sent[0].attachments, 1)
	assert.Equal(t, "MUSEUM-123456-7890.pdf", sent[0].attachments[0].Name)
	assert.Equal(t, "%PDF", string(sent[0].attachments[0].Data[:4]))

	require.Len(t, ta.whatsappMsgs.sent, 1)
	assert.Equal(t, "+919876543210", ta.whatsappMsgs.sent[0].To)
	assert.Contains(t, ta.whatsappMsgs.sent[0].Body, "MUSEUM-123456-7890")
}

func TestCreateBookingLinksAuthenticatedUser(t *testing.T) {
	ta := newTestApplication(t)

	ta.users.On("GetForToken", entity.ScopeAuthentication, testToken).Return(&entity.User{ID: 5, Activated: true}, nil)
	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	insertsBooking(ta)

	res := ta.do(t, http.MethodPost, "/v1/bookings", bookingRequest(entity.PaymentCash), true)

	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	booking := res.decode(t)["booking"].(map[string]any)
	assert.EqualValues(t, 5, booking["user_id"])
}

func TestCreateBookingOnlinePayment(t *testing.T) {
	ta := newTestApplication(t)

	gateway := new(MockGateway)
	ta.payments = gateway

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	insertsBooking(ta)
	gateway.On("CreateOrder", mock.MatchedBy(func(o payment.Order) bool {
		return o.Reference == "MUSEUM-123456-7890" && o.Amount.Equal(decimal.NewFromInt(120))
	})).Return(&payment.OrderResult{Code: 1, OrderURL: "https://pay.example/order/1"}, nil)

	res := ta.do(t, http.MethodPost, "/v1/bookings", bookingRequest(entity.PaymentZaloPay), false)

	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	body := res.decode(t)
	assert.Equal(t, "pending", body["booking"].(map[string]any)["status"])
	assert.Equal(t, "https://pay.example/order/1", body["payment"].(map[string]any)["order_url"])

	assert.Empty(t, ta.mail.messages(), "pending bookings are not delivered")
	gateway.AssertExpectations(t)
}

func TestCreateBookingGatewayFailureCancels(t *testing.T) {
	ta := newTestApplication(t)

	gateway := new(MockGateway)
	ta.payments = gateway

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	insertsBooking(ta)
	gateway.On("CreateOrder", mock.Anything).Return(nil, payment.ErrOrderRejected)
	ta.bookings.On("UpdateStatus", mock.AnythingOfType("*entity.Booking"), entity.BookingCancelled).Return(nil)

	res := ta.do(t, http.MethodPost, "/v1/bookings", bookingRequest(entity.PaymentZaloPay), false)

	assert.Equal(t, http.StatusBadGateway, res.status)
}

func TestCreateBookingOnlinePaymentUnavailable(t *testing.T) {
	ta := newTestApplication(t)

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)

	res := ta.do(t, http.MethodPost, "/v1/bookings", bookingRequest(entity.PaymentZaloPay), false)

	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	errs := res.decode(t)["error"].(map[string]any)
	assert.Contains(t, errs, "payment_method")
}

func TestCreateBookingValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"bad date format", func(b map[string]any) { b["visit_date"] = "03/04/2030" }, "visit_date"},
		{"past date", func(b map[string]any) { b["visit_date"] = "2001-01-01" }, "visit_date"},
		{"no tickets", func(b map[string]any) { b["tickets"] = []map[string]any{} }, "tickets"},
		{"bad email", func(b map[string]any) { b["email"] = "not-an-email" }, "email"},
		{"bad payment method", func(b map[string]any) { b["payment_method"] = "cheque" }, "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApplication(t)

			body := bookingRequest(entity.PaymentCash)
			tt.mutate(body)

			res := ta.do(t, http.MethodPost, "/v1/bookings", body, false)

			require.Equal(t, http.StatusUnprocessableEntity, res.status)
			assert.Contains(t, res.decode(t)["error"], tt.field)
		})
	}
}

func TestCreateBookingUnknownTicketType(t *testing.T) {
	ta := newTestApplication(t)

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)

	body := bookingRequest(entity.PaymentCash)
	body["tickets"] = []map[string]any{{"type": "senior", "quantity": 1}}

	res := ta.do(t, http.MethodPost, "/v1/bookings", body, false)

	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Contains(t, res.decode(t)["error"], "tickets")
}

func TestCreateBookingUnknownMuseum(t *testing.T) {
	ta := newTestApplication(t)

	ta.museums.On("Get", int64(7)).Return(nil, repository.ErrRecordNotFound)

	res := ta.do(t, http.MethodPost, "/v1/bookings", bookingRequest(entity.PaymentCash), false)

	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Equal(t, "does not exist", res.decode(t)["error"].(map[string]any)["museum_id"])
}

func TestShowBookingOwnership(t *testing.T) {
	owner := int64(5)
	booking := &entity.Booking{ID: 42, Reference: "MUSEUM-123456-7890", UserID: &owner, Status: entity.BookingConfirmed}

	t.Run("owner", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.users.On("GetForToken", entity.ScopeAuthentication, testToken).Return(&entity.User{ID: 5, Activated: true}, nil)
		ta.bookings.On("Get", int64(42)).Return(booking, nil)

		res := ta.do(t, http.MethodGet, "/v1/bookings/42", nil, true)
		assert.Equal(t, http.StatusOK, res.status)
	})

	t.Run("stranger", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 9, Activated: true}, repository.PermissionUser)
		ta.bookings.On("Get", int64(42)).Return(booking, nil)

		res := ta.do(t, http.MethodGet, "/v1/bookings/42", nil, true)
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	t.Run("admin", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionUser, repository.PermissionAdmin)
		ta.bookings.On("Get", int64(42)).Return(booking, nil)

		res := ta.do(t, http.MethodGet, "/v1/bookings/42", nil, true)
		assert.Equal(t, http.StatusOK, res.status)
	})

	t.Run("anonymous", func(t *testing.T) {
		ta := newTestApplication(t)

		res := ta.do(t, http.MethodGet, "/v1/bookings/42", nil, false)
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})
}

func TestListBookingsScopesToUser(t *testing.T) {
	ta := newTestApplication(t)
	ta.loginAs(&entity.User{ID: 9, Activated: true}, repository.PermissionUser)

	ta.bookings.On("GetAll", int64(9), int64(0), "", "", mock.AnythingOfType("repository.Filters")).
		Return([]*entity.Booking{}, repository.Metadata{}, nil)

	res := ta.do(t, http.MethodGet, "/v1/bookings?user_id=3", nil, true)

	require.Equal(t, http.StatusOK, res.status)
	assert.NotContains(t, res.decode(t), "fallback")
}

func TestListBookingsAdminFallback(t *testing.T) {
	ta := newTestApplication(t)
	ta.config.Fallback.Enabled = true
	ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

	ta.bookings.On("GetAll", int64(0), int64(0), "", "", mock.AnythingOfType("repository.Filters")).
		Return([]*entity.Booking{}, repository.Metadata{}, nil)

	res := ta.do(t, http.MethodGet, "/v1/bookings", nil, true)

	require.Equal(t, http.StatusOK, res.status)
	body := res.decode(t)
	assert.Equal(t, true, body["fallback"])
	assert.NotEmpty(t, body["bookings"])
	metadata := body["metadata"].(map[string]any)
	assert.EqualValues(t, len(body["bookings"].([]any)), metadata["total_records"])
	assert.EqualValues(t, 1, metadata["last_page"])
}

func TestUpdateBookingStatus(t *testing.T) {
	t.Run("cancel sends notice", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

		booking := &entity.Booking{ID: 42, Reference: "MUSEUM-123456-7890", Email: "asha@example.com", Status: entity.BookingConfirmed}
		ta.bookings.On("Get", int64(42)).Return(booking, nil)
		ta.bookings.On("UpdateStatus", booking, entity.BookingCancelled).Return(nil)

		res := ta.do(t, http.MethodPatch, "/v1/bookings/42/status", map[string]any{"status": "cancelled"}, true)

		require.Equal(t, http.StatusOK, res.status)
		sent := ta.mail.messages()
		require.Len(t, sent, 1)
		assert.Equal(t, "booking_cancelled.tmpl", sent[0].template)
	})

	t.Run("terminal status", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

		booking := &entity.Booking{ID: 42, Status: entity.BookingCompleted}
		ta.bookings.On("Get", int64(42)).Return(booking, nil)
		ta.bookings.On("UpdateStatus", booking, entity.BookingConfirmed).Return(repository.ErrInvalidTransition)

		res := ta.do(t, http.MethodPatch, "/v1/bookings/42/status", map[string]any{"status": "confirmed"}, true)

		assert.Equal(t, http.StatusConflict, res.status)
	})

	t.Run("not admin", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 9, Activated: true}, repository.PermissionUser)

		res := ta.do(t, http.MethodPatch, "/v1/bookings/42/status", map[string]any{"status": "cancelled"}, true)

		assert.Equal(t, http.StatusForbidden, res.status)
	})
}

func TestChatBackendBook(t *testing.T) {
	ta := newTestApplication(t)

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	insertsBooking(ta)

	booking := &entity.Booking{
		MuseumID:      7,
		VisitDate:     time.Now().UTC().AddDate(0, 0, 1),
		Tickets:       []entity.TicketLine{{Type: "adult", Quantity: 2}},
		VisitorName:   "asha",
		Email:         "asha@example.com",
		PaymentMethod: entity.PaymentCash,
	}

	err := chatBackend{app: ta.application}.Book(t.Context(), booking)
	ta.wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, entity.BookingConfirmed, booking.Status)
	assert.True(t, booking.TotalAmount.Equal(decimal.NewFromInt(100)))
	assert.Len(t, ta.mail.messages(), 1)
}

func TestChatBackendBookRejectsInvalid(t *testing.T) {
	ta := newTestApplication(t)

	err := chatBackend{app: ta.application}.Book(t.Context(), &entity.Booking{})

	var vErr *validationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.errors, "museum_id")
}
