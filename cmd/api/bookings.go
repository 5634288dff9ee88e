package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/payment"
	"museum.zuyanh.net/internal/repository"
	"museum.zuyanh.net/internal/validator"
)

// validationError carries field errors out of a shared code path so each
// caller can report them its own way.
type validationError struct {
	errors map[string]string
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.errors))
	for field, msg := range e.errors {
		parts = append(parts, field+" "+msg)
	}
	return "invalid booking: " + strings.Join(parts, "; ")
}

// placeBooking validates, prices and stores a booking. Offline payment
// methods are confirmed and delivered straight away; online ones stay
// pending until the gateway calls back.
func (app *application) placeBooking(booking *entity.Booking, now time.Time) error {
	v := validator.New()

	if repository.ValidateBooking(v, booking, now); !v.Valid() {
		return &validationError{v.Errors}
	}

	museum, err := app.models.Museums.Get(booking.MuseumID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			return &validationError{map[string]string{"museum_id": "does not exist"}}
		default:
			return err
		}
	}

	booking.TotalAmount = repository.PriceTickets(v, museum, booking.Tickets)
	if !v.Valid() {
		return &validationError{v.Errors}
	}
	booking.MuseumName = museum.Name

	if entity.IsOnlinePayment(booking.PaymentMethod) {
		if app.payments == nil {
			return &validationError{map[string]string{"payment_method": "online payment is not available"}}
		}
		booking.Status = entity.BookingPending
	} else {
		booking.Status = entity.BookingConfirmed
	}

	err = app.models.Bookings.Insert(booking)
	if err != nil {
		return err
	}

	app.metrics.bookings.WithLabelValues(booking.PaymentMethod).Inc()

	if booking.Status == entity.BookingConfirmed {
		app.deliverBooking(booking)
	}

	return nil
}

func (app *application) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MuseumID      int64               `json:"museum_id"`
		VisitDate     string              `json:"visit_date"`
		Tickets       []entity.TicketLine `json:"tickets"`
		VisitorName   string              `json:"visitor_name"`
		Email         string              `json:"email"`
		Phone         string              `json:"phone"`
		PaymentMethod string              `json:"payment_method"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	visitDate, err := time.Parse(time.DateOnly, input.VisitDate)
	if err != nil {
		app.failedValidationResponse(w, r, map[string]string{"visit_date": "must be in YYYY-MM-DD format"})
		return
	}

	booking := &entity.Booking{
		MuseumID:      input.MuseumID,
		VisitDate:     visitDate,
		Tickets:       input.Tickets,
		VisitorName:   strings.TrimSpace(input.VisitorName),
		Email:         strings.TrimSpace(input.Email),
		Phone:         strings.TrimSpace(input.Phone),
		PaymentMethod: input.PaymentMethod,
	}

	if user := app.contextGetUser(r); !user.IsAnonymous() {
		booking.UserID = &user.ID
	}

	err = app.placeBooking(booking, time.Now().UTC())
	if err != nil {
		var vErr *validationError
		switch {
		case errors.As(err, &vErr):
			app.failedValidationResponse(w, r, vErr.errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	env := envelope{"booking": booking}

	if booking.Status == entity.BookingPending {
		order, err := app.payments.CreateOrder(r.Context(), payment.Order{
			Reference:   booking.Reference,
			AppUser:     booking.Email,
			Amount:      booking.TotalAmount,
			Description: fmt.Sprintf("%s - %s", booking.MuseumName, booking.Reference),
		})
		if err != nil {
			if cancelErr := app.models.Bookings.UpdateStatus(booking, entity.BookingCancelled); cancelErr != nil {
				app.logError(r, cancelErr)
			}
			app.paymentFailedResponse(w, r, err)
			return
		}

		env["payment"] = order
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/tickets/%s", booking.Reference))

	err = app.writeJSON(w, http.StatusCreated, env, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showBookingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	booking, err := app.models.Bookings.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	user := app.contextGetUser(r)
	if booking.UserID == nil || *booking.UserID != user.ID {
		admin, err := app.isAdmin(r)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		if !admin {
			app.notFoundErrorResponse(w, r)
			return
		}
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"booking": booking}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID    int64
		MuseumID  int64
		Status    string
		VisitDate string
		repository.Filters
	}

	v := validator.New()

	qs := r.URL.Query()

	input.UserID = int64(app.readInt(qs, "user_id", 0, v))
	input.MuseumID = int64(app.readInt(qs, "museum_id", 0, v))
	input.Status = app.readString(qs, "status", "")
	input.VisitDate = app.readString(qs, "visit_date", "")

	input.Filters.Page = app.readInt(qs, "page", 1, v)
	input.Filters.PageSize = app.readInt(qs, "page_size", 20, v)
	input.Filters.Sort = app.readString(qs, "sort", "-created_at")
	input.Filters.SortSafelist = []string{"id", "created_at", "visit_date", "total_amount", "-id", "-created_at", "-visit_date", "-total_amount"}

	if input.Status != "" {
		v.Check(validator.PermittedValue(input.Status, entity.BookingStatuses...), "status", "invalid status")
	}
	repository.ValidateDateFormat(v, input.VisitDate)

	if repository.ValidateFilters(v, input.Filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	admin, err := app.isAdmin(r)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if !admin {
		input.UserID = app.contextGetUser(r).ID
	}

	bookings, metadata, err := app.models.Bookings.GetAll(input.UserID, input.MuseumID, input.Status, input.VisitDate, input.Filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{"bookings": bookings, "metadata": metadata}

	if admin && len(bookings) == 0 && app.useFallback(input.Filters) && input.UserID == 0 && input.MuseumID == 0 && input.VisitDate == "" {
		sample := repository.FallbackBookings(input.Status, time.Now())
		env["bookings"] = sample
		env["metadata"] = repository.FallbackMetadata(len(sample))
		env["fallback"] = true
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input struct {
		Status string `json:"status"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	if v.Check(validator.PermittedValue(input.Status, entity.BookingStatuses...), "status", "invalid status"); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	booking, err := app.models.Bookings.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.changeBookingStatus(w, r, booking, entity.BookingStatus(input.Status))
}

// changeBookingStatus applies a transition, notifies the visitor and writes
// the updated booking.
func (app *application) changeBookingStatus(w http.ResponseWriter, r *http.Request, booking *entity.Booking, to entity.BookingStatus) {
	err := app.models.Bookings.UpdateStatus(booking, to)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidTransition):
			app.invalidTransitionResponse(w, r)
		case errors.Is(err, repository.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	switch to {
	case entity.BookingConfirmed:
		app.deliverBooking(booking)
	case entity.BookingCancelled:
		app.notifyBookingCancelled(booking)
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"booking": booking}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// useFallback reports whether an empty first page may be padded with sample
// records.
func (app *application) useFallback(f repository.Filters) bool {
	return app.config.Fallback.Enabled && f.Page == 1
}

// chatBackend gives the chatbot read access to museums and lets it place
// pay-at-desk bookings through the same path as the API.
type chatBackend struct {
	app *application
}

func (b chatBackend) Museums(ctx context.Context) ([]*entity.Museum, error) {
	filters := repository.Filters{Page: 1, PageSize: 100, Sort: "name", SortSafelist: []string{"name"}}

	museums, _, err := b.app.models.Museums.GetAll("", "", "", filters)
	if err != nil {
		return nil, err
	}

	if len(museums) == 0 && b.app.config.Fallback.Enabled {
		return repository.FallbackMuseums("", "", ""), nil
	}

	return museums, nil
}

func (b chatBackend) Book(_ context.Context, booking *entity.Booking) error {
	return b.app.placeBooking(booking, time.Now().UTC())
}
