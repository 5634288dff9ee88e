package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/repository"
	"museum.zuyanh.net/internal/ticket"
	"museum.zuyanh.net/internal/validator"
)

// issuedTicket is either a museum booking or an event registration; the
// reference prefix decides which.
type issuedTicket struct {
	booking      *entity.Booking
	registration *entity.Registration
}

func (t issuedTicket) email() string {
	if t.booking != nil {
		return t.booking.Email
	}
	return t.registration.Email
}

func (t issuedTicket) payload() ticket.Payload {
	if t.booking != nil {
		return ticket.BookingPayload(t.booking)
	}
	return ticket.RegistrationPayload(t.registration)
}

func (t issuedTicket) pdf() ([]byte, error) {
	if t.booking != nil {
		return ticket.BookingPDF(t.booking)
	}
	return ticket.RegistrationPDF(t.registration)
}

// active reports whether the ticket still admits its holder.
func (t issuedTicket) active() bool {
	if t.booking != nil {
		return t.booking.Status == entity.BookingConfirmed
	}
	return t.registration.Status == entity.RegistrationRegistered
}

func (t issuedTicket) envelope() envelope {
	if t.booking != nil {
		return envelope{"booking": t.booking}
	}
	return envelope{"registration": t.registration}
}

func (app *application) lookupTicket(reference string) (issuedTicket, error) {
	switch {
	case strings.HasPrefix(reference, repository.BookingReferencePrefix+"-"):
		booking, err := app.models.Bookings.GetByReference(reference)
		return issuedTicket{booking: booking}, err
	case strings.HasPrefix(reference, repository.RegistrationReferencePrefix+"-"):
		reg, err := app.models.Registrations.GetByReference(reference)
		return issuedTicket{registration: reg}, err
	default:
		return issuedTicket{}, repository.ErrRecordNotFound
	}
}

// readTicket loads the ticket named in the URL and writes the error response
// itself when it cannot.
func (app *application) readTicket(w http.ResponseWriter, r *http.Request) (issuedTicket, bool) {
	t, err := app.lookupTicket(app.readReferenceParam(r))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return issuedTicket{}, false
	}
	return t, true
}

// readOwnerTicket is readTicket plus the email check guests use in place of
// an account. A mismatch looks the same as an unknown reference.
func (app *application) readOwnerTicket(w http.ResponseWriter, r *http.Request) (issuedTicket, bool) {
	var input struct {
		Email string `json:"email"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return issuedTicket{}, false
	}

	v := validator.New()
	if repository.ValidateEmail(v, input.Email); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return issuedTicket{}, false
	}

	t, ok := app.readTicket(w, r)
	if !ok {
		return issuedTicket{}, false
	}

	if !strings.EqualFold(strings.TrimSpace(input.Email), t.email()) {
		app.notFoundErrorResponse(w, r)
		return issuedTicket{}, false
	}

	return t, true
}

func (app *application) showTicketHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := app.readTicket(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, t.envelope(), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) ticketQRHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()

	size := app.readInt(r.URL.Query(), "size", ticket.DefaultQRSize, v)
	if v.Check(size >= 64 && size <= 1024, "size", "must be between 64 and 1024"); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	t, ok := app.readTicket(w, r)
	if !ok {
		return
	}

	png, err := ticket.QRCode(t.payload(), size)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (app *application) ticketPDFHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := app.readTicket(w, r)
	if !ok {
		return
	}

	reference := t.payload().Reference

	if app.archive != nil && t.active() {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		found, err := app.archive.Exists(ctx, reference)
		if err != nil {
			app.logError(r, err)
		}
		if found {
			url, err := app.archive.URL(ctx, reference)
			if err == nil {
				http.Redirect(w, r, url, http.StatusFound)
				return
			}
			app.logError(r, err)
		}
	}

	pdf, err := t.pdf()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, reference))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (app *application) cancelTicketHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := app.readOwnerTicket(w, r)
	if !ok {
		return
	}

	if t.booking != nil {
		app.changeBookingStatus(w, r, t.booking, entity.BookingCancelled)
		return
	}

	app.changeRegistrationStatus(w, r, t.registration, entity.RegistrationCancelled)
}

func (app *application) resendTicketHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := app.readOwnerTicket(w, r)
	if !ok {
		return
	}

	switch {
	case t.booking != nil && t.booking.Status == entity.BookingConfirmed:
		app.deliverBooking(t.booking)
	case t.registration != nil && t.registration.Status == entity.RegistrationRegistered:
		app.deliverRegistration(t.registration)
	default:
		app.errorResponse(w, r, http.StatusConflict, "only active tickets can be resent")
		return
	}

	err := app.writeJSON(w, http.StatusAccepted, envelope{"message": "your ticket is on its way"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
