package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/repository"
	"museum.zuyanh.net/internal/validator"
)

func (app *application) createRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input struct {
		AttendeeName string `json:"attendee_name"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		Attendees    int32  `json:"attendees"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Attendees == 0 {
		input.Attendees = 1
	}

	reg := &entity.Registration{
		EventID:      eventID,
		AttendeeName: strings.TrimSpace(input.AttendeeName),
		Email:        strings.TrimSpace(input.Email),
		Phone:        strings.TrimSpace(input.Phone),
		Attendees:    input.Attendees,
	}

	if user := app.contextGetUser(r); !user.IsAnonymous() {
		reg.UserID = &user.ID
	}

	v := validator.New()

	if repository.ValidateRegistration(v, reg); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	event, err := app.models.Events.Get(eventID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if !event.StartsAt.After(time.Now()) {
		app.failedValidationResponse(w, r, map[string]string{"event": "has already started"})
		return
	}

	err = app.models.Registrations.Insert(reg)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.Is(err, repository.ErrEventFull):
			app.eventFullResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.metrics.registrations.Inc()
	app.deliverRegistration(reg)

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/tickets/%s", reg.Reference))

	err = app.writeJSON(w, http.StatusCreated, envelope{"registration": reg}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) readRegistrationFilters(r *http.Request, v *validator.Validator) repository.Filters {
	qs := r.URL.Query()

	return repository.Filters{
		Page:         app.readInt(qs, "page", 1, v),
		PageSize:     app.readInt(qs, "page_size", 20, v),
		Sort:         app.readString(qs, "sort", "-created_at"),
		SortSafelist: []string{"id", "created_at", "attendees", "-id", "-created_at", "-attendees"},
	}
}

func (app *application) listEventRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	v := validator.New()

	filters := app.readRegistrationFilters(r, v)

	if repository.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	registrations, metadata, err := app.models.Registrations.GetAllForEvent(eventID, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"registrations": registrations, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listUserRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()

	filters := app.readRegistrationFilters(r, v)

	if repository.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user := app.contextGetUser(r)

	registrations, metadata, err := app.models.Registrations.GetAllForUser(user.ID, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"registrations": registrations, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateRegistrationStatusHandler lets staff mark a registration attended at
// the door, or cancel it.
func (app *application) updateRegistrationStatusHandler(w http.ResponseWriter, r *http.Request) {
	reference := app.readReferenceParam(r)
	if !strings.HasPrefix(reference, repository.RegistrationReferencePrefix+"-") {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input struct {
		Status string `json:"status"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	if v.Check(validator.PermittedValue(input.Status, entity.RegistrationStatuses...), "status", "invalid status"); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	reg, err := app.models.Registrations.GetByReference(reference)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.changeRegistrationStatus(w, r, reg, entity.RegistrationStatus(input.Status))
}

// changeRegistrationStatus applies a transition and writes the updated
// registration. A registration that leaves the registered state no longer
// admits anyone, so its archived PDF is dropped.
func (app *application) changeRegistrationStatus(w http.ResponseWriter, r *http.Request, reg *entity.Registration, to entity.RegistrationStatus) {
	err := app.models.Registrations.UpdateStatus(reg, to)
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

	reference := reg.Reference
	app.background(func() {
		app.discardArchived(reference)
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"registration": reg}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
