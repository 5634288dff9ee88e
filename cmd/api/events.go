package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/repository"
	"museum.zuyanh.net/internal/validator"
)

func (app *application) createEventHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MuseumID    int64           `json:"museum_id"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		StartsAt    time.Time       `json:"starts_at"`
		EndsAt      time.Time       `json:"ends_at"`
		Capacity    int32           `json:"capacity"`
		Price       decimal.Decimal `json:"price"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	event := &entity.Event{
		MuseumID:    input.MuseumID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Capacity:    input.Capacity,
		Price:       input.Price,
	}

	v := validator.New()

	if repository.ValidateEvent(v, event); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Events.Insert(event)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrViolatesForeignKey):
			app.failedValidationResponse(w, r, map[string]string{"museum_id": "does not exist"})
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	headers := make(http.Header)
	headers.Set("Location", "/v1/events/"+strconv.FormatInt(event.ID, 10))

	err = app.writeJSON(w, http.StatusCreated, envelope{"event": event}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showEventHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	event, err := app.models.Events.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"event": event, "seats_left": event.SeatsLeft()}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MuseumID int64
		Q        string
		Date     string
		Upcoming bool
		repository.Filters
	}

	v := validator.New()

	qs := r.URL.Query()

	input.MuseumID = int64(app.readInt(qs, "museum_id", 0, v))
	input.Q = app.readString(qs, "q", "")
	input.Date = app.readString(qs, "date", "")
	input.Upcoming = app.readBool(qs, "upcoming", false, v)

	input.Filters.Page = app.readInt(qs, "page", 1, v)
	input.Filters.PageSize = app.readInt(qs, "page_size", 20, v)
	input.Filters.Sort = app.readString(qs, "sort", "starts_at")
	input.Filters.SortSafelist = []string{"id", "starts_at", "title", "price", "-id", "-starts_at", "-title", "-price"}

	repository.ValidateDateFormat(v, input.Date)

	if repository.ValidateFilters(v, input.Filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	events, metadata, err := app.models.Events.GetAll(input.MuseumID, input.Q, input.Date, input.Upcoming, input.Filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{"events": events, "metadata": metadata}

	if len(events) == 0 && app.useFallback(input.Filters) && input.Date == "" {
		sample := repository.FallbackEvents(input.MuseumID, input.Q, time.Now())
		env["events"] = sample
		env["metadata"] = repository.FallbackMetadata(len(sample))
		env["fallback"] = true
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateEventHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	event, err := app.models.Events.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if r.Header.Get("X-Expected-Version") != "" {
		if strconv.FormatInt(int64(event.Version), 10) != r.Header.Get("X-Expected-Version") {
			app.editConflictResponse(w, r)
			return
		}
	}

	var input struct {
		Title       *string          `json:"title"`
		Description *string          `json:"description"`
		Category    *string          `json:"category"`
		StartsAt    *time.Time       `json:"starts_at"`
		EndsAt      *time.Time       `json:"ends_at"`
		Capacity    *int32           `json:"capacity"`
		Price       *decimal.Decimal `json:"price"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Title != nil {
		event.Title = *input.Title
	}
	if input.Description != nil {
		event.Description = *input.Description
	}
	if input.Category != nil {
		event.Category = *input.Category
	}
	if input.StartsAt != nil {
		event.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		event.EndsAt = *input.EndsAt
	}
	if input.Capacity != nil {
		event.Capacity = *input.Capacity
	}
	if input.Price != nil {
		event.Price = *input.Price
	}

	v := validator.New()

	repository.ValidateEvent(v, event)
	v.Check(event.Capacity >= event.Registered, "capacity", "must not be less than the places already registered")

	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Events.Update(event)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"event": event}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteEventHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	err = app.models.Events.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "event successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
