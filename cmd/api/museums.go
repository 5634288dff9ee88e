package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/repository"
	"museum.zuyanh.net/internal/validator"
)

func (app *application) createMuseumHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name         string              `json:"name"`
		Description  string              `json:"description"`
		City         string              `json:"city"`
		Address      string              `json:"address"`
		Category     string              `json:"category"`
		ImageURL     string              `json:"image_url"`
		OpeningHours string              `json:"opening_hours"`
		TicketTypes  []entity.TicketType `json:"ticket_types"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	museum := &entity.Museum{
		Name:         input.Name,
		Description:  input.Description,
		City:         input.City,
		Address:      input.Address,
		Category:     input.Category,
		ImageURL:     input.ImageURL,
		OpeningHours: input.OpeningHours,
		TicketTypes:  input.TicketTypes,
	}

	v := validator.New()

	if repository.ValidateMuseum(v, museum); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Museums.Insert(museum)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateConstraint):
			app.duplicateConstraintResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	headers := make(http.Header)
	headers.Set("Location", "/v1/museums/"+strconv.FormatInt(museum.ID, 10))

	err = app.writeJSON(w, http.StatusCreated, envelope{"museum": museum}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showMuseumHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	museum, err := app.models.Museums.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			if sample, ok := repository.FallbackMuseum(id); ok && app.config.Fallback.Enabled {
				err = app.writeJSON(w, http.StatusOK, envelope{"museum": sample, "fallback": true}, nil)
				if err != nil {
					app.serverErrorResponse(w, r, err)
				}
				return
			}
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"museum": museum}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listMuseumsHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Q        string
		City     string
		Category string
		repository.Filters
	}

	v := validator.New()

	qs := r.URL.Query()

	input.Q = app.readString(qs, "q", "")
	input.City = app.readString(qs, "city", "")
	input.Category = app.readString(qs, "category", "")

	input.Filters.Page = app.readInt(qs, "page", 1, v)
	input.Filters.PageSize = app.readInt(qs, "page_size", 20, v)
	input.Filters.Sort = app.readString(qs, "sort", "id")
	input.Filters.SortSafelist = []string{"id", "name", "city", "-id", "-name", "-city"}

	if repository.ValidateFilters(v, input.Filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	museums, metadata, err := app.models.Museums.GetAll(input.Q, input.City, input.Category, input.Filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{"museums": museums, "metadata": metadata}

	if len(museums) == 0 && app.useFallback(input.Filters) {
		sample := repository.FallbackMuseums(input.Q, input.City, input.Category)
		env["museums"] = sample
		env["metadata"] = repository.FallbackMetadata(len(sample))
		env["fallback"] = true
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateMuseumHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	museum, err := app.models.Museums.Get(id)
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
		if strconv.FormatInt(int64(museum.Version), 10) != r.Header.Get("X-Expected-Version") {
			app.editConflictResponse(w, r)
			return
		}
	}

	var input struct {
		Name         *string             `json:"name"`
		Description  *string             `json:"description"`
		City         *string             `json:"city"`
		Address      *string             `json:"address"`
		Category     *string             `json:"category"`
		ImageURL     *string             `json:"image_url"`
		OpeningHours *string             `json:"opening_hours"`
		TicketTypes  []entity.TicketType `json:"ticket_types"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Name != nil {
		museum.Name = *input.Name
	}
	if input.Description != nil {
		museum.Description = *input.Description
	}
	if input.City != nil {
		museum.City = *input.City
	}
	if input.Address != nil {
		museum.Address = *input.Address
	}
	if input.Category != nil {
		museum.Category = *input.Category
	}
	if input.ImageURL != nil {
		museum.ImageURL = *input.ImageURL
	}
	if input.OpeningHours != nil {
		museum.OpeningHours = *input.OpeningHours
	}
	if input.TicketTypes != nil {
		museum.TicketTypes = input.TicketTypes
	}

	v := validator.New()

	if repository.ValidateMuseum(v, museum); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Museums.Update(museum)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEditConflict):
			app.editConflictResponse(w, r)
		case errors.Is(err, repository.ErrDuplicateConstraint):
			app.duplicateConstraintResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"museum": museum}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteMuseumHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	err = app.models.Museums.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.Is(err, repository.ErrViolatesForeignKey):
			app.violateForeignKeyResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "museum successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listMuseumEventsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	v := validator.New()

	qs := r.URL.Query()

	upcoming := app.readBool(qs, "upcoming", true, v)

	filters := repository.Filters{
		Page:         app.readInt(qs, "page", 1, v),
		PageSize:     app.readInt(qs, "page_size", 20, v),
		Sort:         app.readString(qs, "sort", "starts_at"),
		SortSafelist: []string{"id", "starts_at", "title", "-id", "-starts_at", "-title"},
	}

	if repository.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	_, err = app.models.Museums.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			if _, ok := repository.FallbackMuseum(id); ok && app.config.Fallback.Enabled {
				err = app.writeJSON(w, http.StatusOK, envelope{"events": repository.FallbackEvents(id, "", time.Now()), "fallback": true}, nil)
				if err != nil {
					app.serverErrorResponse(w, r, err)
				}
				return
			}
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	events, metadata, err := app.models.Events.GetAll(id, "", "", upcoming, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"events": events, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
