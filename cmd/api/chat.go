package main

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"museum.zuyanh.net/internal/chatbot"
	"museum.zuyanh.net/internal/validator"
)

func (app *application) chatHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	v.Check(utf8.RuneCountInString(input.Message) <= 2000, "message", "must not be more than 2000 characters")
	v.Check(len(input.SessionID) <= 64, "session_id", "must not be more than 64 bytes")

	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	reply, err := app.chat.Reply(r.Context(), input.SessionID, input.Message)
	if err != nil {
		switch {
		case errors.Is(err, chatbot.ErrEmptyMessage):
			app.failedValidationResponse(w, r, map[string]string{"message": "must be provided"})
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"reply": reply}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
