package main

import "net/http"

func (app *application) showStatsHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := app.models.Stats.Summary()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"stats": summary}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
