package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"museum.zuyanh.net/internal/repository"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return app.requirePermission(repository.PermissionAdmin, next)
	}

	// guest base
	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	router.HandlerFunc(http.MethodGet, "/v1/museums", app.listMuseumsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/museums/:id", app.showMuseumHandler)
	router.HandlerFunc(http.MethodGet, "/v1/museums/:id/events", app.listMuseumEventsHandler)

	router.HandlerFunc(http.MethodGet, "/v1/events", app.listEventsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/events/:id", app.showEventHandler)
	router.HandlerFunc(http.MethodPost, "/v1/events/:id/registrations", app.createRegistrationHandler)

	router.HandlerFunc(http.MethodPost, "/v1/bookings", app.createBookingHandler)

	router.HandlerFunc(http.MethodGet, "/v1/tickets/:reference", app.showTicketHandler)
	router.HandlerFunc(http.MethodGet, "/v1/tickets/:reference/qr", app.ticketQRHandler)
	router.HandlerFunc(http.MethodGet, "/v1/tickets/:reference/pdf", app.ticketPDFHandler)
	router.HandlerFunc(http.MethodPost, "/v1/tickets/:reference/cancel", app.cancelTicketHandler)
	router.HandlerFunc(http.MethodPost, "/v1/tickets/:reference/resend", app.resendTicketHandler)

	router.HandlerFunc(http.MethodPost, "/v1/payments/callback", app.paymentCallbackHandler)
	router.HandlerFunc(http.MethodPost, "/v1/chat", app.chatHandler)

	router.HandlerFunc(http.MethodPost, "/v1/users", app.registerUserHandler)
	router.HandlerFunc(http.MethodPut, "/v1/users/activated", app.activateUserHandler)
	router.HandlerFunc(http.MethodPost, "/v1/tokens/authentication", app.createAuthenticationTokenHandler)

	// user base
	router.HandlerFunc(http.MethodGet, "/v1/bookings", app.requireActivatedUser(app.listBookingsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/bookings/:id", app.requireActivatedUser(app.showBookingHandler))
	router.HandlerFunc(http.MethodGet, "/v1/registrations", app.requireActivatedUser(app.listUserRegistrationsHandler))

	// admin base
	router.HandlerFunc(http.MethodPost, "/v1/museums", admin(app.createMuseumHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/museums/:id", admin(app.updateMuseumHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/museums/:id", admin(app.deleteMuseumHandler))

	router.HandlerFunc(http.MethodPost, "/v1/events", admin(app.createEventHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/events/:id", admin(app.updateEventHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/events/:id", admin(app.deleteEventHandler))
	router.HandlerFunc(http.MethodGet, "/v1/events/:id/registrations", admin(app.listEventRegistrationsHandler))

	router.HandlerFunc(http.MethodPatch, "/v1/bookings/:id/status", admin(app.updateBookingStatusHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/registrations/:reference/status", admin(app.updateRegistrationStatusHandler))

	router.HandlerFunc(http.MethodGet, "/v1/admin/stats", admin(app.showStatsHandler))

	if app.config.Metrics.Enabled {
		router.Handler(http.MethodGet, "/metrics", app.metrics.handler())
	}

	return app.metricsMiddleware(app.recoverPanic(app.enableCORS(app.rateLimit(app.authenticate(router)))))
}
