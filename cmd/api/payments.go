package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/payment"
	"museum.zuyanh.net/internal/repository"
)

type paymentGateway interface {
	CreateOrder(ctx context.Context, order payment.Order) (*payment.OrderResult, error)
	VerifyCallback(cb payment.Callback) (string, *payment.CallbackData, error)
}

// Gateway callback return codes. Anything other than these makes the
// gateway retry.
const (
	callbackOK        = 1
	callbackProcessed = 2
	callbackRejected  = -1
)

func (app *application) callbackResponse(w http.ResponseWriter, r *http.Request, code int, message string) {
	err := app.writeJSON(w, http.StatusOK, envelope{"return_code": code, "return_message": message}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// paymentCallbackHandler confirms a pending booking once the gateway reports
// the payment as settled.
func (app *application) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if app.payments == nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input payment.Callback

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reference, data, err := app.payments.VerifyCallback(input)
	if err != nil {
		app.logError(r, err)
		app.callbackResponse(w, r, callbackRejected, "mac not equal")
		return
	}

	booking, err := app.models.Bookings.GetByReference(reference)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			app.logger.PrintError(err, map[string]string{"reference": reference, "zp_trans_id": strconv.FormatInt(data.ZpTransID, 10)})
			app.callbackResponse(w, r, callbackProcessed, "unknown order")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if booking.Status != entity.BookingPending {
		// Paid after the sweeper cancelled it; needs a manual refund.
		if booking.Status == entity.BookingCancelled {
			app.logger.PrintError(errors.New("payment received for cancelled booking"), map[string]string{
				"reference":   reference,
				"zp_trans_id": strconv.FormatInt(data.ZpTransID, 10),
			})
		}
		app.callbackResponse(w, r, callbackProcessed, "already processed")
		return
	}

	if booking.TotalAmount.Round(0).IntPart() != data.Amount {
		app.logger.PrintError(errors.New("payment amount mismatch"), map[string]string{
			"reference": reference,
			"expected":  booking.TotalAmount.String(),
			"paid":      strconv.FormatInt(data.Amount, 10),
		})
		app.callbackResponse(w, r, callbackRejected, "amount mismatch")
		return
	}

	err = app.models.Bookings.UpdateStatus(booking, entity.BookingConfirmed)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEditConflict), errors.Is(err, repository.ErrInvalidTransition):
			app.callbackResponse(w, r, callbackProcessed, "already processed")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.deliverBooking(booking)

	app.callbackResponse(w, r, callbackOK, "success")
}
