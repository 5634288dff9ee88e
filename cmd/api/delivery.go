package main

import (
	"context"
	"fmt"
	"time"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/mailer"
	"museum.zuyanh.net/internal/notify"
	"museum.zuyanh.net/internal/ticket"
)

type mailSender interface {
	Send(recipient, templateFile string, data any, attachments ...mailer.Attachment) error
}

type ticketArchive interface {
	Put(ctx context.Context, reference string, pdf []byte) error
	Exists(ctx context.Context, reference string) (bool, error)
	Delete(ctx context.Context, reference string) error
	URL(ctx context.Context, reference string) (string, error)
}

// delivery is everything needed to hand one ticket to a visitor.
type delivery struct {
	reference string
	email     string
	phone     string
	template  string
	data      map[string]any
	summary   string
	render    func() ([]byte, error)
}

// deliverBooking sends the booking's PDF ticket in the background. The
// booking is copied so the caller may keep using its pointer.
func (app *application) deliverBooking(booking *entity.Booking) {
	b := *booking

	app.background(func() {
		app.deliver(delivery{
			reference: b.Reference,
			email:     b.Email,
			phone:     b.Phone,
			template:  "booking_confirmation.tmpl",
			data:      map[string]any{"booking": &b},
			summary: fmt.Sprintf("Your visit to %s on %s is confirmed. Ticket reference: %s (admits %d).",
				b.MuseumName, b.VisitDate.Format("2 Jan 2006"), b.Reference, b.Admits()),
			render: func() ([]byte, error) { return ticket.BookingPDF(&b) },
		})
	})
}

func (app *application) deliverRegistration(registration *entity.Registration) {
	reg := *registration

	app.background(func() {
		app.deliver(delivery{
			reference: reg.Reference,
			email:     reg.Email,
			phone:     reg.Phone,
			template:  "registration_confirmation.tmpl",
			data:      map[string]any{"registration": &reg},
			summary: fmt.Sprintf("You're registered for %s on %s. Reference: %s (%d attendee(s)).",
				reg.EventTitle, reg.EventStarts.Format("2 Jan 2006 15:04"), reg.Reference, reg.Attendees),
			render: func() ([]byte, error) { return ticket.RegistrationPDF(&reg) },
		})
	})
}

func (app *application) notifyBookingCancelled(booking *entity.Booking) {
	b := *booking

	app.background(func() {
		app.discardArchived(b.Reference)

		err := app.mailer.Send(b.Email, "booking_cancelled.tmpl", map[string]any{"booking": &b})
		app.metrics.delivered("email", err)
		if err != nil {
			app.logger.PrintError(err, map[string]string{"reference": b.Reference, "channel": "email"})
		}
	})
}

// deliver renders the ticket, archives it, then emails it and, when the
// visitor left a phone number, sends a WhatsApp summary. A failure on one
// channel does not stop the others.
func (app *application) deliver(d delivery) {
	props := map[string]string{"reference": d.reference}

	pdf, err := d.render()
	if err != nil {
		app.logger.PrintError(err, props)
		return
	}

	var mediaURL string

	if app.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err = app.archive.Put(ctx, d.reference, pdf)
		app.metrics.delivered("archive", err)
		if err != nil {
			app.logger.PrintError(err, map[string]string{"reference": d.reference, "channel": "archive"})
		} else if url, err := app.archive.URL(ctx, d.reference); err == nil {
			mediaURL = url
		}
	}

	err = app.mailer.Send(d.email, d.template, d.data, mailer.Attachment{
		Name: d.reference + ".pdf",
		Data: pdf,
	})
	app.metrics.delivered("email", err)
	if err != nil {
		app.logger.PrintError(err, map[string]string{"reference": d.reference, "channel": "email"})
	}

	if d.phone == "" {
		return
	}

	err = app.whatsapp.Send(notify.Message{
		To:       d.phone,
		Body:     d.summary,
		MediaURL: mediaURL,
	})
	app.metrics.delivered("whatsapp", err)
	if err != nil {
		app.logger.PrintError(err, map[string]string{"reference": d.reference, "channel": "whatsapp"})
	}
}

// discardArchived removes the stored PDF of a ticket that is no longer valid
// so the archive never serves it again.
func (app *application) discardArchived(reference string) {
	if app.archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := app.archive.Delete(ctx, reference)
	if err != nil {
		app.logger.PrintError(err, map[string]string{"reference": reference, "channel": "archive"})
	}
}
