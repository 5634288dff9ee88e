// Package ticket renders the QR codes and PDF tickets handed to visitors.
package ticket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
	"museum.zuyanh.net/internal/entity"
)

const (
	KindBooking      = "museum_visit"
	KindRegistration = "event_registration"

	DefaultQRSize = 256
)

// Payload is the JSON encoded into a ticket's QR code. The reference is the
// only field a scanner needs; the rest is for humans reading the raw code.
type Payload struct {
	Reference string `json:"reference"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Admits    int32  `json:"admits"`
}

func BookingPayload(b *entity.Booking) Payload {
	return Payload{
		Reference: b.Reference,
		Kind:      KindBooking,
		Title:     b.MuseumName,
		Date:      b.VisitDate.Format(time.DateOnly),
		Admits:    b.Admits(),
	}
}

func RegistrationPayload(r *entity.Registration) Payload {
	return Payload{
		Reference: r.Reference,
		Kind:      KindRegistration,
		Title:     r.EventTitle,
		Date:      r.EventStarts.Format(time.DateOnly),
		Admits:    r.Attendees,
	}
}

// QRCode returns a PNG of the payload, size pixels square.
func QRCode(p Payload, size int) ([]byte, error) {
	content, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(string(content), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("ticket: encode qr: %w", err)
	}

	return png, nil
}

type line struct {
	label string
	value string
}

func BookingPDF(b *entity.Booking) ([]byte, error) {
	lines := []line{
		{"Reference", b.Reference},
		{"Visitor", b.VisitorName},
		{"Visit date", b.VisitDate.Format("Monday, 2 January 2006")},
		{"Payment", b.PaymentMethod},
		{"Status", string(b.Status)},
	}

	var items []line
	for _, t := range b.Tickets {
		items = append(items, line{
			label: fmt.Sprintf("%d x %s @ %s", t.Quantity, t.Type, t.UnitPrice.StringFixed(2)),
			value: t.Subtotal().StringFixed(2),
		})
	}
	items = append(items, line{"Total", b.TotalAmount.StringFixed(2)})

	return render(b.MuseumName, "Museum entry ticket", lines, items, BookingPayload(b))
}

func RegistrationPDF(r *entity.Registration) ([]byte, error) {
	lines := []line{
		{"Reference", r.Reference},
		{"Attendee", r.AttendeeName},
		{"Starts", r.EventStarts.Format("Monday, 2 January 2006 15:04")},
		{"Attendees", fmt.Sprint(r.Attendees)},
		{"Status", string(r.Status)},
	}

	items := []line{{"Total", r.Amount.StringFixed(2)}}

	return render(r.EventTitle, "Event registration", lines, items, RegistrationPayload(r))
}

func render(title, subtitle string, details, items []line, payload Payload) ([]byte, error) {
	qr, err := QRCode(payload, DefaultQRSize)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(title+" - "+payload.Reference, true)
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(title), "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 7, subtitle, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)

	for _, l := range details {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(32, 7, l.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, tr(l.value), "", 1, "L", false, 0, "")
	}

	pdf.Ln(3)
	for i, l := range items {
		style := ""
		border := ""
		if i == len(items)-1 {
			style = "B"
			border = "T"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(90, 7, tr(l.label), border, 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, l.value, border, 1, "R", false, 0, "")
	}

	pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 44, pdf.GetY()+8, 60, 60, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetY(-22)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "Show this code at the entrance. Keep your reference to manage the booking.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ticket: render pdf: %w", err)
	}

	return buf.Bytes(), nil
}
