package repository

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"museum.zuyanh.net/internal/entity"
)

// Sample records served when the database has nothing to show, so a demo
// frontend stays populated. They are never written to the database.

var fallbackMuseums = []entity.Museum{
	{
		ID:           1,
		Name:         "National Museum",
		Description:  "Archaeology, fine art and decorative objects spanning five thousand years.",
		City:         "New Delhi",
		Address:      "Janpath Rd, Rajpath Area",
		Category:     "history",
		OpeningHours: "10:00-18:00, closed Monday",
		TicketTypes: []entity.TicketType{
			{Name: "adult", Price: decimal.NewFromInt(20)},
			{Name: "child", Price: decimal.NewFromInt(10)},
			{Name: "foreigner", Price: decimal.NewFromInt(650)},
		},
		Version: 1,
	},
	{
		ID:           2,
		Name:         "Chhatrapati Shivaji Maharaj Vastu Sangrahalaya",
		Description:  "Sculpture, miniature painting and natural history in an Indo-Saracenic building.",
		City:         "Mumbai",
		Address:      "159-161 Mahatma Gandhi Rd, Fort",
		Category:     "art",
		OpeningHours: "10:15-18:00",
		TicketTypes: []entity.TicketType{
			{Name: "adult", Price: decimal.NewFromInt(150)},
			{Name: "child", Price: decimal.NewFromInt(50)},
		},
		Version: 1,
	},
	{
		ID:           3,
		Name:         "Visvesvaraya Industrial and Technological Museum",
		Description:  "Hands-on galleries on engines, electricity, space and science for children.",
		City:         "Bengaluru",
		Address:      "Kasturba Rd, Ambedkar Veedhi",
		Category:     "science",
		OpeningHours: "09:30-18:00",
		TicketTypes: []entity.TicketType{
			{Name: "adult", Price: decimal.NewFromInt(85)},
			{Name: "child", Price: decimal.NewFromInt(40)},
			{Name: "student", Price: decimal.NewFromInt(60)},
		},
		Version: 1,
	},
	{
		ID:           4,
		Name:         "Indian Museum",
		Description:  "The oldest museum in the country, with fossils, mummies and Buddhist art.",
		City:         "Kolkata",
		Address:      "27 Jawaharlal Nehru Rd, Park Street",
		Category:     "history",
		OpeningHours: "10:00-17:00, closed Monday",
		TicketTypes: []entity.TicketType{
			{Name: "adult", Price: decimal.NewFromInt(50)},
			{Name: "foreigner", Price: decimal.NewFromInt(500)},
		},
		Version: 1,
	},
}

func fallbackEvents(now time.Time) []entity.Event {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return []entity.Event{
		{
			ID:          1,
			MuseumID:    1,
			Title:       "Harappan Seals Gallery Walk",
			Description: "A curator-led tour of the Indus valley collection.",
			Category:    "tour",
			StartsAt:    day.AddDate(0, 0, 3).Add(11 * time.Hour),
			EndsAt:      day.AddDate(0, 0, 3).Add(12 * time.Hour),
			Capacity:    25,
			Price:       decimal.NewFromInt(100),
			Registered:  9,
			Version:     1,
		},
		{
			ID:          2,
			MuseumID:    2,
			Title:       "Miniature Painting Workshop",
			Description: "Learn the basics of Mughal miniature technique.",
			Category:    "workshop",
			StartsAt:    day.AddDate(0, 0, 7).Add(14 * time.Hour),
			EndsAt:      day.AddDate(0, 0, 7).Add(17 * time.Hour),
			Capacity:    15,
			Price:       decimal.NewFromInt(800),
			Registered:  4,
			Version:     1,
		},
		{
			ID:          3,
			MuseumID:    3,
			Title:       "Night at the Science Museum",
			Description: "Planetarium shows and live demonstrations after hours.",
			Category:    "special",
			StartsAt:    day.AddDate(0, 0, 14).Add(19 * time.Hour),
			EndsAt:      day.AddDate(0, 0, 14).Add(22 * time.Hour),
			Capacity:    120,
			Price:       decimal.NewFromInt(250),
			Version:     1,
		},
	}
}

func fallbackBookings(now time.Time) []entity.Booking {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return []entity.Booking{
		{
			ID:            1,
			Reference:     "MUSEUM-100001-4821",
			CreatedAt:     day.AddDate(0, 0, -1),
			MuseumID:      1,
			MuseumName:    fallbackMuseums[0].Name,
			VisitDate:     day.AddDate(0, 0, 2),
			Tickets:       []entity.TicketLine{{Type: "adult", Quantity: 2, UnitPrice: decimal.NewFromInt(20)}},
			TotalAmount:   decimal.NewFromInt(40),
			VisitorName:   "Asha Verma",
			Email:         "asha@example.com",
			PaymentMethod: entity.PaymentUPI,
			Status:        entity.BookingConfirmed,
		},
		{
			ID:         2,
			Reference:  "MUSEUM-100002-7310",
			CreatedAt:  day.AddDate(0, 0, -2),
			MuseumID:   3,
			MuseumName: fallbackMuseums[2].Name,
			VisitDate:  day.AddDate(0, 0, 5),
			Tickets: []entity.TicketLine{
				{Type: "adult", Quantity: 1, UnitPrice: decimal.NewFromInt(85)},
				{Type: "child", Quantity: 2, UnitPrice: decimal.NewFromInt(40)},
			},
			TotalAmount:   decimal.NewFromInt(165),
			VisitorName:   "Rahul Nair",
			Email:         "rahul@example.com",
			PaymentMethod: entity.PaymentZaloPay,
			Status:        entity.BookingPending,
		},
	}
}

// FallbackMuseums returns the sample museums matching the same criteria
// MuseumModel.GetAll applies.
func FallbackMuseums(q, city, category string) []*entity.Museum {
	museums := []*entity.Museum{}

	for i := range fallbackMuseums {
		m := fallbackMuseums[i]

		if q != "" && !containsFold(m.Name+" "+m.Description, q) {
			continue
		}
		if city != "" && !strings.EqualFold(m.City, city) {
			continue
		}
		if category != "" && !strings.EqualFold(m.Category, category) {
			continue
		}

		museums = append(museums, &m)
	}

	return museums
}

func FallbackMuseum(id int64) (*entity.Museum, bool) {
	for i := range fallbackMuseums {
		if fallbackMuseums[i].ID == id {
			m := fallbackMuseums[i]
			return &m, true
		}
	}
	return nil, false
}

func FallbackEvents(museumID int64, q string, now time.Time) []*entity.Event {
	events := []*entity.Event{}

	for _, e := range fallbackEvents(now) {
		if museumID != 0 && e.MuseumID != museumID {
			continue
		}
		if q != "" && !containsFold(e.Title, q) {
			continue
		}

		events = append(events, &e)
	}

	return events
}

func FallbackBookings(status string, now time.Time) []*entity.Booking {
	bookings := []*entity.Booking{}

	for _, b := range fallbackBookings(now) {
		if status != "" && string(b.Status) != status {
			continue
		}

		bookings = append(bookings, &b)
	}

	return bookings
}

// FallbackMetadata describes a fallback list, which is always served whole as
// a single page.
func FallbackMetadata(n int) Metadata {
	return calculateMetadata(n, 1, max(n, 1))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
