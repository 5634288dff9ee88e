package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/validator"
)

type BookingModel struct {
	DB *sql.DB
}

const bookingColumns = `
	b.id, b.reference, b.created_at, b.user_id, b.museum_id, m.name, b.visit_date, b.tickets,
	b.total_amount, b.visitor_name, b.email, b.phone, b.payment_method, b.status, b.version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner, booking *entity.Booking, prefix ...any) error {
	var userID sql.NullInt64

	dest := append(prefix,
		&booking.ID,
		&booking.Reference,
		&booking.CreatedAt,
		&userID,
		&booking.MuseumID,
		&booking.MuseumName,
		&booking.VisitDate,
		jsonb{&booking.Tickets},
		&booking.TotalAmount,
		&booking.VisitorName,
		&booking.Email,
		&booking.Phone,
		&booking.PaymentMethod,
		&booking.Status,
		&booking.Version,
	)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	if userID.Valid {
		booking.UserID = &userID.Int64
	}

	return nil
}

// Insert stores a priced booking under a fresh reference. A reference
// collision is retried with a new one; ON CONFLICT keeps the statement from
// failing so the retry needs no savepoint.
func (m BookingModel) Insert(booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (reference, user_id, museum_id, visit_date, tickets, total_amount,
			visitor_name, email, phone, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		booking.Reference = NewReference(BookingReferencePrefix)

		args := []any{
			booking.Reference,
			booking.UserID,
			booking.MuseumID,
			booking.VisitDate,
			jsonb{booking.Tickets},
			booking.TotalAmount,
			booking.VisitorName,
			booking.Email,
			booking.Phone,
			booking.PaymentMethod,
			booking.Status,
		}

		err := m.DB.QueryRowContext(ctx, query, args...).Scan(&booking.ID, &booking.CreatedAt, &booking.Version)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, sql.ErrNoRows):
			continue
		case pqCode(err) == pqForeignKeyViolation:
			return ErrViolatesForeignKey
		default:
			return err
		}
	}

	return ErrDuplicateReference
}

func (m BookingModel) Get(id int64) (*entity.Booking, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		INNER JOIN museums m ON m.id = b.museum_id
		WHERE b.id = $1
	`

	return m.getOne(query, id)
}

func (m BookingModel) GetByReference(reference string) (*entity.Booking, error) {
	if !strings.HasPrefix(reference, BookingReferencePrefix+"-") {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		INNER JOIN museums m ON m.id = b.museum_id
		WHERE b.reference = $1
	`

	return m.getOne(query, reference)
}

func (m BookingModel) getOne(query string, arg any) (*entity.Booking, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var booking entity.Booking

	err := scanBooking(m.DB.QueryRowContext(ctx, query, arg), &booking)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &booking, nil
}

func (m BookingModel) GetAll(userID int64, museumID int64, status string, visitDate string, filters Filters) ([]*entity.Booking, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), %s
		FROM bookings b
		INNER JOIN museums m ON m.id = b.museum_id
		WHERE (b.user_id = $1 OR $1 = 0)
		AND (b.museum_id = $2 OR $2 = 0)
		AND (b.status = $3 OR $3 = '')
		AND (TO_CHAR(b.visit_date, 'YYYY-MM-DD') = $4 OR $4 = '')
		ORDER BY b.%s %s, b.id ASC
		LIMIT $5 OFFSET $6
	`, bookingColumns, filters.sortColumn(), filters.sortDirection())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	args := []any{userID, museumID, status, visitDate, filters.limit(), filters.offset()}

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	bookings := []*entity.Booking{}

	for rows.Next() {
		var booking entity.Booking

		if err := scanBooking(rows, &booking, &totalRecords); err != nil {
			return nil, Metadata{}, err
		}

		bookings = append(bookings, &booking)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return bookings, metadata, nil
}

func (m BookingModel) UpdateStatus(booking *entity.Booking, to entity.BookingStatus) error {
	if !booking.Status.CanTransition(to) {
		return ErrInvalidTransition
	}

	query := `
		UPDATE bookings
		SET status = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	args := []any{to, booking.ID, booking.Version}

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&booking.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	booking.Status = to
	return nil
}

// ExpirePending cancels unpaid bookings created more than olderThan ago and
// returns how many were cancelled.
func (m BookingModel) ExpirePending(olderThan time.Duration) (int64, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', version = version + 1
		WHERE status = 'pending' AND created_at < $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

const (
	maxTicketLines    = 10
	maxTicketQuantity = 20
	maxBookingHorizon = 365 * 24 * time.Hour
)

func ValidateBooking(v *validator.Validator, booking *entity.Booking, now time.Time) {
	v.Check(booking.MuseumID > 0, "museum_id", "must be a positive integer")

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	v.Check(!booking.VisitDate.IsZero(), "visit_date", "must be provided")
	v.Check(!booking.VisitDate.Before(today), "visit_date", "must not be in the past")
	v.Check(!booking.VisitDate.After(today.Add(maxBookingHorizon)), "visit_date", "must be within the next 365 days")

	v.Check(len(booking.Tickets) > 0, "tickets", "must contain at least 1 ticket")
	v.Check(len(booking.Tickets) <= maxTicketLines, "tickets", "must not contain more than 10 lines")

	types := make([]string, len(booking.Tickets))
	for i, line := range booking.Tickets {
		types[i] = line.Type
		v.Check(line.Type != "", "tickets", "must name a ticket type on every line")
		v.Check(line.Quantity > 0, "tickets", "must have a positive quantity on every line")
		v.Check(line.Quantity <= maxTicketQuantity, "tickets", "must not have more than 20 tickets on a line")
	}
	v.Check(validator.Unique(types), "tickets", "must not repeat a ticket type")

	v.Check(booking.VisitorName != "", "visitor_name", "must be provided")
	v.Check(len(booking.VisitorName) <= 200, "visitor_name", "must not be more than 200 characters")

	ValidateEmail(v, booking.Email)

	if booking.Phone != "" {
		v.Check(validator.Matches(booking.Phone, validator.PhoneRX), "phone", "must be a valid phone number")
	}

	v.Check(validator.PermittedValue(booking.PaymentMethod, entity.PaymentMethods...), "payment_method", "invalid payment method")
}

// PriceTickets fills in the unit price of every line from the museum's ticket
// types and returns the booking total. Client-supplied prices are ignored.
func PriceTickets(v *validator.Validator, museum *entity.Museum, lines []entity.TicketLine) decimal.Decimal {
	total := decimal.Zero

	for i := range lines {
		tt, ok := museum.TicketType(lines[i].Type)
		if !ok {
			v.AddError("tickets", fmt.Sprintf("unknown ticket type %q", lines[i].Type))
			continue
		}

		lines[i].UnitPrice = tt.Price
		total = total.Add(lines[i].Subtotal())
	}

	return total
}
