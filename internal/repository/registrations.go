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

type RegistrationModel struct {
	DB *sql.DB
}

const registrationColumns = `
	r.id, r.reference, r.created_at, r.user_id, r.event_id, e.title, e.starts_at, r.attendee_name,
	r.email, r.phone, r.attendees, r.amount, r.status, r.version`

func scanRegistration(row rowScanner, reg *entity.Registration, prefix ...any) error {
	var userID sql.NullInt64

	dest := append(prefix,
		&reg.ID,
		&reg.Reference,
		&reg.CreatedAt,
		&userID,
		&reg.EventID,
		&reg.EventTitle,
		&reg.EventStarts,
		&reg.AttendeeName,
		&reg.Email,
		&reg.Phone,
		&reg.Attendees,
		&reg.Amount,
		&reg.Status,
		&reg.Version,
	)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	if userID.Valid {
		reg.UserID = &userID.Int64
	}

	return nil
}

// Insert registers attendees for an event. The event row is locked for the
// duration of the transaction so concurrent registrations cannot overbook it.
func (m RegistrationModel) Insert(reg *entity.Registration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	eventLockQuery := `
		SELECT capacity, price, title, starts_at
		FROM events
		WHERE id = $1
		FOR UPDATE
	`

	var (
		capacity int32
		price    decimal.Decimal
	)

	err = tx.QueryRowContext(ctx, eventLockQuery, reg.EventID).Scan(&capacity, &price, &reg.EventTitle, &reg.EventStarts)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrRecordNotFound
		default:
			return err
		}
	}

	takenQuery := `
		SELECT COALESCE(SUM(attendees), 0)
		FROM event_registrations
		WHERE event_id = $1 AND status <> 'cancelled'
	`

	var taken int32

	err = tx.QueryRowContext(ctx, takenQuery, reg.EventID).Scan(&taken)
	if err != nil {
		return err
	}

	if taken+reg.Attendees > capacity {
		return ErrEventFull
	}

	reg.Amount = price.Mul(decimal.NewFromInt32(reg.Attendees))
	reg.Status = entity.RegistrationRegistered

	insertQuery := `
		INSERT INTO event_registrations (reference, user_id, event_id, attendee_name, email, phone, attendees, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id, created_at, version
	`

	inserted := false
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reg.Reference = NewReference(RegistrationReferencePrefix)

		args := []any{
			reg.Reference,
			reg.UserID,
			reg.EventID,
			reg.AttendeeName,
			reg.Email,
			reg.Phone,
			reg.Attendees,
			reg.Amount,
			reg.Status,
		}

		err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&reg.ID, &reg.CreatedAt, &reg.Version)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return err
		}

		inserted = true
		break
	}

	if !inserted {
		return ErrDuplicateReference
	}

	return tx.Commit()
}

func (m RegistrationModel) GetByReference(reference string) (*entity.Registration, error) {
	if !strings.HasPrefix(reference, RegistrationReferencePrefix+"-") {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + registrationColumns + `
		FROM event_registrations r
		INNER JOIN events e ON e.id = r.event_id
		WHERE r.reference = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var reg entity.Registration

	err := scanRegistration(m.DB.QueryRowContext(ctx, query, reference), &reg)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &reg, nil
}

func (m RegistrationModel) GetAllForEvent(eventID int64, filters Filters) ([]*entity.Registration, Metadata, error) {
	return m.getAll("r.event_id = $1", eventID, filters)
}

func (m RegistrationModel) GetAllForUser(userID int64, filters Filters) ([]*entity.Registration, Metadata, error) {
	return m.getAll("r.user_id = $1", userID, filters)
}

func (m RegistrationModel) getAll(where string, arg int64, filters Filters) ([]*entity.Registration, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), %s
		FROM event_registrations r
		INNER JOIN events e ON e.id = r.event_id
		WHERE %s
		ORDER BY r.%s %s, r.id ASC
		LIMIT $2 OFFSET $3
	`, registrationColumns, where, filters.sortColumn(), filters.sortDirection())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, arg, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	registrations := []*entity.Registration{}

	for rows.Next() {
		var reg entity.Registration

		if err := scanRegistration(rows, &reg, &totalRecords); err != nil {
			return nil, Metadata{}, err
		}

		registrations = append(registrations, &reg)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return registrations, metadata, nil
}

func (m RegistrationModel) UpdateStatus(reg *entity.Registration, to entity.RegistrationStatus) error {
	if !reg.Status.CanTransition(to) {
		return ErrInvalidTransition
	}

	query := `
		UPDATE event_registrations
		SET status = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, to, reg.ID, reg.Version).Scan(&reg.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	reg.Status = to
	return nil
}

func ValidateRegistration(v *validator.Validator, reg *entity.Registration) {
	v.Check(reg.EventID > 0, "event_id", "must be a positive integer")

	v.Check(reg.AttendeeName != "", "attendee_name", "must be provided")
	v.Check(len(reg.AttendeeName) <= 200, "attendee_name", "must not be more than 200 characters")

	ValidateEmail(v, reg.Email)

	if reg.Phone != "" {
		v.Check(validator.Matches(reg.Phone, validator.PhoneRX), "phone", "must be a valid phone number")
	}

	v.Check(reg.Attendees > 0, "attendees", "must be a positive integer")
	v.Check(reg.Attendees <= 10, "attendees", "must not be more than 10")
}
