package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/validator"
)

type EventModel struct {
	DB *sql.DB
}

func (m EventModel) Insert(event *entity.Event) error {
	query := `
		INSERT INTO events (museum_id, title, description, category, starts_at, ends_at, capacity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, version
	`

	args := []any{
		event.MuseumID,
		event.Title,
		event.Description,
		event.Category,
		event.StartsAt,
		event.EndsAt,
		event.Capacity,
		event.Price,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&event.ID, &event.CreatedAt, &event.Version)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return ErrViolatesForeignKey
		}
		return err
	}

	return nil
}

func (m EventModel) Get(id int64) (*entity.Event, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT e.id, e.created_at, e.museum_id, e.title, e.description, e.category,
			e.starts_at, e.ends_at, e.capacity, e.price,
			COALESCE((SELECT SUM(r.attendees) FROM event_registrations r
				WHERE r.event_id = e.id AND r.status <> 'cancelled'), 0),
			e.version
		FROM events e
		WHERE e.id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var event entity.Event

	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.CreatedAt,
		&event.MuseumID,
		&event.Title,
		&event.Description,
		&event.Category,
		&event.StartsAt,
		&event.EndsAt,
		&event.Capacity,
		&event.Price,
		&event.Registered,
		&event.Version,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &event, nil
}

func (m EventModel) GetAll(museumID int64, q string, date string, upcoming bool, filters Filters) ([]*entity.Event, Metadata, error) {
	if date != "" {
		_, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, Metadata{}, ErrInvalidType
		}
	}

	query := fmt.Sprintf(`
		SELECT count(*) OVER(), e.id, e.created_at, e.museum_id, e.title, e.description, e.category,
			e.starts_at, e.ends_at, e.capacity, e.price,
			COALESCE((SELECT SUM(r.attendees) FROM event_registrations r
				WHERE r.event_id = e.id AND r.status <> 'cancelled'), 0),
			e.version
		FROM events e
		WHERE (e.museum_id = $1 OR $1 = 0)
		AND (to_tsvector('simple', e.title) @@ plainto_tsquery('simple', $2) OR $2 = '')
		AND (TO_CHAR(e.starts_at::date, 'YYYY-MM-DD') = $3 OR $3 = '')
		AND (e.ends_at > NOW() OR NOT $4)
		ORDER BY e.%s %s, e.id ASC
		LIMIT $5 OFFSET $6
	`, filters.sortColumn(), filters.sortDirection())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	args := []any{museumID, q, date, upcoming, filters.limit(), filters.offset()}

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	events := []*entity.Event{}

	for rows.Next() {
		var event entity.Event

		err := rows.Scan(
			&totalRecords,
			&event.ID,
			&event.CreatedAt,
			&event.MuseumID,
			&event.Title,
			&event.Description,
			&event.Category,
			&event.StartsAt,
			&event.EndsAt,
			&event.Capacity,
			&event.Price,
			&event.Registered,
			&event.Version,
		)
		if err != nil {
			return nil, Metadata{}, err
		}

		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return events, metadata, nil
}

func (m EventModel) Update(event *entity.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, category = $3, starts_at = $4, ends_at = $5,
			capacity = $6, price = $7, version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING version
	`

	args := []any{
		event.Title,
		event.Description,
		event.Category,
		event.StartsAt,
		event.EndsAt,
		event.Capacity,
		event.Price,
		event.ID,
		event.Version,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&event.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	return nil
}

func (m EventModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	query := `
		DELETE FROM events
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func ValidateEvent(v *validator.Validator, event *entity.Event) {
	v.Check(event.MuseumID > 0, "museum_id", "must be a positive integer")

	v.Check(event.Title != "", "title", "must be provided")
	v.Check(len(event.Title) <= 200, "title", "must not be more than 200 characters")

	v.Check(!event.StartsAt.IsZero(), "starts_at", "must be provided")
	v.Check(!event.EndsAt.IsZero(), "ends_at", "must be provided")
	v.Check(event.EndsAt.After(event.StartsAt), "ends_at", "must be after starts_at")

	v.Check(event.Capacity > 0, "capacity", "must be a positive integer")
	v.Check(event.Capacity <= 10_000, "capacity", "must not be more than 10000")
	v.Check(!event.Price.IsNegative(), "price", "must not be negative")
}
