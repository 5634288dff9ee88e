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

type MuseumModel struct {
	DB *sql.DB
}

func (m MuseumModel) Insert(museum *entity.Museum) error {
	query := `
		INSERT INTO museums (name, description, city, address, category, image_url, opening_hours, ticket_types)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, version
	`
	args := []any{
		museum.Name,
		museum.Description,
		museum.City,
		museum.Address,
		museum.Category,
		museum.ImageURL,
		museum.OpeningHours,
		jsonb{museum.TicketTypes},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&museum.ID, &museum.CreatedAt, &museum.Version)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return ErrDuplicateConstraint
		}
		return err
	}

	return nil
}

func (m MuseumModel) Get(id int64) (*entity.Museum, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT id, created_at, name, description, city, address, category, image_url, opening_hours, ticket_types, version
		FROM museums
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var museum entity.Museum

	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&museum.ID,
		&museum.CreatedAt,
		&museum.Name,
		&museum.Description,
		&museum.City,
		&museum.Address,
		&museum.Category,
		&museum.ImageURL,
		&museum.OpeningHours,
		jsonb{&museum.TicketTypes},
		&museum.Version,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &museum, nil
}

func (m MuseumModel) GetAll(q string, city string, category string, filters Filters) ([]*entity.Museum, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), id, created_at, name, description, city, address, category, image_url, opening_hours, ticket_types, version
		FROM museums
		WHERE (to_tsvector('simple', name || ' ' || description) @@ plainto_tsquery('simple', $1) OR $1 = '')
		AND (LOWER(city) = LOWER($2) OR $2 = '')
		AND (LOWER(category) = LOWER($3) OR $3 = '')
		ORDER BY %s %s, id ASC
		LIMIT $4 OFFSET $5
	`, filters.sortColumn(), filters.sortDirection())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	args := []any{q, city, category, filters.limit(), filters.offset()}

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	museums := []*entity.Museum{}

	for rows.Next() {
		var museum entity.Museum

		err := rows.Scan(
			&totalRecords,
			&museum.ID,
			&museum.CreatedAt,
			&museum.Name,
			&museum.Description,
			&museum.City,
			&museum.Address,
			&museum.Category,
			&museum.ImageURL,
			&museum.OpeningHours,
			jsonb{&museum.TicketTypes},
			&museum.Version,
		)
		if err != nil {
			return nil, Metadata{}, err
		}

		museums = append(museums, &museum)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return museums, metadata, nil
}

func (m MuseumModel) Update(museum *entity.Museum) error {
	query := `
		UPDATE museums
		SET name = $1, description = $2, city = $3, address = $4, category = $5,
			image_url = $6, opening_hours = $7, ticket_types = $8, version = version + 1
		WHERE id = $9 AND version = $10
		RETURNING version
	`

	args := []any{
		museum.Name,
		museum.Description,
		museum.City,
		museum.Address,
		museum.Category,
		museum.ImageURL,
		museum.OpeningHours,
		jsonb{museum.TicketTypes},
		museum.ID,
		museum.Version,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&museum.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		case pqCode(err) == pqUniqueViolation:
			return ErrDuplicateConstraint
		default:
			return err
		}
	}

	return nil
}

func (m MuseumModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	query := `
		DELETE FROM museums
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return ErrViolatesForeignKey
		}
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

func ValidateMuseum(v *validator.Validator, museum *entity.Museum) {
	v.Check(museum.Name != "", "name", "must be provided")
	v.Check(len(museum.Name) <= 200, "name", "must not be more than 200 characters")

	v.Check(museum.City != "", "city", "must be provided")
	v.Check(len(museum.City) <= 100, "city", "must not be more than 100 characters")

	v.Check(len(museum.Description) <= 5000, "description", "must not be more than 5000 characters")

	v.Check(len(museum.TicketTypes) > 0, "ticket_types", "must contain at least 1 ticket type")
	v.Check(len(museum.TicketTypes) <= 10, "ticket_types", "must not contain more than 10 ticket types")

	names := make([]string, len(museum.TicketTypes))
	for i, tt := range museum.TicketTypes {
		names[i] = tt.Name
		v.Check(tt.Name != "", "ticket_types", "must not contain unnamed ticket types")
		v.Check(!tt.Price.IsNegative(), "ticket_types", "must not contain negative prices")
	}
	v.Check(validator.Unique(names), "ticket_types", "must not contain duplicate ticket types")
}
