package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/validator"
)

var museumRowColumns = []string{
	"id", "created_at", "name", "description", "city", "address", "category",
	"image_url", "opening_hours", "ticket_types", "version",
}

func TestInsertMuseumSuccess(t *testing.T) {
	db, mock := newMock(t)
	store := MuseumModel{DB: db}

	now := time.Now()
	mock.ExpectQuery("INSERT INTO museums").
		WithArgs("Louvre", "", "Paris", "", "art", "", "", `[{"name":"adult","price":"17"}]`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "version"}).AddRow(7, now, 1))

	museum := entity.Museum{
		Name:        "Louvre",
		City:        "Paris",
		Category:    "art",
		TicketTypes: []entity.TicketType{{Name: "adult", Price: decimal.NewFromInt(17)}},
	}

	err := store.Insert(&museum)

	require.NoError(t, err)
	assert.Equal(t, int64(7), museum.ID)
	assert.Equal(t, int32(1), museum.Version)
}

func TestGetMuseum(t *testing.T) {
	db, mock := newMock(t)
	store := MuseumModel{DB: db}

	mock.ExpectQuery("SELECT id, created_at, name").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(museumRowColumns).AddRow(
			3, time.Now(), "VITM", "science museum", "Bengaluru", "Kasturba Rd", "science",
			"", "09:30-18:00", []byte(`[{"name":"adult","price":"85"},{"name":"child","price":"40"}]`), 2,
		))

	museum, err := store.Get(3)

	require.NoError(t, err)
	assert.Equal(t, "VITM", museum.Name)
	require.Len(t, museum.TicketTypes, 2)
	assert.True(t, museum.TicketTypes[1].Price.Equal(decimal.NewFromInt(40)))
}

func TestGetMuseumNotFound(t *testing.T) {
	db, mock := newMock(t)
	store := MuseumModel{DB: db}

	mock.ExpectQuery("SELECT id, created_at, name").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(museumRowColumns))

	_, err := store.Get(42)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = store.Get(0)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUpdateMuseumEditConflict(t *testing.T) {
	db, mock := newMock(t)
	store := MuseumModel{DB: db}

	mock.ExpectQuery("UPDATE museums").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	err := store.Update(&entity.Museum{ID: 1, Name: "x", City: "y", Version: 1})
	assert.ErrorIs(t, err, ErrEditConflict)
}

func TestDeleteMuseum(t *testing.T) {
	db, mock := newMock(t)
	store := MuseumModel{DB: db}

	mock.ExpectExec("DELETE FROM museums").
		WithArgs(int64(1)).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectExec("DELETE FROM museums").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM museums").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, store.Delete(1), ErrViolatesForeignKey)
	assert.ErrorIs(t, store.Delete(2), ErrRecordNotFound)
	assert.NoError(t, store.Delete(3))
}

func TestGetAllMuseumsMetadata(t *testing.T) {
	db, mock := newMock(t)
	store := MuseumModel{DB: db}

	columns := append([]string{"count"}, museumRowColumns...)
	mock.ExpectQuery("ORDER BY name ASC, id ASC").
		WithArgs("", "Mumbai", "", 2, 0).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(3, 1, time.Now(), "A", "", "Mumbai", "", "", "", "[]", 1).
			AddRow(3, 2, time.Now(), "B", "", "Mumbai", "", "", "", "[]", 1))

	filters := Filters{Page: 1, PageSize: 2, Sort: "name", SortSafelist: []string{"id", "name"}}

	museums, metadata, err := store.GetAll("", "Mumbai", "", filters)

	require.NoError(t, err)
	assert.Len(t, museums, 2)
	assert.Equal(t, Metadata{CurrentPage: 1, PageSize: 2, FirstPage: 1, LastPage: 2, TotalRecords: 3}, metadata)
}

func TestValidateMuseum(t *testing.T) {
	v := validator.New()
	ValidateMuseum(v, &entity.Museum{
		Name: "Louvre",
		City: "Paris",
		TicketTypes: []entity.TicketType{
			{Name: "adult", Price: decimal.NewFromInt(17)},
			{Name: "adult", Price: decimal.NewFromInt(-1)},
		},
	})

	assert.False(t, v.Valid())
	assert.Contains(t, v.Errors, "ticket_types")

	v = validator.New()
	ValidateMuseum(v, &entity.Museum{})
	assert.Contains(t, v.Errors, "name")
	assert.Contains(t, v.Errors, "city")
	assert.Contains(t, v.Errors, "ticket_types")
}
