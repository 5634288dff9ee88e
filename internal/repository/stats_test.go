package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsSummary(t *testing.T) {
	db, mock := newMock(t)
	store := StatsModel{DB: db}

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("pending", 2, "80").
			AddRow("confirmed", 5, "410.50").
			AddRow("completed", 1, "20").
			AddRow("cancelled", 3, "150"))
	mock.ExpectQuery("FROM museums").
		WillReturnRows(sqlmock.NewRows([]string{"museums", "events", "registrations"}).AddRow(4, 6, 31))

	summary, err := store.Summary()

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pending": 2, "confirmed": 5, "completed": 1, "cancelled": 3}, summary.BookingsByStatus)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("430.50")), summary.Revenue.String())
	assert.Equal(t, int64(4), summary.Museums)
	assert.Equal(t, int64(6), summary.Events)
	assert.Equal(t, int64(31), summary.Registrations)
}
