package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"museum.zuyanh.net/internal/entity"
)

// Summary backs the admin dashboard.
type Summary struct {
	BookingsByStatus map[string]int64 `json:"bookings_by_status"`
	Revenue          decimal.Decimal  `json:"revenue"`
	Museums          int64            `json:"museums"`
	Events           int64            `json:"events"`
	Registrations    int64            `json:"registrations"`
}

type StatsModel struct {
	DB *sql.DB
}

func (m StatsModel) Summary() (*Summary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary := &Summary{
		BookingsByStatus: make(map[string]int64),
		Revenue:          decimal.Zero,
	}

	bookingsQuery := `
		SELECT status, count(*), COALESCE(SUM(total_amount), 0)
		FROM bookings
		GROUP BY status
	`

	rows, err := m.DB.QueryContext(ctx, bookingsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
			amount decimal.Decimal
		)

		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, err
		}

		summary.BookingsByStatus[status] = count

		switch entity.BookingStatus(status) {
		case entity.BookingConfirmed, entity.BookingCompleted:
			summary.Revenue = summary.Revenue.Add(amount)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	countsQuery := `
		SELECT
			(SELECT count(*) FROM museums),
			(SELECT count(*) FROM events),
			(SELECT count(*) FROM event_registrations WHERE status <> 'cancelled')
	`

	err = m.DB.QueryRowContext(ctx, countsQuery).Scan(&summary.Museums, &summary.Events, &summary.Registrations)
	if err != nil {
		return nil, err
	}

	return summary, nil
}
