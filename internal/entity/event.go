package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          int64           `json:"id"`
	CreatedAt   time.Time       `json:"-"`
	MuseumID    int64           `json:"museum_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Capacity    int32           `json:"capacity"`
	Price       decimal.Decimal `json:"price"`
	Registered  int32           `json:"registered"`
	Version     int32           `json:"version"`
}

func (e *Event) SeatsLeft() int32 {
	left := e.Capacity - e.Registered
	if left < 0 {
		return 0
	}
	return left
}
