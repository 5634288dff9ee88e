package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Museum struct {
	ID           int64        `json:"id"`
	CreatedAt    time.Time    `json:"-"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	City         string       `json:"city"`
	Address      string       `json:"address,omitempty"`
	Category     string       `json:"category,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	OpeningHours string       `json:"opening_hours,omitempty"`
	TicketTypes  []TicketType `json:"ticket_types"`
	Version      int32        `json:"version"`
}

// TicketType is a priced admission class offered by a museum, e.g. "adult".
type TicketType struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (m *Museum) TicketType(name string) (TicketType, bool) {
	for _, tt := range m.TicketTypes {
		if tt.Name == name {
			return tt, true
		}
	}
	return TicketType{}, false
}
