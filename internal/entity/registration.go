package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationCancelled  RegistrationStatus = "cancelled"
	RegistrationAttended   RegistrationStatus = "attended"
)

var RegistrationStatuses = []string{
	string(RegistrationRegistered),
	string(RegistrationCancelled),
	string(RegistrationAttended),
}

func (s RegistrationStatus) CanTransition(to RegistrationStatus) bool {
	return s == RegistrationRegistered && (to == RegistrationCancelled || to == RegistrationAttended)
}

type Registration struct {
	ID           int64              `json:"id"`
	Reference    string             `json:"reference"`
	CreatedAt    time.Time          `json:"created_at"`
	UserID       *int64             `json:"user_id,omitempty"`
	EventID      int64              `json:"event_id"`
	EventTitle   string             `json:"event_title,omitempty"`
	EventStarts  time.Time          `json:"event_starts_at"`
	AttendeeName string             `json:"attendee_name"`
	Email        string             `json:"email"`
	Phone        string             `json:"phone,omitempty"`
	Attendees    int32              `json:"attendees"`
	Amount       decimal.Decimal    `json:"amount"`
	Status       RegistrationStatus `json:"status"`
	Version      int32              `json:"-"`
}
