package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

var BookingStatuses = []string{
	string(BookingPending),
	string(BookingConfirmed),
	string(BookingCancelled),
	string(BookingCompleted),
}

const (
	PaymentCard    = "card"
	PaymentUPI     = "upi"
	PaymentCash    = "cash"
	PaymentZaloPay = "zalopay"
)

var PaymentMethods = []string{PaymentCard, PaymentUPI, PaymentCash, PaymentZaloPay}

// IsOnlinePayment reports whether the method settles through the payment
// gateway callback rather than at the desk.
func IsOnlinePayment(method string) bool {
	return method == PaymentZaloPay
}

type Booking struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	CreatedAt     time.Time       `json:"created_at"`
	UserID        *int64          `json:"user_id,omitempty"`
	MuseumID      int64           `json:"museum_id"`
	MuseumName    string          `json:"museum_name,omitempty"`
	VisitDate     time.Time       `json:"visit_date"`
	Tickets       []TicketLine    `json:"tickets"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	VisitorName   string          `json:"visitor_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Status        BookingStatus   `json:"status"`
	Version       int32           `json:"-"`
}

type TicketLine struct {
	Type      string          `json:"type"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l TicketLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Admits is the number of visitors the booking lets in.
func (b *Booking) Admits() int32 {
	var n int32
	for _, l := range b.Tickets {
		n += l.Quantity
	}
	return n
}
