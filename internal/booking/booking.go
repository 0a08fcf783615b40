package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"decorbook/internal/events"
)

// Booking carries a snapshot of the service as it was when the customer booked.
type Booking struct {
	ID                string          `json:"id"`
	ServiceID         string          `json:"serviceId"`
	ServiceName       string          `json:"serviceName"`
	ServiceImage      string          `json:"serviceImage"`
	ServiceCost       decimal.Decimal `json:"serviceCost"`
	CustomerEmail     string          `json:"customerEmail"`
	CustomerName      string          `json:"customerName"`
	AssignedDecorator *string         `json:"assignedDecorator"`
	BookingDate       string          `json:"bookingDate"`
	Location          string          `json:"location"`
	Status            Status          `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentPaid
}

func (b *Booking) AssignedTo(email string) bool {
	return b.AssignedDecorator != nil && equalEmail(*b.AssignedDecorator, email)
}

func (b *Booking) OwnedBy(email string) bool {
	return equalEmail(b.CustomerEmail, email)
}

type Payment struct {
	ID            string          `json:"id"`
	BookingID     string          `json:"bookingId"`
	CustomerEmail string          `json:"customerEmail"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ServiceName   string          `json:"serviceName,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Event = events.Event

// DateLayout is the wire and storage format of BookingDate.
const DateLayout = "2006-01-02"
