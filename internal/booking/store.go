package booking

import (
	"context"

	"decorbook/internal/catalog"
	"decorbook/internal/user"
)

// Store persists bookings. Update and InsertPayment apply only when the stored
// version still equals expectedVersion and return apperr.ErrConflict otherwise.
// Each write appends its event in the same transaction.
type Store interface {
	Insert(ctx context.Context, b *Booking, ev Event) error
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking, expectedVersion int, ev Event) error
	InsertPayment(ctx context.Context, b *Booking, expectedVersion int, p *Payment, ev Event) error
	PaymentByTransaction(ctx context.Context, transactionID string) (*Payment, error)
	List(ctx context.Context, f Filter) ([]Booking, error)
	Events(ctx context.Context, bookingID string) ([]Event, error)
}

type Filter struct {
	CustomerEmail  string
	DecoratorEmail string
	Status         Status
	BookingDate    string
}

type ServiceFinder interface {
	FindByID(ctx context.Context, id string) (*catalog.Service, error)
}

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}
