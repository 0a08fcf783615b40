package booking

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"decorbook/internal/apperr"
	"decorbook/internal/events"
	"decorbook/pkg/db"
)

// Repository is the Postgres Store.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const bookingColumns = `id, service_id, service_name, service_image, service_cost::text, customer_email, customer_name,
       assigned_decorator, booking_date::text, location, status, payment_status, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*Booking, error) {
	var b Booking
	var cost string
	if err := row.Scan(
		&b.ID, &b.ServiceID, &b.ServiceName, &b.ServiceImage, &cost, &b.CustomerEmail, &b.CustomerName,
		&b.AssignedDecorator, &b.BookingDate, &b.Location, &b.Status, &b.PaymentStatus, &b.Version,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, err
	}
	b.ServiceCost = c
	return &b, nil
}

func (r *Repository) Insert(ctx context.Context, b *Booking, ev Event) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
INSERT INTO bookings (id, service_id, service_name, service_image, service_cost, customer_email, customer_name,
                      booking_date, location, status, payment_status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::date, $9, $10, $11, $12, $13, $14)
`
		if _, err := tx.Exec(ctx, q,
			b.ID, b.ServiceID, b.ServiceName, b.ServiceImage, b.ServiceCost.StringFixed(2), b.CustomerEmail, b.CustomerName,
			b.BookingDate, b.Location, string(b.Status), string(b.PaymentStatus), b.Version, b.CreatedAt, b.UpdatedAt,
		); err != nil {
			return err
		}
		return events.Insert(ctx, tx, ev)
	})
}

func (r *Repository) Get(ctx context.Context, id string) (*Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("booking %s not found", id)
		}
		return nil, err
	}
	return b, nil
}

// updateVersioned writes the mutable fields only if the row still carries expectedVersion.
func updateVersioned(ctx context.Context, tx pgx.Tx, b *Booking, expectedVersion int) error {
	const q = `
UPDATE bookings
SET status = $3, payment_status = $4, assigned_decorator = $5, version = $6, updated_at = $7
WHERE id = $1 AND version = $2
`
	tag, err := tx.Exec(ctx, q, b.ID, expectedVersion, string(b.Status), string(b.PaymentStatus),
		b.AssignedDecorator, b.Version, b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindConflict, "booking %s was modified concurrently", b.ID)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, b *Booking, expectedVersion int, ev Event) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateVersioned(ctx, tx, b, expectedVersion); err != nil {
			return err
		}
		return events.Insert(ctx, tx, ev)
	})
}

func (r *Repository) InsertPayment(ctx context.Context, b *Booking, expectedVersion int, p *Payment, ev Event) error {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateVersioned(ctx, tx, b, expectedVersion); err != nil {
			return err
		}
		const q = `
INSERT INTO payments (id, booking_id, customer_email, transaction_id, amount, currency, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
`
		if _, err := tx.Exec(ctx, q, p.ID, p.BookingID, p.CustomerEmail, p.TransactionID,
			p.Amount.StringFixed(2), p.Currency, p.CreatedAt); err != nil {
			return err
		}
		return events.Insert(ctx, tx, ev)
	})
	if db.IsUniqueViolation(err, "payments_transaction_id_key") || db.IsUniqueViolation(err, "payments_booking_id_key") {
		return apperr.New(apperr.KindConflict, "payment for booking %s already recorded", b.ID)
	}
	return err
}

const paymentColumns = `p.id, p.booking_id, p.customer_email, p.transaction_id, p.amount::text, p.currency,
       b.service_name, p.created_at`

func scanPayment(row scanner) (*Payment, error) {
	var p Payment
	var amount string
	if err := row.Scan(&p.ID, &p.BookingID, &p.CustomerEmail, &p.TransactionID, &amount, &p.Currency,
		&p.ServiceName, &p.CreatedAt); err != nil {
		return nil, err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = a
	return &p, nil
}

func (r *Repository) PaymentByTransaction(ctx context.Context, transactionID string) (*Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments p
JOIN bookings b ON b.id = p.booking_id
WHERE p.transaction_id = $1
`
	p, err := scanPayment(r.db.QueryRow(ctx, q, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("payment %s not found", transactionID)
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) PaymentByID(ctx context.Context, id string) (*Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments p
JOIN bookings b ON b.id = p.booking_id
WHERE p.id = $1
`
	p, err := scanPayment(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("payment %s not found", id)
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) PaymentsByCustomer(ctx context.Context, email string) ([]Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments p
JOIN bookings b ON b.id = p.booking_id
WHERE p.customer_email = $1
ORDER BY p.created_at DESC
`
	rows, err := r.db.Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Booking, error) {
	const q = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE ($1 = '' OR customer_email = $1)
  AND ($2 = '' OR assigned_decorator = $2)
  AND ($3 = '' OR status = $3)
  AND ($4 = '' OR booking_date = NULLIF($4, '')::date)
ORDER BY created_at DESC
`
	rows, err := r.db.Query(ctx, q, f.CustomerEmail, f.DecoratorEmail, string(f.Status), f.BookingDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ActiveAssignments counts bookings the decorator still has to finish. It runs inside
// the caller's tx so a role change can lock the user row and decide on the same snapshot.
func ActiveAssignments(ctx context.Context, tx pgx.Tx, decoratorEmail string) (int, error) {
	active := ActiveStatuses()
	statuses := make([]string, len(active))
	for i, s := range active {
		statuses[i] = string(s)
	}
	const q = `
SELECT COUNT(*)
FROM bookings
WHERE assigned_decorator = $1 AND status = ANY($2)
`
	var n int
	if err := tx.QueryRow(ctx, q, decoratorEmail, statuses).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repository) Events(ctx context.Context, bookingID string) ([]Event, error) {
	return events.ListByBooking(ctx, r.db, bookingID)
}
