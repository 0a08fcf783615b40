package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"decorbook/internal/apperr"
	"decorbook/internal/events"
	"decorbook/internal/user"
)

// Engine owns every booking state change. Callers pass the requester's email;
// role and ownership are always resolved from storage, never from the caller.
type Engine struct {
	Store    Store
	Services ServiceFinder
	Users    UserFinder

	// Location decides what "today" means for booking dates. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

func NewEngine(store Store, services ServiceFinder, users UserFinder, loc *time.Location) *Engine {
	return &Engine{Store: store, Services: services, Users: users, Location: loc}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) today() string {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return e.now().In(loc).Format(DateLayout)
}

// Today is the current calendar date in the business timezone.
func (e *Engine) Today() string {
	return e.today()
}

type CreateInput struct {
	RequesterEmail string
	ServiceID      string
	BookingDate    string
	Location       string
}

func (e *Engine) CreateBooking(ctx context.Context, in CreateInput) (*Booking, error) {
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return nil, apperr.Validation("location is required")
	}
	date, err := time.Parse(DateLayout, strings.TrimSpace(in.BookingDate))
	if err != nil {
		return nil, apperr.Validation("bookingDate must be YYYY-MM-DD")
	}
	day := date.Format(DateLayout)
	if day < e.today() {
		return nil, apperr.Validation("bookingDate %s is in the past", day)
	}
	if _, err := uuid.Parse(in.ServiceID); err != nil {
		return nil, apperr.Validation("invalid serviceId")
	}

	customer, err := e.requester(ctx, in.RequesterEmail)
	if err != nil {
		return nil, err
	}
	svc, err := e.Services.FindByID(ctx, in.ServiceID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	b := &Booking{
		ID:            uuid.NewString(),
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		ServiceImage:  svc.Image,
		ServiceCost:   svc.Cost,
		CustomerEmail: customer.Email,
		CustomerName:  customer.Name,
		BookingDate:   day,
		Location:      location,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ev := e.event(b, events.TypeCreated, customer.Email, fmt.Sprintf("Booked %s for %s", svc.Name, day), map[string]any{
		"serviceCost": svc.Cost.StringFixed(2),
		"location":    location,
	})
	if err := e.Store.Insert(ctx, b, ev); err != nil {
		return nil, err
	}
	return b, nil
}

func (e *Engine) CancelBooking(ctx context.Context, bookingID, requesterEmail string) (*Booking, error) {
	b, err := e.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(requesterEmail) {
		return nil, apperr.Forbidden("only the customer who booked can cancel")
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return nil, apperr.New(apperr.KindInvalidTransition, "cannot cancel a booking in status %s", b.Status)
	}

	next := e.bump(b)
	next.Status = StatusCancelled
	ev := e.event(&next, events.TypeCancelled, b.CustomerEmail, "Booking cancelled by customer", nil)
	if err := e.Store.Update(ctx, &next, b.Version, ev); err != nil {
		return nil, err
	}
	return &next, nil
}

type PaymentInput struct {
	BookingID     string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	// Actor is recorded on the timeline, e.g. the customer or "stripe-webhook".
	Actor string
}

// RecordPayment marks a booking paid. Replaying a transaction id that is already
// recorded for the same booking returns the stored payment and writes nothing.
func (e *Engine) RecordPayment(ctx context.Context, in PaymentInput) (*Booking, *Payment, error) {
	txn := strings.TrimSpace(in.TransactionID)
	if txn == "" {
		return nil, nil, apperr.Validation("transactionId is required")
	}

	if b, p, done, err := e.replayedPayment(ctx, in.BookingID, txn); done || err != nil {
		return b, p, err
	}

	b, err := e.load(ctx, in.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.IsPaid() {
		return nil, nil, apperr.New(apperr.KindAlreadyPaid, "booking %s is already paid", b.ID)
	}
	if b.Status != StatusPending {
		return nil, nil, apperr.New(apperr.KindInvalidTransition, "cannot pay for a booking in status %s", b.Status)
	}
	if !in.Amount.Equal(b.ServiceCost) {
		return nil, nil, apperr.New(apperr.KindAmountMismatch, "amount %s does not match service cost %s",
			in.Amount.StringFixed(2), b.ServiceCost.StringFixed(2))
	}

	now := e.now().UTC()
	next := e.bump(b)
	next.PaymentStatus = PaymentPaid
	p := &Payment{
		ID:            uuid.NewString(),
		BookingID:     b.ID,
		CustomerEmail: b.CustomerEmail,
		TransactionID: txn,
		Amount:        b.ServiceCost,
		Currency:      strings.ToLower(strings.TrimSpace(in.Currency)),
		ServiceName:   b.ServiceName,
		CreatedAt:     now,
	}
	actor := in.Actor
	if actor == "" {
		actor = b.CustomerEmail
	}
	ev := e.event(&next, events.TypePaid, actor, fmt.Sprintf("Payment %s received", txn), map[string]any{
		"transactionId": txn,
		"amount":        p.Amount.StringFixed(2),
		"currency":      p.Currency,
	})

	if err := e.Store.InsertPayment(ctx, &next, b.Version, p, ev); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Lost a race; if the winner was this same transaction the call is a replay.
			if rb, rp, done, rerr := e.replayedPayment(ctx, in.BookingID, txn); done || rerr != nil {
				return rb, rp, rerr
			}
		}
		return nil, nil, err
	}
	return &next, p, nil
}

// replayedPayment reports done=true when txn is already recorded for bookingID.
func (e *Engine) replayedPayment(ctx context.Context, bookingID, txn string) (*Booking, *Payment, bool, error) {
	existing, err := e.Store.PaymentByTransaction(ctx, txn)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	if existing.BookingID != bookingID {
		// Permanent: no retry can move a transaction to a different booking.
		return nil, nil, false, apperr.Validation("transaction %s belongs to another booking", txn)
	}
	b, err := e.Store.Get(ctx, bookingID)
	if err != nil {
		return nil, nil, false, err
	}
	return b, existing, true, nil
}

func (e *Engine) AssignDecorator(ctx context.Context, bookingID, decoratorEmail, requesterEmail string) (*Booking, error) {
	admin, err := e.requester(ctx, requesterEmail)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, apperr.Forbidden("only admins can assign decorators")
	}

	b, err := e.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusAssigned) {
		return nil, apperr.New(apperr.KindInvalidTransition, "cannot assign a booking in status %s", b.Status)
	}
	if !b.IsPaid() {
		return nil, apperr.New(apperr.KindNotPayable, "booking %s must be paid before assignment", b.ID)
	}

	decoratorEmail = user.NormalizeEmail(decoratorEmail)
	if decoratorEmail == "" {
		return nil, apperr.Validation("assignedDecorator is required")
	}
	dec, err := e.Users.FindByEmail(ctx, decoratorEmail)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("%s is not a registered user", decoratorEmail)
		}
		return nil, err
	}
	if dec.Role != user.RoleDecorator {
		return nil, apperr.Validation("%s is not a decorator", decoratorEmail)
	}

	next := e.bump(b)
	next.Status = StatusAssigned
	next.AssignedDecorator = &dec.Email
	ev := e.event(&next, events.TypeAssigned, admin.Email, fmt.Sprintf("Assigned to %s", dec.Email), map[string]any{
		"decorator": dec.Email,
	})
	if err := e.Store.Update(ctx, &next, b.Version, ev); err != nil {
		return nil, err
	}
	return &next, nil
}

type AdvanceInput struct {
	BookingID      string
	RequesterEmail string
	// Expect, when set, must equal the computed next stage. It lets a client
	// name the stage it saw without being able to jump ahead.
	Expect Status
}

func (e *Engine) AdvanceStatus(ctx context.Context, in AdvanceInput) (*Booking, error) {
	b, err := e.load(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, apperr.New(apperr.KindTerminalState, "booking is %s", b.Status)
	}
	next, ok := NextStage(b.Status)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidTransition, "a %s booking moves on only by assignment", b.Status)
	}
	req, err := e.requester(ctx, in.RequesterEmail)
	if err != nil {
		return nil, err
	}
	// The stored role counts, not just the name on the booking: a demoted decorator loses the job.
	if req.Role != user.RoleDecorator || !b.AssignedTo(req.Email) {
		return nil, apperr.Forbidden("only the assigned decorator can advance this booking")
	}
	if in.Expect != "" && in.Expect != next {
		return nil, apperr.New(apperr.KindInvalidTransition, "next stage is %s, not %s", next, in.Expect)
	}

	upd := e.bump(b)
	upd.Status = next
	ev := e.event(&upd, events.TypeStatusChanged, *b.AssignedDecorator,
		fmt.Sprintf("%s → %s", b.Status.Label(), next.Label()), map[string]any{
			"from": string(b.Status),
			"to":   string(next),
		})
	if err := e.Store.Update(ctx, &upd, b.Version, ev); err != nil {
		return nil, err
	}
	return &upd, nil
}

// Get returns a booking visible to its customer, its decorator or an admin.
func (e *Engine) Get(ctx context.Context, bookingID, requesterEmail string) (*Booking, error) {
	req, err := e.requester(ctx, requesterEmail)
	if err != nil {
		return nil, err
	}
	b, err := e.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !req.IsAdmin() && !b.OwnedBy(req.Email) && !b.AssignedTo(req.Email) {
		return nil, apperr.Forbidden("not your booking")
	}
	return b, nil
}

func (e *Engine) Events(ctx context.Context, bookingID, requesterEmail string) ([]Event, error) {
	if _, err := e.Get(ctx, bookingID, requesterEmail); err != nil {
		return nil, err
	}
	return e.Store.Events(ctx, bookingID)
}

func (e *Engine) ListByCustomer(ctx context.Context, customerEmail, requesterEmail string) ([]Booking, error) {
	if err := e.actFor(ctx, customerEmail, requesterEmail); err != nil {
		return nil, err
	}
	return e.Store.List(ctx, Filter{CustomerEmail: user.NormalizeEmail(customerEmail)})
}

func (e *Engine) ListByDecorator(ctx context.Context, decoratorEmail, requesterEmail string) ([]Booking, error) {
	if err := e.actFor(ctx, decoratorEmail, requesterEmail); err != nil {
		return nil, err
	}
	return e.Store.List(ctx, Filter{DecoratorEmail: user.NormalizeEmail(decoratorEmail)})
}

// TodayForDecorator lists the decorator's unfinished bookings dated today.
func (e *Engine) TodayForDecorator(ctx context.Context, decoratorEmail, requesterEmail string) ([]Booking, error) {
	if err := e.actFor(ctx, decoratorEmail, requesterEmail); err != nil {
		return nil, err
	}
	all, err := e.Store.List(ctx, Filter{DecoratorEmail: user.NormalizeEmail(decoratorEmail), BookingDate: e.today()})
	if err != nil {
		return nil, err
	}
	out := []Booking{}
	for _, b := range all {
		if !b.Status.IsTerminal() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (e *Engine) ListAll(ctx context.Context, requesterEmail string, status Status) ([]Booking, error) {
	if err := e.requireAdmin(ctx, requesterEmail); err != nil {
		return nil, err
	}
	return e.Store.List(ctx, Filter{Status: status})
}

func (e *Engine) Earnings(ctx context.Context, decoratorEmail, requesterEmail string) (Earnings, error) {
	if err := e.actFor(ctx, decoratorEmail, requesterEmail); err != nil {
		return Earnings{}, err
	}
	email := user.NormalizeEmail(decoratorEmail)
	bookings, err := e.Store.List(ctx, Filter{DecoratorEmail: email})
	if err != nil {
		return Earnings{}, err
	}
	return ComputeEarnings(bookings, email), nil
}

func (e *Engine) RevenueSummary(ctx context.Context, requesterEmail string) (RevenueSummary, error) {
	if err := e.requireAdmin(ctx, requesterEmail); err != nil {
		return RevenueSummary{}, err
	}
	bookings, err := e.Store.List(ctx, Filter{})
	if err != nil {
		return RevenueSummary{}, err
	}
	return ComputeRevenueSummary(bookings), nil
}

func (e *Engine) load(ctx context.Context, bookingID string) (*Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, apperr.NotFound("booking %s not found", bookingID)
	}
	return e.Store.Get(ctx, bookingID)
}

// requester resolves the caller. An unknown caller has no rights at all.
func (e *Engine) requester(ctx context.Context, email string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Forbidden("missing requester")
	}
	u, err := e.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Forbidden("unknown requester %s", email)
		}
		return nil, err
	}
	return u, nil
}

func (e *Engine) requireAdmin(ctx context.Context, requesterEmail string) error {
	u, err := e.requester(ctx, requesterEmail)
	if err != nil {
		return err
	}
	if !u.IsAdmin() {
		return apperr.Forbidden("admin only")
	}
	return nil
}

func (e *Engine) actFor(ctx context.Context, target, requesterEmail string) error {
	u, err := e.requester(ctx, requesterEmail)
	if err != nil {
		return err
	}
	if !u.CanActFor(target) {
		return apperr.Forbidden("cannot view another user's bookings")
	}
	return nil
}

// bump copies b with the version and timestamp its next write will carry.
func (e *Engine) bump(b *Booking) Booking {
	next := *b
	next.Version = b.Version + 1
	next.UpdatedAt = e.now().UTC()
	return next
}

func (e *Engine) event(b *Booking, typ, actor, summary string, data map[string]any) Event {
	return Event{
		BookingID:  b.ID,
		Type:       typ,
		Summary:    summary,
		Actor:      actor,
		OccurredAt: e.now().UTC(),
		Data:       data,
	}
}

func equalEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
