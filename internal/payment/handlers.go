package payment

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
	"decorbook/internal/booking"
	"decorbook/internal/user"
	"decorbook/pkg/stripe"
)

type Bookings interface {
	Get(ctx context.Context, bookingID, requesterEmail string) (*booking.Booking, error)
	RecordPayment(ctx context.Context, in booking.PaymentInput) (*booking.Booking, *booking.Payment, error)
}

type Ledger interface {
	PaymentByID(ctx context.Context, id string) (*booking.Payment, error)
	PaymentsByCustomer(ctx context.Context, email string) ([]booking.Payment, error)
}

type IntentClient interface {
	Configured() bool
	CreatePaymentIntent(ctx context.Context, p stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type Handlers struct {
	Currency string
	// AllowUnverified lets confirm trust the request amount when no processor key is set. Dev only.
	AllowUnverified bool

	Bookings Bookings
	Ledger   Ledger
	Stripe   IntentClient
	Now      func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Description is also parsed back by the webhook when metadata is missing.
func Description(bookingID string) string {
	return "decor_booking: booking_id=" + bookingID
}

type CreateIntentRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
}

// payableBooking loads a booking the caller owns and can still pay for.
func (h Handlers) payableBooking(ctx context.Context, bookingID string, u *user.User) (*booking.Booking, error) {
	b, err := h.Bookings.Get(ctx, bookingID, u.Email)
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(u.Email) {
		return nil, apperr.Forbidden("only the customer who booked can pay")
	}
	return b, nil
}

func (h Handlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	u := api.UserFromContext(r.Context())
	var req CreateIntentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	b, err := h.payableBooking(r.Context(), req.BookingID, u)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if b.IsPaid() {
		api.WriteAppError(w, r, apperr.New(apperr.KindAlreadyPaid, "booking %s is already paid", b.ID))
		return
	}
	if b.Status != booking.StatusPending {
		api.WriteAppError(w, r, apperr.New(apperr.KindInvalidTransition, "cannot pay for a booking in status %s", b.Status))
		return
	}

	if !h.Stripe.Configured() {
		if !h.AllowUnverified {
			api.WriteError(w, http.StatusServiceUnavailable, "PAYMENTS_UNAVAILABLE", "payment processor not configured")
			return
		}
		id := "pi_dev_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		api.WriteJSON(w, http.StatusOK, map[string]any{"clientSecret": id + "_secret_dev", "paymentIntentId": id})
		return
	}

	pi, err := h.Stripe.CreatePaymentIntent(r.Context(), stripe.PaymentIntentParams{
		Amount:       stripe.ToMinorUnits(b.ServiceCost),
		Currency:     h.Currency,
		Description:  Description(b.ID),
		ReceiptEmail: b.CustomerEmail,
		Metadata: map[string]string{
			"booking_id":     b.ID,
			"customer_email": b.CustomerEmail,
		},
	})
	if err != nil {
		log.Printf("create payment intent failed booking=%s err=%v", b.ID, err)
		api.WriteError(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "could not start payment")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"clientSecret": pi.ClientSecret, "paymentIntentId": pi.ID})
}

type ConfirmRequest struct {
	BookingID     string           `json:"bookingId" validate:"required"`
	TransactionID string           `json:"transactionId" validate:"required"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

// Confirm records a payment the client reports as finished. With a processor key the
// intent is re-read server-side and its amount wins over anything in the request.
func (h Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	u := api.UserFromContext(r.Context())
	var req ConfirmRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	b, err := h.payableBooking(r.Context(), req.BookingID, u)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	in := booking.PaymentInput{
		BookingID:     b.ID,
		TransactionID: strings.TrimSpace(req.TransactionID),
		Currency:      h.Currency,
		Actor:         u.Email,
	}
	switch {
	case h.Stripe.Configured():
		pi, err := h.Stripe.GetPaymentIntent(r.Context(), in.TransactionID)
		if err != nil {
			log.Printf("fetch payment intent failed booking=%s pi=%s err=%v", b.ID, in.TransactionID, err)
			api.WriteError(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "could not verify payment")
			return
		}
		if pi.Status != stripe.StatusSucceeded {
			api.WriteAppError(w, r, apperr.Validation("payment %s is %s, not succeeded", pi.ID, pi.Status))
			return
		}
		if pi.Metadata["booking_id"] != b.ID {
			api.WriteAppError(w, r, apperr.Validation("payment %s is not for booking %s", pi.ID, b.ID))
			return
		}
		in.Amount = stripe.FromMinorUnits(pi.Paid())
		in.Currency = pi.Currency
	case h.AllowUnverified:
		if req.Amount == nil {
			api.WriteAppError(w, r, apperr.Validation("amount is required"))
			return
		}
		in.Amount = *req.Amount
	default:
		api.WriteError(w, http.StatusServiceUnavailable, "PAYMENTS_UNAVAILABLE", "payment processor not configured")
		return
	}

	paid, p, err := h.Bookings.RecordPayment(r.Context(), in)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": paid, "payment": p})
}

func (h Handlers) History(w http.ResponseWriter, r *http.Request) {
	u := api.UserFromContext(r.Context())
	email := chi.URLParam(r, "email")
	if !u.CanActFor(email) {
		api.WriteAppError(w, r, apperr.Forbidden("cannot view another user's payments"))
		return
	}
	items, err := h.Ledger.PaymentsByCustomer(r.Context(), user.NormalizeEmail(email))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Receipt(w http.ResponseWriter, r *http.Request) {
	u := api.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		api.WriteAppError(w, r, apperr.NotFound("payment %s not found", id))
		return
	}
	p, err := h.Ledger.PaymentByID(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if !u.CanActFor(p.CustomerEmail) {
		api.WriteAppError(w, r, apperr.Forbidden("not your payment"))
		return
	}
	b, err := h.Bookings.Get(r.Context(), p.BookingID, u.Email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	pdf, err := RenderReceipt(*p, b, h.now())
	if err != nil {
		api.WriteAppError(w, r, fmt.Errorf("render receipt: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, p.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
