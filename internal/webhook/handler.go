package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
	"decorbook/internal/booking"
	"decorbook/pkg/stripe"
)

const (
	providerStripe = "stripe"
	actorWebhook   = "stripe-webhook"
	maxPayloadSize = 1 << 20
)

type PaymentRecorder interface {
	RecordPayment(ctx context.Context, in booking.PaymentInput) (*booking.Booking, *booking.Payment, error)
}

type Handler struct {
	Secret   string
	Verbose  bool
	Events   EventLog
	Payments PaymentRecorder
	Now      func() time.Time
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid body")
		return
	}

	ev, err := stripe.ParseEvent(body, strings.TrimSpace(r.Header.Get("Stripe-Signature")), h.Secret, h.now())
	if err != nil {
		if h.Verbose {
			log.Printf("webhook rejected err=%v", err)
		}
		api.WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "invalid webhook signature")
		return
	}
	topic := NormalizeTopic(ev.Type)

	seen, err := h.Events.Processed(r.Context(), providerStripe, ev.ID)
	if err != nil {
		log.Printf("webhook dedupe lookup failed event_id=%s err=%v", ev.ID, err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if seen {
		if h.Verbose {
			log.Printf("webhook already processed topic=%s event_id=%s", topic, ev.ID)
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	switch topic {
	case TopicPaymentSucceeded:
		err = h.handlePaymentSucceeded(r.Context(), ev)
	case TopicPaymentFailed:
		if h.Verbose {
			log.Printf("webhook payment failed event_id=%s", ev.ID)
		}
	default:
		// Unknown topic: accept so the processor stops retrying.
	}
	if err != nil {
		// Only transient failures reach here; the processor will retry.
		log.Printf("webhook handling failed topic=%s event_id=%s err=%v", topic, ev.ID, err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	if err := h.Events.MarkProcessed(r.Context(), providerStripe, ev.ID, topic, sha256Hex(body)); err != nil {
		log.Printf("webhook mark processed failed event_id=%s err=%v", ev.ID, err)
	}
	w.WriteHeader(http.StatusOK)
}

// BookingIDFor finds the booking an intent pays for: metadata first, then the description.
func BookingIDFor(pi stripe.PaymentIntent) string {
	if id := strings.TrimSpace(pi.Metadata["booking_id"]); id != "" {
		return id
	}
	return ParseKeyFromNote(pi.Description, "booking_id")
}

// handlePaymentSucceeded returns an error only when a retry could help.
func (h Handler) handlePaymentSucceeded(ctx context.Context, ev *stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Object, &pi); err != nil {
		log.Printf("webhook payment_intent decode failed event_id=%s err=%v", ev.ID, err)
		return nil
	}
	bookingID := BookingIDFor(pi)
	if bookingID == "" || pi.ID == "" {
		if h.Verbose {
			log.Printf("webhook payment_intent without booking event_id=%s pi=%s", ev.ID, pi.ID)
		}
		return nil
	}

	b, _, err := h.Payments.RecordPayment(ctx, booking.PaymentInput{
		BookingID:     bookingID,
		TransactionID: pi.ID,
		Amount:        stripe.FromMinorUnits(pi.Paid()),
		Currency:      pi.Currency,
		Actor:         actorWebhook,
	})
	if err != nil {
		// Conflict may clear on retry; other domain errors never will.
		if k := apperr.KindOf(err); k != "" && k != apperr.KindConflict {
			log.Printf("webhook payment not applied booking=%s pi=%s err=%v", bookingID, pi.ID, err)
			return nil
		}
		return err
	}
	if h.Verbose {
		log.Printf("webhook payment applied booking=%s pi=%s status=%s", b.ID, pi.ID, b.PaymentStatus)
	}
	return nil
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
