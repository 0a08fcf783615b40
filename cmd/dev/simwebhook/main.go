package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"decorbook/internal/payment"
	"decorbook/pkg/config"
	"decorbook/pkg/stripe"
)

func main() {
	var (
		url       = flag.String("url", "", "webhook endpoint url (defaults to http://localhost<HTTP_ADDR>/v1/webhooks/stripe)")
		secret    = flag.String("secret", "", "STRIPE_WEBHOOK_SECRET (defaults to env)")
		bookingID = flag.String("booking", "", "booking id the payment is for")
		amount    = flag.String("amount", "", "amount in major units, e.g. 5000.00")
		currency  = flag.String("currency", "", "currency (defaults to PAYMENT_CURRENCY)")
		intentID  = flag.String("pi", "", "payment intent id (random when empty)")
		eventID   = flag.String("id", "", "event id (random when empty); reuse to test dedupe")
	)
	flag.Parse()

	cfg := config.Load()
	if *url == "" {
		*url = localBaseURL(cfg.HTTPAddr) + "/v1/webhooks/stripe"
	}
	if *secret == "" {
		*secret = cfg.Stripe.WebhookSecret
	}
	if *currency == "" {
		*currency = cfg.Stripe.Currency
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing -secret (or STRIPE_WEBHOOK_SECRET)")
		os.Exit(2)
	}
	if *bookingID == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "missing -booking or -amount")
		os.Exit(2)
	}
	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -amount: %v\n", err)
		os.Exit(2)
	}

	now := time.Now()
	if *intentID == "" {
		*intentID = fmt.Sprintf("pi_sim_%d", now.UnixNano())
	}
	if *eventID == "" {
		*eventID = fmt.Sprintf("evt_sim_%d", now.UnixNano())
	}

	minor := stripe.ToMinorUnits(amt)
	body, _ := json.Marshal(map[string]any{
		"id":      *eventID,
		"type":    "payment_intent.succeeded",
		"created": now.Unix(),
		"data": map[string]any{
			"object": stripe.PaymentIntent{
				ID:             *intentID,
				Amount:         minor,
				AmountReceived: minor,
				Currency:       *currency,
				Status:         stripe.StatusSucceeded,
				Description:    payment.Description(*bookingID),
				Metadata:       map[string]string{"booking_id": *bookingID},
			},
		},
	})

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "new request: %v\n", err)
		os.Exit(2)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", stripe.SignHeader(body, *secret, now))

	c := &http.Client{Timeout: 10 * time.Second}
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "post: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d event=%s pi=%s\n%s\n", resp.StatusCode, *eventID, *intentID, string(out))
}

// localBaseURL turns a bind address like ":5000" or "0.0.0.0:5000" into a dialable url.
func localBaseURL(httpAddr string) string {
	addr := strings.TrimSpace(httpAddr)
	switch {
	case addr == "":
		return "http://localhost:5000"
	case strings.HasPrefix(addr, ":"):
		return "http://localhost" + addr
	case strings.HasPrefix(addr, "0.0.0.0:"):
		return "http://localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	default:
		return "http://" + addr
	}
}
