package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const StatusSucceeded = "succeeded"

type PaymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	ClientSecret   string            `json:"client_secret"`
	Description    string            `json:"description"`
	Metadata       map[string]string `json:"metadata"`
}

// Paid is the settled amount, falling back to the requested one on older payloads.
func (p PaymentIntent) Paid() int64 {
	if p.AmountReceived > 0 {
		return p.AmountReceived
	}
	return p.Amount
}

type PaymentIntentParams struct {
	Amount       int64
	Currency     string
	Description  string
	ReceiptEmail string
	Metadata     map[string]string
}

func (c Client) CreatePaymentIntent(ctx context.Context, p PaymentIntentParams) (*PaymentIntent, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("amount must be > 0")
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		return nil, fmt.Errorf("missing currency")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", currency)
	form.Set("payment_method_types[]", "card")
	if p.Description != "" {
		form.Set("description", p.Description)
	}
	if p.ReceiptEmail != "" {
		form.Set("receipt_email", p.ReceiptEmail)
	}
	keys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", p.Metadata[k])
	}

	var out PaymentIntent
	if _, err := c.doForm(ctx, http.MethodPost, "/v1/payment_intents", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("missing payment intent id")
	}
	var out PaymentIntent
	if _, err := c.doForm(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToMinorUnits converts a two-decimal amount to the integer unit the API expects.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
