package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidHeader    = errors.New("invalid signature header")
	ErrNoValidSignature = errors.New("no valid signature")
	ErrTooOld           = errors.New("timestamp outside tolerance")
)

// Event is the webhook envelope. Data.Object is decoded by the caller per Type.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func computeSignature(t int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(t, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignHeader builds a Stripe-Signature header value for payload at time t.
func SignHeader(payload []byte, secret string, t time.Time) string {
	ts := t.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(ts, payload, secret))
}

// VerifySignature checks the Stripe-Signature header (t=...,v1=...) against payload.
// Any v1 entry may match, which covers secret rotation.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" || secret == "" {
		return ErrMissingSignature
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidHeader
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrInvalidHeader
	}

	expected := computeSignature(ts, payload, secret)
	matched := false
	for _, s := range sigs {
		if hmac.Equal([]byte(expected), []byte(s)) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrNoValidSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrTooOld
		}
	}
	return nil
}

// ParseEvent verifies payload and decodes the envelope.
func ParseEvent(payload []byte, header, secret string, now time.Time) (*Event, error) {
	if err := VerifySignature(payload, header, secret, now, DefaultTolerance); err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("event missing id or type")
	}
	return &ev, nil
}
