package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"decorbook/internal/catalog"
	"decorbook/internal/user"
	"decorbook/pkg/config"
	"decorbook/pkg/db"
)

// devflow seeds three users and a service, then drives one booking through the
// whole lifecycle against a running API in dev mode (X-User-Email sessions).
func main() {
	var (
		baseURL   = flag.String("base-url", "", "API base url (defaults to http://localhost<HTTP_ADDR>)")
		admin     = flag.String("admin", "admin@decorbook.test", "admin email to seed")
		decorator = flag.String("decorator", "decorator@decorbook.test", "decorator email to seed")
		customer  = flag.String("customer", "customer@decorbook.test", "customer email to seed")
		cost      = flag.String("cost", "5000.00", "seeded service cost")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.IsProd() {
		fmt.Fprintln(os.Stderr, "devflow relies on X-User-Email sessions and refuses to run with APP_ENV=prod")
		os.Exit(2)
	}
	if *baseURL == "" {
		*baseURL = localBaseURL(cfg.HTTPAddr)
	}
	price, err := decimal.NewFromString(*cost)
	if err != nil {
		fail("bad -cost: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fail("db open: %v", err)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.MigrateConfig(cfg.MigrationsPath, cfg); err != nil {
			fail("migrate: %v", err)
		}
	}

	users := user.NewRepository(pool)
	var svc *catalog.Service
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for email, role := range map[string]user.Role{
			*admin:     user.RoleAdmin,
			*decorator: user.RoleDecorator,
			*customer:  user.RoleUser,
		} {
			if _, err := users.Upsert(ctx, email, strings.Split(email, "@")[0], ""); err != nil {
				return err
			}
			// Direct write: the admin role cannot be granted through the API.
			if err := user.UpdateRole(ctx, tx, email, role); err != nil {
				return err
			}
		}
		var err error
		svc, err = catalog.Insert(ctx, tx, catalog.Input{
			Name:        "Devflow Wedding Stage",
			Cost:        price,
			Unit:        "per event",
			Description: "seeded by devflow",
		}, catalog.CategoryWedding, *admin)
		return err
	})
	if err != nil {
		fail("seed: %v", err)
	}
	fmt.Printf("seeded service_id=%s cost=%s\n", svc.ID, svc.Cost.StringFixed(2))

	c := client{base: strings.TrimRight(*baseURL, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	tomorrow := time.Now().Add(24 * time.Hour).Format("2006-01-02")

	var created struct {
		Booking bookingView `json:"booking"`
	}
	c.must(http.MethodPost, "/v1/bookings", *customer, map[string]any{
		"serviceId":   svc.ID,
		"bookingDate": tomorrow,
		"location":    "Devflow Hall",
	}, &created)
	id := created.Booking.ID
	fmt.Printf("created booking=%s status=%s payment=%s\n", id, created.Booking.Status, created.Booking.PaymentStatus)

	var paid struct {
		Booking bookingView `json:"booking"`
	}
	c.must(http.MethodPost, "/v1/payments/confirm", *customer, map[string]any{
		"bookingId":     id,
		"transactionId": fmt.Sprintf("pi_devflow_%d", time.Now().UnixNano()),
		"amount":        svc.Cost.StringFixed(2),
	}, &paid)
	fmt.Printf("paid      status=%s payment=%s\n", paid.Booking.Status, paid.Booking.PaymentStatus)

	var step struct {
		Booking bookingView `json:"booking"`
	}
	c.must(http.MethodPatch, "/v1/bookings/assign/"+id, *admin, map[string]any{"assignedDecorator": *decorator}, &step)
	fmt.Printf("assigned  status=%s decorator=%s\n", step.Booking.Status, *decorator)

	for step.Booking.Status != "completed" {
		c.must(http.MethodPatch, "/v1/bookings/status/"+id, *decorator, nil, &step)
		fmt.Printf("advanced  status=%s version=%d\n", step.Booking.Status, step.Booking.Version)
	}

	var earnings map[string]any
	c.must(http.MethodGet, "/v1/decorators/"+*decorator+"/earnings", *decorator, nil, &earnings)
	fmt.Printf("earnings  earned=%v completed=%v\n", earnings["earned"], earnings["completedCount"])

	var timeline struct {
		Items []struct {
			Type    string `json:"eventType"`
			Summary string `json:"summary"`
		} `json:"items"`
	}
	c.must(http.MethodGet, "/v1/bookings/"+id+"/events", *customer, nil, &timeline)
	fmt.Printf("timeline (%d events):\n", len(timeline.Items))
	for _, e := range timeline.Items {
		fmt.Printf("  - %s: %s\n", e.Type, e.Summary)
	}
}

type bookingView struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Version       int    `json:"version"`
}

type client struct {
	base string
	http *http.Client
}

func (c client) must(method, path, as string, body any, out any) {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		fail("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-Email", as)

	resp, err := c.http.Do(req)
	if err != nil {
		fail("%s %s: %v (is the API running at %s?)", method, path, err, c.base)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fail("%s %s status=%d body=%s", method, path, resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			fail("decode %s: %v", path, err)
		}
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

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
