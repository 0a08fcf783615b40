package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"decorbook/internal/api"
	"decorbook/internal/audit"
	"decorbook/internal/auth"
	"decorbook/internal/booking"
	"decorbook/internal/catalog"
	"decorbook/internal/payment"
	"decorbook/internal/user"
	"decorbook/internal/webhook"
	"decorbook/pkg/config"
	"decorbook/pkg/stripe"
)

type Dependencies struct {
	Cfg config.Config
	DB  *pgxpool.Pool
	// Location is the business timezone used for "today".
	Location *time.Location
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Cfg
	dev := !cfg.IsProd()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.CORSMiddleware(api.CORSOptions{AllowedOrigins: cfg.AllowedOrigins}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	usersRepo := user.NewRepository(deps.DB)
	servicesRepo := catalog.NewRepository(deps.DB)
	bookingsRepo := booking.NewRepository(deps.DB)
	auditRepo := audit.NewRepository(deps.DB)
	engine := booking.NewEngine(bookingsRepo, servicesRepo, usersRepo, deps.Location)

	stripeClient := stripe.Client{SecretKey: cfg.Stripe.SecretKey, APIBase: cfg.Stripe.APIBase}

	authHandlers := auth.Handlers{
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       time.Duration(cfg.Auth.TokenTTL) * time.Hour,
		AllowDevHeader: dev,
		Verbose:        dev,
		Users:          usersRepo,
		Roles:          auth.PgRoles{DB: deps.DB},
	}
	catalogHandlers := catalog.Handlers{Services: servicesRepo}
	bookingHandlers := booking.Handlers{Engine: engine, Audit: auditRepo}
	paymentHandlers := payment.Handlers{
		Currency:        cfg.Stripe.Currency,
		AllowUnverified: dev,
		Bookings:        engine,
		Ledger:          bookingsRepo,
		Stripe:          stripeClient,
	}
	webhookHandler := webhook.Handler{
		Secret:   cfg.Stripe.WebhookSecret,
		Verbose:  dev,
		Events:   webhook.NewRepository(deps.DB),
		Payments: engine,
	}
	auditHandlers := audit.Handlers{Log: auditRepo}

	session := api.SessionAuth(api.SessionOptions{
		Users:          usersRepo,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowDevHeader: dev,
	})
	adminOnly := api.RequireRole(user.RoleAdmin)

	r.Route("/v1", func(r chi.Router) {
		// Public
		r.With(auth.RequireBridge(cfg.Auth.BridgeSecret, cfg.IsProd())).Post("/auth/jwt", authHandlers.IssueToken)
		r.Post("/users", authHandlers.RegisterUser)
		r.Get("/decorators", authHandlers.ListDecorators)
		r.Get("/services", catalogHandlers.List)
		r.Get("/services/{id}", catalogHandlers.Get)
		r.Get("/bookings/statuses", bookingHandlers.Statuses)
		r.Post("/webhooks/stripe", webhookHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(session)

			r.Get("/users/role/{email}", authHandlers.GetRole)

			r.Post("/bookings", bookingHandlers.Create)
			r.Get("/bookings", bookingHandlers.List)
			r.Get("/bookings/{id}", bookingHandlers.Get)
			r.Get("/bookings/{id}/events", bookingHandlers.Events)
			r.Get("/bookings/user/{email}", bookingHandlers.ListByCustomer)
			r.Get("/bookings/decorator/{email}", bookingHandlers.ListByDecorator)
			r.Get("/bookings/decorator/{email}/today", bookingHandlers.TodayForDecorator)
			r.Patch("/bookings/cancel/{id}", bookingHandlers.Cancel)
			r.Patch("/bookings/assign/{id}", bookingHandlers.Assign)
			r.Patch("/bookings/status/{id}", bookingHandlers.Advance)
			r.Get("/decorators/{email}/earnings", bookingHandlers.Earnings)
			r.Get("/analytics/summary", bookingHandlers.RevenueSummary)

			r.Post("/payments/create-payment-intent", paymentHandlers.CreateIntent)
			r.Post("/payments/confirm", paymentHandlers.Confirm)
			r.Get("/payments/history/{email}", paymentHandlers.History)
			r.Get("/payments/{id}/receipt", paymentHandlers.Receipt)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/users", authHandlers.ListUsers)
				r.Patch("/users/role/{email}", authHandlers.SetRole)
				r.Post("/services", catalogHandlers.Create)
				r.Put("/services/{id}", catalogHandlers.Update)
				r.Delete("/services/{id}", catalogHandlers.Delete)
				r.Get("/audit", auditHandlers.List)
			})
		})
	})

	return r
}
