package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"decorbook/internal/httpapi"
	"decorbook/pkg/config"
	"decorbook/pkg/db"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		log.Fatalf("business timezone %q: %v", cfg.BusinessTimezone, err)
	}
	if cfg.IsProd() {
		if cfg.Auth.BridgeSecret == "" {
			log.Fatalf("AUTH_BRIDGE_SECRET is required in prod")
		}
		if cfg.Auth.JWTSecret == "dev-secret-change-me" {
			log.Fatalf("AUTH_JWT_SECRET must be set in prod")
		}
	}
	if cfg.Stripe.SecretKey == "" {
		log.Printf("STRIPE_SECRET_KEY not set; payments run unverified in dev and are disabled in prod")
	}

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.MigrateConfig(cfg.MigrationsPath, cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:      cfg,
		DB:       conn,
		Location: loc,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("http listening on %s env=%s tz=%s", cfg.HTTPAddr, cfg.AppEnv, loc)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}
