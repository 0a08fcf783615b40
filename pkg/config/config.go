package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	Auth AuthConfig

	Stripe StripeConfig

	// AllowedOrigins is a comma-separated allowlist of browser origins. Example:
	//   https://styledecor.app,http://localhost:5173
	AllowedOrigins []string

	// BusinessTimezone decides what "today" means for booking dates and schedules.
	BusinessTimezone string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  int // hours

	// BridgeSecret is shared with the identity provider bridge that calls /auth/jwt.
	// Required in prod; ignored in dev.
	BridgeSecret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
	Currency      string
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":5000"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "decorbook"),
			User:     env("DB_USER", "decorbook"),
			Password: env("DB_PASSWORD", "decorbook"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:    env("AUTH_JWT_SECRET", "dev-secret-change-me"),
			TokenTTL:     envInt("AUTH_TOKEN_TTL_HOURS", 168),
			BridgeSecret: os.Getenv("AUTH_BRIDGE_SECRET"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			APIBase:       env("STRIPE_API_BASE", "https://api.stripe.com"),
			Currency:      env("PAYMENT_CURRENCY", "bdt"),
		},

		AllowedOrigins:   envList("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"),
		BusinessTimezone: env("BUSINESS_TIMEZONE", "Asia/Dhaka"),
	}
}

func (c Config) IsProd() bool {
	return c.AppEnv == "prod"
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
