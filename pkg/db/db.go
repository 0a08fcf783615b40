package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"decorbook/pkg/config"
)

// Open connects the runtime pool and pings it once.
func Open(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pcfg, err := PoolConfig(RuntimeURL(cfg))
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PoolConfig parses connString. Behind a transaction pooler (`pgbouncer=true`)
// prepared statements are off and every query uses the simple protocol.
func PoolConfig(connString string) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	if behindPooler(connString) {
		pcfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		pcfg.ConnConfig.StatementCacheCapacity = 0
		pcfg.ConnConfig.DescriptionCacheCapacity = 0
	}
	return pcfg, nil
}

func behindPooler(connString string) bool {
	return strings.Contains(strings.ToLower(connString), "pgbouncer=true")
}

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RuntimeURL is DATABASE_URL when set, else a URL built from the DB_* parts.
func RuntimeURL(cfg config.Config) string {
	if u := strings.TrimSpace(cfg.DatabaseURL); u != "" {
		return u
	}
	return partsURL(cfg.DB)
}

// MigrationURL prefers DIRECT_URL: schema changes must not go through a pooler.
func MigrationURL(cfg config.Config) string {
	if u := strings.TrimSpace(cfg.DirectURL); u != "" {
		return u
	}
	return RuntimeURL(cfg)
}

func partsURL(c config.DBConfig) string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// Redacted hides the password so a URL can be logged.
func Redacted(connString string) string {
	u, err := url.Parse(connString)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// IsUniqueViolation reports a Postgres unique_violation, optionally on a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
