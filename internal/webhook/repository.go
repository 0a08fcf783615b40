package webhook

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"decorbook/pkg/db"
)

// EventLog remembers which processor events were already handled.
type EventLog interface {
	Processed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID, eventType, payloadHash string) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Processed(ctx context.Context, provider, eventID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE provider = $1 AND event_id = $2)`
	var ok bool
	err := r.db.QueryRow(ctx, q, provider, eventID).Scan(&ok)
	return ok, err
}

// MarkProcessed is safe to call twice for the same event.
func (r *Repository) MarkProcessed(ctx context.Context, provider, eventID, eventType, payloadHash string) error {
	const q = `
INSERT INTO webhook_events (provider, event_id, event_type, payload_hash, processed_at)
VALUES ($1, $2, $3, $4, NOW())
`
	_, err := r.db.Exec(ctx, q, provider, eventID, eventType, payloadHash)
	if db.IsUniqueViolation(err, "webhook_events_provider_event_key") {
		return nil
	}
	return err
}
