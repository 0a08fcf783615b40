package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"decorbook/pkg/db"
)

type Action string

const (
	ActionRoleChanged       Action = "USER_ROLE_CHANGED"
	ActionServiceCreated    Action = "SERVICE_CREATED"
	ActionServiceUpdated    Action = "SERVICE_UPDATED"
	ActionServiceDeleted    Action = "SERVICE_DELETED"
	ActionDecoratorAssigned Action = "DECORATOR_ASSIGNED"
)

type Entry struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	Actor     string          `json:"actor"`
	Target    string          `json:"target"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func Insert(ctx context.Context, tx pgx.Tx, action Action, actor, target string, metadata any) error {
	var s *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (action, actor, target, metadata)
VALUES ($1, $2, $3, CAST($4 AS jsonb))
`
	_, err := tx.Exec(ctx, q, string(action), actor, target, s)
	return err
}

// Record writes one entry outside any caller transaction.
func (r *Repository) Record(ctx context.Context, action Action, actor, target string, metadata any) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return Insert(ctx, tx, action, actor, target, metadata)
	})
}

// Recent returns the newest entries first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
SELECT id, action, actor, target, COALESCE(metadata, '{}'::jsonb), created_at
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Target, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = meta
		out = append(out, e)
	}
	return out, rows.Err()
}
