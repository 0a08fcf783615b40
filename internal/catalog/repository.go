package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"decorbook/internal/apperr"
	"decorbook/internal/audit"
	"decorbook/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `id, name, category, cost::text, unit, description, image, created_by_email, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanService(row scanner) (*Service, error) {
	var s Service
	var cost string
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &cost, &s.Unit, &s.Description, &s.Image,
		&s.CreatedByEmail, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	c, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, err
	}
	s.Cost = c
	return &s, nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Service, error) {
	const q = `
SELECT ` + serviceColumns + `
FROM services
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
  AND ($2 = '' OR category = $2)
  AND ($3::numeric IS NULL OR cost >= $3::numeric)
  AND ($4::numeric IS NULL OR cost <= $4::numeric)
ORDER BY created_at DESC
LIMIT NULLIF($5::int, 0)
`
	var minCost, maxCost *string
	if f.MinCost != nil {
		s := f.MinCost.String()
		minCost = &s
	}
	if f.MaxCost != nil {
		s := f.MaxCost.String()
		maxCost = &s
	}

	rows, err := r.db.Query(ctx, q, f.Search, string(f.Category), minCost, maxCost, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	s, err := scanService(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("service %s not found", id)
		}
		return nil, err
	}
	return s, nil
}

func (r *Repository) Create(ctx context.Context, in Input, cat Category, actor string) (*Service, error) {
	var created *Service
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		s, err := Insert(ctx, tx, in, cat, actor)
		if err != nil {
			return err
		}
		created = s
		return audit.Insert(ctx, tx, audit.ActionServiceCreated, actor, s.ID, auditMeta(s))
	})
	return created, err
}

func (r *Repository) Update(ctx context.Context, id string, in Input, cat Category, actor string) (*Service, error) {
	var updated *Service
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		s, err := Update(ctx, tx, id, in, cat)
		if err != nil {
			return err
		}
		updated = s
		return audit.Insert(ctx, tx, audit.ActionServiceUpdated, actor, s.ID, auditMeta(s))
	})
	return updated, err
}

func (r *Repository) Delete(ctx context.Context, id, actor string) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := Delete(ctx, tx, id); err != nil {
			return err
		}
		return audit.Insert(ctx, tx, audit.ActionServiceDeleted, actor, id, nil)
	})
}

func auditMeta(s *Service) map[string]any {
	return map[string]any{"name": s.Name, "cost": s.Cost.StringFixed(2)}
}

func Insert(ctx context.Context, tx pgx.Tx, in Input, cat Category, createdBy string) (*Service, error) {
	const q = `
INSERT INTO services (name, category, cost, unit, description, image, created_by_email)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
RETURNING ` + serviceColumns
	return scanService(tx.QueryRow(ctx, q, in.Name, string(cat), in.Cost.StringFixed(2), in.Unit, in.Description, in.Image, createdBy))
}

func Update(ctx context.Context, tx pgx.Tx, id string, in Input, cat Category) (*Service, error) {
	const q = `
UPDATE services
SET name = $2, category = $3, cost = $4::numeric, unit = $5, description = $6, image = $7, updated_at = NOW()
WHERE id = $1
RETURNING ` + serviceColumns
	s, err := scanService(tx.QueryRow(ctx, q, id, in.Name, string(cat), in.Cost.StringFixed(2), in.Unit, in.Description, in.Image))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("service %s not found", id)
		}
		return nil, err
	}
	return s, nil
}

func Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service %s not found", id)
	}
	return nil
}
