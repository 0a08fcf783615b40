package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"decorbook/internal/apperr"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert creates the profile on first login. Name and photo are refreshed on later
// logins; role is never touched here.
func (r *Repository) Upsert(ctx context.Context, email, name, photo string) (*User, error) {
	const q = `
INSERT INTO users (email, name, photo, role)
VALUES ($1, $2, $3, 'user')
ON CONFLICT (email) DO UPDATE SET
  name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
  photo = COALESCE(NULLIF(EXCLUDED.photo, ''), users.photo),
  updated_at = NOW()
RETURNING email, name, photo, role, created_at, updated_at
`
	var u User
	if err := r.db.QueryRow(ctx, q, NormalizeEmail(email), name, photo).Scan(
		&u.Email, &u.Name, &u.Photo, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
SELECT email, name, photo, role, created_at, updated_at
FROM users
WHERE email = $1
`
	var u User
	if err := r.db.QueryRow(ctx, q, NormalizeEmail(email)).Scan(
		&u.Email, &u.Name, &u.Photo, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user %s not found", email)
		}
		return nil, err
	}
	return &u, nil
}

// List returns all users, or only those with the given role when role != "".
func (r *Repository) List(ctx context.Context, role Role) ([]User, error) {
	const q = `
SELECT email, name, photo, role, created_at, updated_at
FROM users
WHERE $1 = '' OR role = $1
ORDER BY created_at DESC
`
	rows, err := r.db.Query(ctx, q, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Email, &u.Name, &u.Photo, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, email string) (*User, error) {
	const q = `
SELECT email, name, photo, role, created_at, updated_at
FROM users
WHERE email = $1
FOR UPDATE
`
	var u User
	if err := tx.QueryRow(ctx, q, NormalizeEmail(email)).Scan(
		&u.Email, &u.Name, &u.Photo, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user %s not found", email)
		}
		return nil, err
	}
	return &u, nil
}

func UpdateRole(ctx context.Context, tx pgx.Tx, email string, role Role) error {
	const q = `
UPDATE users
SET role = $1, updated_at = NOW()
WHERE email = $2
`
	_, err := tx.Exec(ctx, q, string(role), NormalizeEmail(email))
	return err
}
