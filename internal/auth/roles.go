package auth

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"decorbook/internal/audit"
	"decorbook/internal/booking"
	"decorbook/internal/user"
	"decorbook/pkg/db"
)

// PgRoles changes roles under a row lock and writes the audit entry in the same transaction.
type PgRoles struct {
	DB *pgxpool.Pool
}

func (p PgRoles) ChangeRole(ctx context.Context, actor, email string, next user.Role) (*user.User, error) {
	var out *user.User
	err := db.WithTx(ctx, p.DB, func(tx pgx.Tx) error {
		u, err := user.GetForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if err := user.ValidateRoleChange(u.Role, next); err != nil {
			return err
		}
		if u.Role == next {
			out = u
			return nil
		}
		active, err := booking.ActiveAssignments(ctx, tx, u.Email)
		if err != nil {
			return err
		}
		if err := user.ValidateDecoratorRelease(u.Role, next, active); err != nil {
			return err
		}
		if err := user.UpdateRole(ctx, tx, u.Email, next); err != nil {
			return err
		}
		if err := audit.Insert(ctx, tx, audit.ActionRoleChanged, actor, u.Email, map[string]any{
			"from": u.Role,
			"to":   next,
		}); err != nil {
			return err
		}
		u.Role = next
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
