package user

import (
	"strings"
	"time"

	"decorbook/internal/apperr"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleDecorator Role = "decorator"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleUser, RoleDecorator, RoleAdmin:
		return Role(strings.TrimSpace(s)), nil
	default:
		return "", apperr.Validation("unknown role: %s", s)
	}
}

type User struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Photo     string    `json:"photo,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanActFor reports whether u may read or act on records owned by email:
// either u is that user or u is an admin.
func (u *User) CanActFor(email string) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || strings.EqualFold(u.Email, email)
}

// ValidateRoleChange enforces that admins only promote/demote between user and
// decorator; the admin role is neither granted nor revoked here.
func ValidateRoleChange(current, next Role) error {
	if next == RoleAdmin {
		return apperr.Forbidden("admin role cannot be assigned")
	}
	if current == RoleAdmin {
		return apperr.Forbidden("admin role cannot be changed")
	}
	if next != RoleUser && next != RoleDecorator {
		return apperr.Validation("role must be user or decorator")
	}
	return nil
}

// ValidateDecoratorRelease blocks taking the decorator role from someone who
// still has bookings in progress.
func ValidateDecoratorRelease(current, next Role, activeAssignments int) error {
	if current == RoleDecorator && next != RoleDecorator && activeAssignments > 0 {
		return apperr.Validation("decorator has %d active bookings", activeAssignments)
	}
	return nil
}

// NormalizeEmail is the canonical key form used for users and booking references.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
