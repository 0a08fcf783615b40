package user

import (
	"errors"
	"testing"

	"decorbook/internal/apperr"
)

func TestParseRole_RejectsUnknown(t *testing.T) {
	if _, err := ParseRole("superuser"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := ParseRole(" decorator ")
	if err != nil || got != RoleDecorator {
		t.Fatalf("expected decorator, got %q err=%v", got, err)
	}
}

func TestValidateRoleChange(t *testing.T) {
	cases := []struct {
		name    string
		current Role
		next    Role
		want    error
	}{
		{"promote", RoleUser, RoleDecorator, nil},
		{"demote", RoleDecorator, RoleUser, nil},
		{"grant admin", RoleUser, RoleAdmin, apperr.ErrForbidden},
		{"change admin", RoleAdmin, RoleUser, apperr.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRoleChange(tc.current, tc.next)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateDecoratorRelease(t *testing.T) {
	if err := ValidateDecoratorRelease(RoleDecorator, RoleUser, 2); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for busy decorator, got %v", err)
	}
	if err := ValidateDecoratorRelease(RoleDecorator, RoleUser, 0); err != nil {
		t.Fatalf("idle decorator should be demotable: %v", err)
	}
	if err := ValidateDecoratorRelease(RoleUser, RoleDecorator, 3); err != nil {
		t.Fatalf("promotion must not be blocked: %v", err)
	}
}

func TestCanActFor(t *testing.T) {
	admin := &User{Email: "admin@x.com", Role: RoleAdmin}
	cust := &User{Email: "c@x.com", Role: RoleUser}

	if !admin.CanActFor("someone@x.com") {
		t.Fatalf("admin should act for anyone")
	}
	if !cust.CanActFor("C@x.com") {
		t.Fatalf("user should act for self regardless of case")
	}
	if cust.CanActFor("other@x.com") {
		t.Fatalf("user must not act for others")
	}
	var nobody *User
	if nobody.CanActFor("c@x.com") {
		t.Fatalf("nil user must not act")
	}
}
