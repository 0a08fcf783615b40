package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable error code surfaced to API callers.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_FAILED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_STATE_TRANSITION"
	KindNotPayable        Kind = "NOT_PAYABLE"
	KindAlreadyPaid       Kind = "ALREADY_PAID"
	KindAmountMismatch    Kind = "AMOUNT_MISMATCH"
	KindTerminalState     Kind = "TERMINAL_STATE"
	KindConflict          Kind = "CONFLICT"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, apperr.ErrConflict) regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotPayable        = &Error{Kind: KindNotPayable}
	ErrAlreadyPaid       = &Error{Kind: KindAlreadyPaid}
	ErrAmountMismatch    = &Error{Kind: KindAmountMismatch}
	ErrTerminalState     = &Error{Kind: KindTerminalState}
	ErrConflict          = &Error{Kind: KindConflict}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
