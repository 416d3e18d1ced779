// Package chaterr defines the error taxonomy shared by the chat core and its
// transports. Lower layers wrap these sentinels; boundaries classify with KindOf.
package chaterr

import (
	"errors"
	"fmt"
)

var (
	ErrAuth         = errors.New("authentication failed")
	ErrNotFound     = errors.New("room not found")
	ErrAccessDenied = errors.New("access denied")
	ErrValidation   = errors.New("invalid request")
	ErrStorage      = errors.New("storage failure")
)

// Kind is the stable, client-visible name of an error class.
type Kind string

const (
	KindAuth         Kind = "auth_error"
	KindNotFound     Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindValidation   Kind = "validation_error"
	KindStorage      Kind = "storage_error"
)

// KindOf classifies err. Anything unclassified counts as a storage failure,
// which is the only class whose detail is never shown to clients.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindStorage
	}
}

// Validation wraps a formatted message as a validation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storage wraps a persistence failure. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
