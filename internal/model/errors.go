package model

import (
	"errors"
	"fmt"
)

// Error categories. Every domain error unwraps to exactly one of these so the
// transport layer can map it to a status code.
var (
	ErrUnauthenticated  = errors.New("there is no user making the request")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate operation")
	ErrPersistence      = errors.New("persistence error")
	ErrNotification     = errors.New("notification error")
)

// Error is a domain error with a client-facing message and a category.
type Error struct {
	Category error
	Message  string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Category }

func newError(category error, message string) *Error {
	return &Error{Category: category, Message: message}
}

// InvalidArgument reports a missing or malformed request parameter.
func InvalidArgument(format string, args ...any) error {
	return newError(ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Persistence wraps a store failure. The original error stays in the chain.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
