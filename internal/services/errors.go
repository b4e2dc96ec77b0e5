package services

import (
	"errors"
	"fmt"

	"github.com/chachabrian/ridepool-backend/internal/repository"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSelfBooking       = errors.New("Cannot book your own ride")
	ErrInsufficientSeats = errors.New("Not enough seats")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyExists     = errors.New("already exists")
	ErrConflict          = errors.New("changed concurrently, reload and retry")
	ErrValidation        = errors.New("invalid request")
)

// Error pairs one of the sentinel kinds above with a client-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFound(what string) error {
	return newError(ErrNotFound, "%s not found", what)
}

// Message returns the client-facing text of a domain error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// lookup converts a repository miss into a named not-found error and wraps
// anything else.
func lookup(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
