package services

import (
	"errors"

	"github.com/notekeep/apiserver/internal/store"
)

var (
	// ErrValidation marks malformed or missing client input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned for identifiers that are not well formed.
	ErrInvalidID = errors.New("invalid id")

	// ErrUnauthorized covers missing or invalid sessions and failed logins.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a record is absent or not owned by the caller.
	ErrNotFound = store.ErrNotFound

	// ErrConflict is returned when registering an email that is already taken.
	ErrConflict = errors.New("user already exists")

	// ErrUpstream is returned when the AI provider fails.
	ErrUpstream = errors.New("upstream service failed")
)

// ValidationError carries a client-facing message and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
