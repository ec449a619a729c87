package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrUnauthenticated = errors.New("authentication required")
	ErrExpired         = errors.New("file has expired")
	// ErrStorage wraps blob store failures.
	ErrStorage = errors.New("storage failure")
	// ErrConsistency means a blob was removed but its record could not be.
	ErrConsistency = errors.New("file record and blob out of sync")
	// ErrShareIDExhausted is returned when every share id attempt collided.
	ErrShareIDExhausted = errors.New("could not allocate a unique share id")
)

// ValidationError describes user-correctable input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
