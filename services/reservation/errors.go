package reservation

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before reaching the store.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an id with no matching reservation.
	ErrNotFound = errors.New("reservation not found")

	// ErrStore wraps transport or backend failures.
	ErrStore = errors.New("store error")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
