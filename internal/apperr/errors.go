// Package apperr holds the error kinds shared by every service so that the
// HTTP layer and the service-to-service clients agree on their meaning.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrConflict              = errors.New("conflict")
	ErrUnauthorized          = errors.New("unauthorized")
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (available: %d)", e.ProductID, e.Available)
}

// DependencyError marks a failure reaching another service or store.
// errors.Is matches both ErrDependencyUnavailable and the cause.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() []error { return []error{ErrDependencyUnavailable, e.Err} }

func Unavailable(dependency string, err error) error {
	return &DependencyError{Dependency: dependency, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var e *InsufficientStockError
	ok := errors.As(err, &e)
	return e, ok
}
