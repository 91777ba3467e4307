package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrDatasetNotFound = fmt.Errorf("%w: dataset", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("%w: user", ErrNotFound)
	ErrSignalNotFound  = fmt.Errorf("%w: signal", ErrNotFound)
	ErrContentNotFound = fmt.Errorf("%w: content item", ErrNotFound)
	ErrJobNotFound     = fmt.Errorf("%w: job", ErrNotFound)

	// Reconciliation errors
	ErrDuplicateExternalID = errors.New("duplicate external id")
	ErrMissingExternalID   = errors.New("missing external id")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")

	// Workflow errors
	ErrRunInProgress = errors.New("a workflow run is already in progress")
)

// NewNotFoundError builds a not-found error with resource context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewValidationError builds a field-level validation error
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError reports whether err is a duplicate-key conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateExternalID)
}
