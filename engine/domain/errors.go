package domain

import (
	"errors"
	"fmt"
)

// Hard failures that cross the pipeline boundary.
var (
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrPipelineTimeout = errors.New("search pipeline timed out")
	ErrAccountNotFound = errors.New("credit account not found")
	ErrAccountExists   = errors.New("credit account already exists")
	ErrInvalidAmount   = errors.New("invalid credit amount")
	ErrInvalidUser     = errors.New("invalid user id")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
