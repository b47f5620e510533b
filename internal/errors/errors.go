// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"

	"earnings-backtest/internal/models"
)

// Standard sentinel errors
var (
	ErrDataUnavailable      = errors.New("price data unavailable")
	ErrInsufficientHistory  = errors.New("insufficient price history")
	ErrDegenerateArithmetic = errors.New("degenerate arithmetic input")
	ErrCapitalConstraint    = errors.New("capital constraint violated")
	ErrRiskGateDenied       = errors.New("risk gate denied entry")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrDatabaseError        = errors.New("database error")
)

// SkipError marks a candidate as skipped for a recorded reason. It is
// recovered at the point of origin; it never aborts the run.
type SkipError struct {
	Symbol string
	Reason models.SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skip %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("skip %s: %s", e.Symbol, e.Reason)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// NewSkipError creates a SkipError for the symbol and reason.
func NewSkipError(symbol string, reason models.SkipReason, err error) *SkipError {
	return &SkipError{Symbol: symbol, Reason: reason, Err: err}
}

// AsSkip extracts a SkipError from err, if any.
func AsSkip(err error) (*SkipError, bool) {
	var skip *SkipError
	if errors.As(err, &skip) {
		return skip, true
	}
	return nil, false
}

// ValidationError represents an invalid configuration value. Configuration
// errors are the only fatal errors in the engine.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
