package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrMixedModes       = errors.New("test and live trades mixed in one aggregation")
	ErrNoSnapshot       = errors.New("no snapshot available")
	ErrFactsUnavailable = errors.New("prerequisite facts unavailable")
	ErrNotReady         = errors.New("account is not ready for live trading")
	ErrPanicActive      = errors.New("panic halt is active")
	ErrRateLimited      = errors.New("rate limited")
	ErrLockHeld         = errors.New("lock already held")
	ErrPollInFlight     = errors.New("poll already in flight")
)

// ValidationError is the typed failure for malformed input: negative
// amounts, non-finite numbers, or upstream responses missing required
// fields. The engine never guesses or coerces such input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
