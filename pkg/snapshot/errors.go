package snapshot

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every input rejection. Callers map it to a request
// validation failure, never to a ledger fault.
var ErrInvalid = errors.New("snapshot: invalid input")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snapshot: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
