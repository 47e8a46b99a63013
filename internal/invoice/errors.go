package invoice

import (
	"errors"
	"fmt"
)

// Common normalization errors
var (
	// ErrNotInvoice is returned when a payload decodes to something other than
	// a JSON object (array, string, number, null).
	ErrNotInvoice = errors.New("payload is not an invoice object")

	// ErrMalformedPayload is returned when a push frame is not valid JSON.
	ErrMalformedPayload = errors.New("malformed invoice payload")
)

// NormalizeError wraps errors raised while turning a raw record into a canonical invoice.
type NormalizeError struct {
	// Op is the operation that failed (e.g., "Decode", "Normalize").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *NormalizeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("invoice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *NormalizeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewNormalizeError creates a new NormalizeError with the specified operation and underlying error.
func NewNormalizeError(op string, err error, details string) *NormalizeError {
	return &NormalizeError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
