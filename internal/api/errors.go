package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedPayload is returned when a response body has a shape none of
	// the known endpoint variants use.
	ErrUnexpectedPayload = errors.New("unexpected response payload")

	// ErrInvalidBaseURL is returned when the configured API base URL cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid API base URL")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api: %s: %s %s returned HTTP %d: %s", e.Op, e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("api: %s: %s %s returned HTTP %d", e.Op, e.Method, e.URL, e.StatusCode)
}

// Temporary reports whether retrying the request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
