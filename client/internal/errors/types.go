// Package errors provides the error taxonomy of the synchronization client.
// Every error carries a recoverability category so the mutation executor can
// decide whether a failed job is worth retrying.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory determines how errors should be handled by retry logic.
type ErrorCategory int

const (
	// Recoverable errors should be retried with exponential backoff.
	// Examples: 500 Internal Server Error, network timeouts, connection failures.
	Recoverable ErrorCategory = iota

	// Irrecoverable errors should fail immediately without retry.
	// Examples: 401 Unauthorized, 403 Forbidden, 400 Bad Request, bad input.
	Irrecoverable
)

// String returns a human-readable representation of the error category.
func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

var (
	// ErrMalformedResponse is returned when a 2xx response body does not match
	// the expected schema.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrCacheDegraded marks a durable cache tier failure. It is logged, never
	// returned to callers.
	ErrCacheDegraded = errors.New("cache degraded to memory-only")

	// ErrStaleResponse marks a response discarded because a newer request or a
	// different identity superseded it. Internal bookkeeping only.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrMutationInFlight is returned when a bookmark toggle is attempted while a
	// previous toggle for the same image has not resolved yet.
	ErrMutationInFlight = errors.New("mutation already in flight")

	// ErrUnauthenticated is returned by operations that need a current user.
	ErrUnauthenticated = errors.New("no authenticated user")
)

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Category   ErrorCategory
	StatusCode int
	Body       string
	Op         string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("[%s] %s failed: HTTP %d: %s", e.Category, e.Op, e.StatusCode, e.Body)
}

// NetworkError is a transport-level failure (DNS, connection reset, timeout).
type NetworkError struct {
	Op         string
	Underlying error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("[%s] %s network error: %v", Recoverable, e.Op, e.Underlying)
}

// Unwrap returns the underlying error for error chain compatibility.
func (e *NetworkError) Unwrap() error { return e.Underlying }

// ValidationError reports malformed local input such as a missing image id.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// CategoryOf returns the retry category of err. Unknown errors are treated as
// recoverable, matching the conservative stance for unexpected HTTP statuses.
func CategoryOf(err error) ErrorCategory {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Category
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return Irrecoverable
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnauthenticated) {
		return Irrecoverable
	}
	return Recoverable
}

// IsIrrecoverable returns true if the error should not be retried.
func IsIrrecoverable(err error) bool {
	if err == nil {
		return false
	}
	return CategoryOf(err) == Irrecoverable
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an
// HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
