package errors

import (
	"context"
	"errors"
)

// getHTTPErrorCategory maps HTTP status codes to error categories.
func getHTTPErrorCategory(statusCode int) ErrorCategory {
	switch {
	case statusCode >= 400 && statusCode < 500:
		switch statusCode {
		case 408: // Request Timeout
			return Recoverable
		case 429: // Too Many Requests
			return Recoverable
		default:
			return Irrecoverable
		}
	case statusCode >= 500 && statusCode < 600:
		return Recoverable
	default:
		// Unexpected status codes - be conservative and retry
		return Recoverable
	}
}

// NewHTTPError creates a classified error for a non-2xx response.
func NewHTTPError(statusCode int, body string, operation string) *HTTPError {
	return &HTTPError{
		Category:   getHTTPErrorCategory(statusCode),
		StatusCode: statusCode,
		Body:       body,
		Op:         operation,
	}
}

// NewNetworkError wraps a transport failure. Context cancellation is passed
// through untouched so callers can still match context.Canceled.
func NewNetworkError(operation string, err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return &NetworkError{Op: operation, Underlying: err}
}
