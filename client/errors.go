package client

import (
	"errors"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
)

// ErrBackPressure is returned when the client's internal shard queue is full.
var ErrBackPressure = errors.New("back-pressure (queue full)")

// IsBackPressure reports whether err is a back-pressure error.
func IsBackPressure(err error) bool { return errors.Is(err, ErrBackPressure) }

// Re-exported so callers compare against a single symbol.
var (
	ErrMutationInFlight  = errs.ErrMutationInFlight
	ErrUnauthenticated   = errs.ErrUnauthenticated
	ErrMalformedResponse = errs.ErrMalformedResponse
)

type (
	HTTPError       = errs.HTTPError
	NetworkError    = errs.NetworkError
	ValidationError = errs.ValidationError
)

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int { return errs.StatusCode(err) }

// IsRetryable reports whether repeating the failed request may succeed.
func IsRetryable(err error) bool { return err != nil && !errs.IsIrrecoverable(err) }
