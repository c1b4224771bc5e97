package api

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// errRT is an http.RoundTripper that always returns an error (simulates network failure).
type errRT struct{}

func (e *errRT) RoundTrip(*http.Request) (*http.Response, error) { return nil, fmt.Errorf("boom") }

// countingClient counts Do calls before delegating.
type countingClient struct {
	base  HTTPClient
	calls int32
}

func (c *countingClient) Do(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.base.Do(r)
}
