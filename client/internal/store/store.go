// Package store provides the durable key/value tier that survives restarts.
// Values may carry an expiry; expired keys read as missing and are removed
// lazily. Stores have a finite byte capacity, like browser local storage.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for missing or expired keys.
	ErrNotFound = errors.New("store: key not found")

	// ErrQuotaExceeded is returned when a write would exceed the store capacity.
	ErrQuotaExceeded = errors.New("store: quota exceeded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Store is a durable key/value store with per-key expiry.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// DefaultCapacity matches the usual per-origin local storage budget.
const DefaultCapacity = 5 << 20

// Clock returns the current time. Overridable in tests.
type Clock func() time.Time

func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(exp, now time.Time) bool {
	return !exp.IsZero() && !now.Before(exp)
}
