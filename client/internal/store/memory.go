package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memItem struct {
	value   []byte
	expires time.Time
}

// MemoryStore is an in-process Store used for ephemeral sessions and tests.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]memItem
	used     int
	capacity int
	now      Clock
	closed   bool
}

// NewMemoryStore returns a store bounded to capacity bytes (keys + values).
// capacity <= 0 selects DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{items: make(map[string]memItem), capacity: capacity, now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (s *MemoryStore) WithClock(c Clock) *MemoryStore {
	s.mu.Lock()
	s.now = c
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	it, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if expired(it.expires, s.now()) {
		s.removeLocked(key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	size := len(key) + len(value)
	prev := 0
	if it, ok := s.items[key]; ok {
		prev = len(key) + len(it.value)
	}
	if s.used-prev+size > s.capacity {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.items[key] = memItem{value: v, expires: expiryFor(s.now(), ttl)}
	s.used += size - prev
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.removeLocked(key)
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	now := s.now()
	var keys []string
	for k, it := range s.items {
		if !strings.HasPrefix(k, prefix) || expired(it.expires, now) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Used reports the bytes currently accounted against capacity.
func (s *MemoryStore) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) removeLocked(key string) {
	if it, ok := s.items[key]; ok {
		s.used -= len(key) + len(it.value)
		delete(s.items, key)
	}
}
