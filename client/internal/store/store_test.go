package store

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// contract runs the same behavioural checks against every Store backend.
func contract(t *testing.T, newStore func(t *testing.T, capacity int, clock Clock) Store) {
	ctx := context.Background()

	t.Run("SetGetDelete", func(t *testing.T) {
		s := newStore(t, 0, time.Now)
		require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "1", string(got))

		require.NoError(t, s.Set(ctx, "a", []byte("2"), 0))
		got, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))

		require.NoError(t, s.Delete(ctx, "a"))
		_, err = s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.Delete(ctx, "missing"))
	})

	t.Run("Expiry", func(t *testing.T) {
		clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		s := newStore(t, 0, clk.Now)
		require.NoError(t, s.Set(ctx, "session", []byte("x"), time.Minute))
		clk.Advance(59 * time.Second)
		_, err := s.Get(ctx, "session")
		require.NoError(t, err)
		clk.Advance(time.Second)
		_, err = s.Get(ctx, "session")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("KeysByPrefix", func(t *testing.T) {
		clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		s := newStore(t, 0, clk.Now)
		require.NoError(t, s.Set(ctx, "c_1", []byte("x"), 0))
		require.NoError(t, s.Set(ctx, "c_2", []byte("x"), time.Second))
		require.NoError(t, s.Set(ctx, "other", []byte("x"), 0))
		keys, err := s.Keys(ctx, "c_")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"c_1", "c_2"}, keys)

		clk.Advance(2 * time.Second)
		keys, err = s.Keys(ctx, "c_")
		require.NoError(t, err)
		assert.Equal(t, []string{"c_1"}, keys)
	})

	t.Run("Quota", func(t *testing.T) {
		s := newStore(t, 32, time.Now)
		require.NoError(t, s.Set(ctx, "k1", make([]byte, 20), 0))
		assert.ErrorIs(t, s.Set(ctx, "k2", make([]byte, 20), 0), ErrQuotaExceeded)
		// overwriting an existing key only counts the new size
		require.NoError(t, s.Set(ctx, "k1", make([]byte, 28), 0))
		require.NoError(t, s.Delete(ctx, "k1"))
		require.NoError(t, s.Set(ctx, "k2", make([]byte, 20), 0))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	contract(t, func(t *testing.T, capacity int, clock Clock) Store {
		return NewMemoryStore(capacity).WithClock(clock)
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	contract(t, func(t *testing.T, capacity int, clock Clock) Store {
		s, err := Open(filepath.Join(t.TempDir(), "state", "kv.db"), capacity, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s.WithClock(clock)
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path, 0, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "auth_token", []byte("tok"), 0))
	require.NoError(t, s.Close())

	s2, err := Open(path, 0, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", string(got))
}

func TestMemoryStore_ClosedAndUsage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Set(ctx, "ab", []byte("cd"), 0))
	assert.Equal(t, 4, s.Used())
	require.NoError(t, s.Close())
	_, err := s.Get(ctx, "ab")
	assert.ErrorIs(t, err, ErrClosed)
}
