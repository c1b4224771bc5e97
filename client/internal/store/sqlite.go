package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore persists keys in a single-file SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
	now      Clock
	log      zerolog.Logger
}

// Open opens (or creates) a SQLite database at the given path and enables WAL
// journal mode. capacity <= 0 selects DefaultCapacity.
func Open(path string, capacity int, log zerolog.Logger) (*SQLiteStore, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection keeps the quota check and the
	// write in the same transaction view.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	log.Debug().Str("path", path).Int("capacity", capacity).Msg("sqlite store opened")
	return &SQLiteStore{db: db, capacity: capacity, now: time.Now, log: log}, nil
}

// WithClock replaces the clock used for expiry checks.
func (s *SQLiteStore) WithClock(c Clock) *SQLiteStore {
	s.now = c
	return s
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value   []byte
		expires int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT value, expires_at FROM kv WHERE key = ?", key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expires > 0 && !s.now().Before(time.Unix(0, expires)) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to delete expired key")
		}
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var used int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(length(key) + length(value)), 0) FROM kv WHERE key != ?", key,
	).Scan(&used); err != nil {
		return err
	}
	if used+int64(len(key)+len(value)) > int64(s.capacity) {
		return ErrQuotaExceeded
	}

	now := s.now()
	var exp int64
	if e := expiryFor(now, ttl); !e.IsZero() {
		exp = e.UnixNano()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		key, value, exp, now.UnixNano(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return err
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM kv WHERE substr(key, 1, ?) = ? AND (expires_at = 0 OR expires_at > ?)",
		len(prefix), prefix, s.now().UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
