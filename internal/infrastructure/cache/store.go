package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DefaultBusyTimeout bounds how long sqlite waits on a lock before it
// reports SQLITE_BUSY to the retry loop.
const DefaultBusyTimeout = 10 * time.Second

// Store is the single-file sqlite database behind every cache client.
type Store struct {
	db          *sql.DB
	log         zerolog.Logger
	now         func() time.Time
	busyTimeout time.Duration
	retry       RetryPolicy
}

type Option func(*Store)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock replaces time.Now for expiry checks and write timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) { s.busyTimeout = d }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// Open prepares the store at path. No connection is made until the first
// cache operation.
func Open(path string, opts ...Option) (*Store, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:          db,
		log:         zerolog.Nop(),
		now:         time.Now,
		busyTimeout: DefaultBusyTimeout,
		retry:       DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.busyTimeout < 0 {
		s.busyTimeout = 0
	}
	s.log = s.log.With().Str("component", "cache").Str("path", path).Logger()
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping acquires one connection and reads the schema, so a file that is
// not a database fails here even though cache calls would degrade on it.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var version int64
	return conn.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&version)
}

// acquire returns a dedicated connection with the busy timeout applied.
// The caller must Close it on every path.
func (s *Store) acquire(ctx context.Context) (*sql.Conn, error) {
	var conn *sql.Conn
	err := s.retry.Do(ctx, s.log, "connect", func() error {
		c, err := s.db.Conn(ctx)
		if err != nil {
			return err
		}
		if _, err := c.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds())); err != nil {
			_ = c.Close()
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return conn, nil
}
