package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// Func is the computation a client memoizes.
type Func[K, V any] func(ctx context.Context, args K) (V, error)

// KeyFunc renders call arguments into a cache key.
type KeyFunc[K any] func(args K) string

// DefaultKey renders the function name followed by the %+v form of args.
// Pointer fields render as addresses; give such argument types their own
// KeyFunc.
func DefaultKey[K any](name string) KeyFunc[K] {
	return func(args K) string {
		return fmt.Sprintf("%s:%+v", name, args)
	}
}

// TableName is the default table for a function name.
func TableName(name string) string {
	return "cache_" + strconv.FormatUint(xxhash.Sum64String(name), 16)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Client memoizes one function in its own table of the store.
type Client[K, V any] struct {
	store *Store
	name  string
	table string
	ttl   time.Duration
	key   KeyFunc[K]
	log   zerolog.Logger

	mu    sync.Mutex
	ready bool
}

type ClientOption[K any] func(*clientOptions[K])

type clientOptions[K any] struct {
	table string
	key   KeyFunc[K]
}

// WithTable stores results in the named table instead of TableName(name).
func WithTable[K any](table string) ClientOption[K] {
	return func(o *clientOptions[K]) { o.table = table }
}

func WithKey[K any](key KeyFunc[K]) ClientOption[K] {
	return func(o *clientOptions[K]) { o.key = key }
}

// NewClient creates a client for the function called name whose results
// stay fresh for ttl.
func NewClient[K, V any](store *Store, name string, ttl time.Duration, opts ...ClientOption[K]) (*Client[K, V], error) {
	o := clientOptions[K]{table: TableName(name), key: DefaultKey[K](name)}
	for _, opt := range opts {
		opt(&o)
	}
	if !identifier.MatchString(o.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, o.table)
	}

	return &Client[K, V]{
		store: store,
		name:  name,
		table: o.table,
		ttl:   ttl,
		key:   o.key,
		log:   store.log.With().Str("func", name).Str("table", o.table).Logger(),
	}, nil
}

func (c *Client[K, V]) Table() string { return c.table }

// GetOrCompute returns the cached result for args when it is younger than
// the client's ttl. Otherwise compute runs once and its result is stored.
//
// Connection and write failures that survive the retry policy are returned.
// Other store failures are logged and the result is computed without caching.
// Errors from compute are returned as is and never cached.
func (c *Client[K, V]) GetOrCompute(ctx context.Context, args K, compute Func[K, V]) (V, error) {
	var zero V
	key := c.key(args)
	log := c.log.With().Str("key", key).Logger()

	conn, err := c.store.acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer conn.Close()

	now := c.store.now()
	v, hit, err := c.lookup(ctx, conn, key, now)
	if err != nil {
		log.Error().Err(err).Msg("cache error, computing without cache")
		return compute(ctx, args)
	}
	if hit {
		log.Debug().Msg("cache hit")
		return v, nil
	}
	log.Debug().Msg("cache miss")

	v, err = compute(ctx, args)
	if err != nil {
		return zero, err
	}

	payload, err := Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("cache: encode %s result: %w", c.name, err)
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s(key, value, timestamp) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		value=excluded.value, timestamp=excluded.timestamp
	`, c.table)
	err = c.store.retry.Do(ctx, log, "write", func() error {
		_, err := conn.ExecContext(ctx, upsert, key, string(payload), unixSeconds(now))
		return err
	})
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return v, nil
}

// lookup reports a hit only for a decodable row younger than ttl.
func (c *Client[K, V]) lookup(ctx context.Context, conn *sql.Conn, key string, now time.Time) (V, bool, error) {
	var zero V
	if err := c.ensureTable(ctx, conn); err != nil {
		return zero, false, err
	}

	var value string
	var ts float64
	err := conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT value, timestamp FROM %s WHERE key=?`, c.table), key).
		Scan(&value, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	if unixSeconds(now)-ts >= c.ttl.Seconds() {
		c.log.Debug().Str("key", key).Float64("age_seconds", unixSeconds(now)-ts).Msg("cache entry expired")
		return zero, false, nil
	}

	var v V
	if err := Unmarshal([]byte(value), &v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("undecodable cache entry, recomputing")
		return zero, false, nil
	}
	return v, true, nil
}

func (c *Client[K, V]) ensureTable(ctx context.Context, conn *sql.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	_, err := conn.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  key TEXT PRIMARY KEY,
  value TEXT,
  timestamp REAL
)`, c.table))
	if err != nil {
		return err
	}
	c.ready = true
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
