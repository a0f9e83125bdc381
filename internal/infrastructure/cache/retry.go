package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// RetryPolicy 锁冲突时的重试配置
type RetryPolicy struct {
	Attempts int           // 最大尝试次数
	Base     time.Duration // 首次退避，之后每次翻倍
}

// DefaultRetryPolicy 默认重试配置
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 5,
	Base:     100 * time.Millisecond,
}

// Backoff returns the wait after the given zero-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.Base << attempt
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, log zerolog.Logger, op string, fn func() error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Msg("store busy, retrying")

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	log.Error().
		Err(err).
		Str("op", op).
		Int("attempts", attempts).
		Msg("store still busy, giving up")
	return err
}

// IsTransient reports whether err is a sqlite lock or contention error.
func IsTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
