package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyBackoff(t *testing.T) {
	p := DefaultRetryPolicy
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 1600*time.Millisecond, p.Backoff(4))
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Base: time.Millisecond}
	calls := 0
	perm := errors.New("no such table")

	err := p.Do(context.Background(), zerolog.Nop(), "write", func() error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), zerolog.Nop(), "connect", func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransientPlainError(t *testing.T) {
	assert.False(t, IsTransient(errors.New("database is locked")))
	assert.False(t, IsTransient(nil))
}
