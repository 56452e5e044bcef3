package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFixedWindow_InvalidConfig(t *testing.T) {
	_, err := NewFixedWindow(Config{Window: 0, Limit: 5})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewFixedWindow(Config{Window: -time.Second, Limit: 5})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewFixedWindow(Config{Window: MaxWindow + time.Hour, Limit: 5})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewFixedWindow(Config{Window: time.Second, Limit: 0})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestFixedWindow_ExactQuota(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 5})
	require.NoError(t, err)

	now := time.Unix(100, 0)

	for want := 4; want >= 0; want-- {
		d := limiter.Allow("client-1", now)
		assert.True(t, d.Allowed)
		assert.Equal(t, 5, d.Limit)
		assert.Equal(t, want, d.Remaining)
		assert.Zero(t, d.RetryAfter)
	}

	d := limiter.Allow("client-1", now)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestFixedWindow_ResetOnBoundary(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 2})
	require.NoError(t, err)

	now := time.Unix(100, 0).Add(900 * time.Millisecond)
	limiter.Allow("k", now)
	limiter.Allow("k", now)

	d := limiter.Allow("k", now)
	require.False(t, d.Allowed)
	assert.Equal(t, 100*time.Millisecond, d.RetryAfter)

	// Start of the next window
	d = limiter.Allow("k", time.Unix(101, 0))
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestFixedWindow_DeniedRightBeforeBoundary(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 1})
	require.NoError(t, err)

	require.True(t, limiter.Allow("k", time.Unix(100, 0)).Allowed)

	d := limiter.Allow("k", time.Unix(100, 0).Add(time.Second-time.Nanosecond))
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Nanosecond, d.RetryAfter)
}

func TestFixedWindow_KeyIsolation(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: 10 * time.Second, Limit: 1})
	require.NoError(t, err)

	now := time.Unix(50, 0)

	assert.True(t, limiter.Allow("A", now).Allowed)
	assert.False(t, limiter.Allow("A", now).Allowed)

	assert.True(t, limiter.Allow("B", now).Allowed)
	assert.False(t, limiter.Allow("A", now).Allowed)
	assert.False(t, limiter.Allow("B", now).Allowed)
}

func TestFixedWindow_EmptyKey(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 1})
	require.NoError(t, err)

	now := time.Unix(100, 0)
	assert.True(t, limiter.Allow("", now).Allowed)
	assert.False(t, limiter.Allow("", now).Allowed)
	// Case-sensitive, no normalization
	assert.True(t, limiter.Allow("K", now).Allowed)
	assert.True(t, limiter.Allow("k", now).Allowed)
}

func TestFixedWindow_ConcurrentSameKey(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Minute, Limit: 10})
	require.NoError(t, err)

	now := time.Unix(100, 0)
	var allowed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("hot-key", now).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}

func TestFixedWindow_ConcurrentDistinctKeys(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Minute, Limit: 5})
	require.NoError(t, err)

	now := time.Unix(100, 0)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", id)
			for j := 0; j < 10; j++ {
				d := limiter.Allow(key, now)
				if d.Allowed {
					assert.GreaterOrEqual(t, d.Remaining, 0)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, limiter.Keys())
}

func TestFixedWindow_StaleInstant(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 2})
	require.NoError(t, err)

	require.True(t, limiter.Allow("k", time.Unix(101, 0)).Allowed)

	// An instant from the prior window counts against the stored window.
	d := limiter.Allow("k", time.Unix(100, 500*time.Millisecond.Nanoseconds()))
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = limiter.Allow("k", time.Unix(101, 0))
	assert.False(t, d.Allowed)

	// Window transitions still behave after the stale instant.
	d = limiter.Allow("k", time.Unix(102, 0))
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestFixedWindow_MonotonicNonRegression(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 3})
	require.NoError(t, err)

	now := time.Unix(100, 0)
	for i := 0; i < 50; i++ {
		d := limiter.Allow("k", now)
		assert.GreaterOrEqual(t, d.Remaining, 0)
		assert.GreaterOrEqual(t, d.RetryAfter, time.Duration(0))
		now = now.Add(73 * time.Millisecond)
	}
}
