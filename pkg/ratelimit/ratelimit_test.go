package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"valid", Config{Window: time.Second, Limit: 10}, nil},
		{"zero window", Config{Window: 0, Limit: 10}, ErrInvalidWindow},
		{"negative window", Config{Window: -time.Minute, Limit: 10}, ErrInvalidWindow},
		{"oversized window", Config{Window: MaxWindow + 1, Limit: 10}, ErrInvalidWindow},
		{"max window", Config{Window: MaxWindow, Limit: 10}, nil},
		{"zero limit", Config{Window: time.Second, Limit: 0}, ErrInvalidLimit},
		{"negative limit", Config{Window: time.Second, Limit: -5}, ErrInvalidLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestWindowIndex(t *testing.T) {
	cfg := Config{Window: time.Second, Limit: 1}

	assert.Equal(t, int64(100), cfg.windowIndex(time.Unix(100, 0)))
	assert.Equal(t, int64(100), cfg.windowIndex(time.Unix(100, 999_999_999)))
	assert.Equal(t, int64(101), cfg.windowIndex(time.Unix(101, 0)))

	// Pre-epoch instants floor toward negative infinity, keeping window
	// boundaries aligned across the epoch.
	assert.Equal(t, int64(-1), cfg.windowIndex(time.Unix(0, -1)))
	assert.Equal(t, int64(-1), cfg.windowIndex(time.Unix(-1, 0)))
	assert.Equal(t, int64(-2), cfg.windowIndex(time.Unix(-1, -1)))
}

func TestWindowStartRoundTrip(t *testing.T) {
	cfg := Config{Window: 10 * time.Second, Limit: 1}

	now := time.Unix(2013, 500_000_000)
	idx := cfg.windowIndex(now)
	start := cfg.windowStart(idx)

	assert.False(t, now.Before(start))
	assert.True(t, now.Before(cfg.nextWindowStart(idx)))
	assert.Equal(t, cfg.Window, cfg.nextWindowStart(idx).Sub(start))
}

func TestNextWindowStart_SaturatesAtRangeEnd(t *testing.T) {
	cfg := Config{Window: MaxWindow, Limit: 1}

	// An index at the top of the representable range must not wrap into
	// the past.
	idx := cfg.windowIndex(time.Unix(0, 1<<62))
	next := cfg.nextWindowStart(idx + 1<<20)
	assert.True(t, next.After(time.Unix(0, 1<<62)))
}
