// Package ratelimit provides request admission control using windowed
// counters. It implements two algorithms behind a common Limiter contract:
// a fixed-window counter and a sliding-window approximation that blends the
// current and previous window's counts.
//
// The package is built for the request hot path: checks are synchronous,
// never block on I/O, never allocate per request once a key's state exists,
// and are safe for concurrent use. Callers supply the current time on every
// check (obtained from a Clock), which keeps decisions reproducible and the
// limiters free of ambient clock reads.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxWindow is the largest accepted window size. Window indices are
// computed as nanosecond quotients, so instants are meaningful within the
// time.UnixNano range (years 1678 through 2262); bounding the window keeps
// the index arithmetic comfortably inside that range.
const MaxWindow = 365 * 24 * time.Hour

// Configuration errors returned at construction time. Checks themselves
// never fail: an invalid configuration is rejected before a limiter exists.
var (
	ErrInvalidWindow = errors.New("window size must be positive and at most MaxWindow")
	ErrInvalidLimit  = errors.New("limit must be positive")
)

// Limiter is the admission contract implemented by both window algorithms.
// Implementations must be safe for concurrent use; two concurrent Allow
// calls for the same key produce decisions consistent with some serial
// ordering of those calls.
type Limiter interface {
	// Allow decides whether one request identified by key is admitted at
	// the given instant. The key is treated as an opaque byte sequence (no
	// normalization; case-sensitive). Instants passed for the same key must
	// be non-decreasing; an older instant is resolved conservatively as
	// belonging to the most recent known window.
	Allow(key string, now time.Time) Decision
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool          // whether the request may proceed
	Limit      int           // configured quota, for response headers
	Remaining  int           // quota left in the current accounting period, 0 when denied
	RetryAfter time.Duration // advisory wait until a retry could succeed, 0 when allowed
}

// Config holds the immutable quota parameters shared by both algorithms.
type Config struct {
	// Window is the duration of one counting window.
	Window time.Duration

	// Limit is the maximum number of admitted requests per window.
	Limit int
}

// Validate reports whether the configuration can construct a limiter.
func (c Config) Validate() error {
	if c.Window <= 0 || c.Window > MaxWindow {
		return fmt.Errorf("%w: %v", ErrInvalidWindow, c.Window)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.Limit)
	}
	return nil
}

// Option configures a limiter at construction time.
type Option func(*options)

type options struct {
	maxKeys int
}

// WithMaxKeys bounds the number of tracked keys. The bound is approximate:
// n is apportioned across the store's shards with each shard's share
// rounded up, so the effective cap is the next multiple of the shard count
// at or above n, and a hot shard evicts once its own share is full even if
// the store as a whole is under n. Evicted keys are the least recently
// checked in their shard; a later request for one starts from a fresh
// window. Without this option the store grows with key cardinality and
// never evicts, which is fine when the caller keys by a bounded identity
// set.
func WithMaxKeys(n int) Option {
	return func(o *options) {
		o.maxKeys = n
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// windowIndex returns floor(now / window) over nanosecond instants.
// Integer division truncates toward zero, so pre-epoch instants need the
// explicit floor adjustment.
func (c Config) windowIndex(now time.Time) int64 {
	ns := now.UnixNano()
	w := int64(c.Window)
	idx := ns / w
	if ns < 0 && ns%w != 0 {
		idx--
	}
	return idx
}

// windowStart returns the instant at which window idx begins.
func (c Config) windowStart(idx int64) time.Time {
	return time.Unix(0, idx*int64(c.Window))
}

// nextWindowStart returns the instant at which window idx ends. The
// multiplication saturates at the top of the representable range instead of
// wrapping.
func (c Config) nextWindowStart(idx int64) time.Time {
	w := int64(c.Window)
	if idx >= math.MaxInt64/w {
		return time.Unix(0, math.MaxInt64)
	}
	return time.Unix(0, (idx+1)*w)
}
