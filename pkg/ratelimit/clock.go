package ratelimit

import (
	"sync"
	"time"
)

// Clock supplies the instants passed to Allow. Limiters never read a clock
// themselves; the caller reads it once per request and hands the instant
// down, so a single logical "now" yields one reproducible decision.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real clock. time.Time values carry a monotonic
// component on this platform, so successive readings never go backwards.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a deterministic Clock for tests. It returns exactly the
// instant it was last given and never advances on its own.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock pinned to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the pinned instant. Reading does not advance the clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set pins the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
