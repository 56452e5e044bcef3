package ratelimit

import (
	"math"
	"time"
)

// SlidingWindow approximates a true sliding-window log with O(1) state per
// key. It keeps counts for the current and the immediately preceding
// window and weighs the previous count by the fraction of it still "in
// scope":
//
//	weight   = (window - elapsed) / window
//	estimate = current + previous*weight
//
// The weight decays linearly from 1 at a boundary to 0 at the window's end,
// which bounds burst-at-boundary admission to roughly limit*(1+weight)
// instead of the fixed-window algorithm's 2*limit.
type SlidingWindow struct {
	cfg   Config
	store *store
}

// NewSlidingWindow creates a sliding-window limiter. It fails when the
// configuration has a non-positive limit or a window outside (0, MaxWindow].
func NewSlidingWindow(cfg Config, opts ...Option) (*SlidingWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &SlidingWindow{cfg: cfg, store: newStore(o.maxKeys)}, nil
}

// Allow checks one request for key at the given instant.
func (s *SlidingWindow) Allow(key string, now time.Time) Decision {
	idx := s.cfg.windowIndex(now)

	sh := s.store.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.state(key, idx)
	switch {
	case idx == st.windowIndex+1:
		st.previous = st.current
		st.current = 0
		st.windowIndex = idx
	case idx > st.windowIndex+1:
		// The key sat idle for more than one full window; nothing from the
		// previous window is in scope anymore.
		st.previous = 0
		st.current = 0
		st.windowIndex = idx
	}
	// idx <= st.windowIndex: stale or same-window instant, no shift.

	// Elapsed time is measured against the stored window so a stale
	// instant clamps to zero, keeping the previous window's full weight.
	elapsed := now.Sub(s.cfg.windowStart(st.windowIndex))
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.cfg.Window {
		elapsed = s.cfg.Window
	}

	weight := float64(s.cfg.Window-elapsed) / float64(s.cfg.Window)
	estimate := float64(st.current) + float64(st.previous)*weight

	limit := float64(s.cfg.Limit)
	if estimate < limit {
		st.current++
		remaining := int(math.Floor(limit-estimate)) - 1
		if remaining < 0 {
			remaining = 0
		}
		return Decision{
			Allowed:   true,
			Limit:     s.cfg.Limit,
			Remaining: remaining,
		}
	}

	return Decision{
		Limit:      s.cfg.Limit,
		RetryAfter: s.retryAfter(st.current, st.previous, elapsed),
	}
}

// retryAfter solves for the smallest wait after which the estimate drops
// below the limit, using the linear decay of the previous window's weight:
//
//	current + previous*(window - elapsed - d)/window < limit
//	d > (window - elapsed) - (limit - current)*window/previous
//
// When the current window's own count already reaches the limit no decay
// helps; the answer is then the time left until the next boundary, which is
// also the conservative upper bound for the analytic case.
func (s *SlidingWindow) retryAfter(current, previous int, elapsed time.Duration) time.Duration {
	headroom := s.cfg.Window - elapsed
	if current >= s.cfg.Limit || previous == 0 {
		return headroom
	}

	d := float64(headroom) - float64(s.cfg.Limit-current)*float64(s.cfg.Window)/float64(previous)
	// The inequality is strict, so land one nanosecond past the crossing.
	retry := time.Duration(d) + time.Nanosecond
	if retry < time.Nanosecond {
		retry = time.Nanosecond
	}
	if retry > headroom {
		retry = headroom
	}
	return retry
}

// Keys reports how many keys the limiter currently tracks.
func (s *SlidingWindow) Keys() int {
	return s.store.len()
}
