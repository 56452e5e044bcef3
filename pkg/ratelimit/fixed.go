package ratelimit

import "time"

// FixedWindow admits up to Limit requests per key within each discrete
// window of the configured size. Windows are aligned to absolute time
// (floor(now/window)), not to a key's first request, so all keys share
// boundaries. Exactly Limit requests pass per window; a burst of up to
// 2*Limit can span a boundary, which is the accepted trade-off for the
// cheapest possible bookkeeping.
type FixedWindow struct {
	cfg   Config
	store *store
}

// NewFixedWindow creates a fixed-window limiter. It fails when the
// configuration has a non-positive limit or a window outside (0, MaxWindow].
func NewFixedWindow(cfg Config, opts ...Option) (*FixedWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &FixedWindow{cfg: cfg, store: newStore(o.maxKeys)}, nil
}

// Allow checks one request for key at the given instant.
func (f *FixedWindow) Allow(key string, now time.Time) Decision {
	idx := f.cfg.windowIndex(now)

	sh := f.store.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.state(key, idx)
	if idx > st.windowIndex {
		st.windowIndex = idx
		st.current = 0
	}
	// An instant older than the stored window (idx < st.windowIndex) is
	// counted against the stored window rather than rewinding it.

	if st.current < f.cfg.Limit {
		st.current++
		return Decision{
			Allowed:   true,
			Limit:     f.cfg.Limit,
			Remaining: f.cfg.Limit - st.current,
		}
	}

	retry := f.cfg.nextWindowStart(st.windowIndex).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Decision{
		Limit:      f.cfg.Limit,
		RetryAfter: retry,
	}
}

// Keys reports how many keys the limiter currently tracks.
func (f *FixedWindow) Keys() int {
	return f.store.len()
}
