package audit

import (
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/pkg/ratelimit"
)

// RecordingLimiter wraps a ratelimit.Limiter and records every denial to
// the audit store. Allowed requests pass through untouched.
type RecordingLimiter struct {
	inner ratelimit.Limiter
	store *Store
	tier  string
}

// NewRecordingLimiter wraps inner so that denials are logged under the
// given tier label.
func NewRecordingLimiter(inner ratelimit.Limiter, store *Store, tier string) *RecordingLimiter {
	return &RecordingLimiter{inner: inner, store: store, tier: tier}
}

// Allow delegates to the wrapped limiter and queues an audit record when
// the request is denied.
func (l *RecordingLimiter) Allow(key string, now time.Time) ratelimit.Decision {
	decision := l.inner.Allow(key, now)
	if !decision.Allowed {
		l.store.Record(models.DenialRecord{
			Key:        key,
			Tier:       l.tier,
			Limit:      decision.Limit,
			RetryAfter: decision.RetryAfter,
			DeniedAt:   now,
		})
	}
	return decision
}
