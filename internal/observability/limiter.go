package observability

import (
	"context"
	"time"

	"gatekeeper/pkg/ratelimit"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentedLimiter records every admission decision of the limiter it
// wraps into the Provider's shared admission instruments. Checks are
// hot-path and carry no context, so the wrapper records metrics only, no
// trace spans; request-level tracing comes from the HTTP layer.
type InstrumentedLimiter struct {
	inner    ratelimit.Limiter
	checks   metric.Int64Counter
	duration metric.Float64Histogram

	// Attribute sets are fixed per wrapper except for the outcome, so both
	// variants are built once at construction.
	allowed metric.MeasurementOption
	denied  metric.MeasurementOption
}

// InstrumentLimiter wraps inner so its decisions are counted and timed
// under the given algorithm and tier attributes. When metrics are disabled
// the inner limiter is returned unchanged.
func (p *Provider) InstrumentLimiter(inner ratelimit.Limiter, algorithm, tier string) ratelimit.Limiter {
	if p.admissionChecks == nil {
		return inner
	}

	base := []attribute.KeyValue{
		attribute.String("algorithm", algorithm),
		attribute.String("tier", tier),
	}

	return &InstrumentedLimiter{
		inner:    inner,
		checks:   p.admissionChecks,
		duration: p.admissionLatency,
		allowed:  metric.WithAttributes(append(base, attribute.Bool("allowed", true))...),
		denied:   metric.WithAttributes(append(base, attribute.Bool("allowed", false))...),
	}
}

// Allow delegates to the wrapped limiter and records the outcome.
func (l *InstrumentedLimiter) Allow(key string, now time.Time) ratelimit.Decision {
	start := time.Now()
	decision := l.inner.Allow(key, now)
	elapsed := time.Since(start).Seconds()

	attrs := l.denied
	if decision.Allowed {
		attrs = l.allowed
	}

	ctx := context.Background()
	l.checks.Add(ctx, 1, attrs)
	l.duration.Record(ctx, elapsed, attrs)

	return decision
}
