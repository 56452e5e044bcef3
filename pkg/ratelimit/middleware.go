package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DeniedResponse is the JSON body written with every 429. It is the fixed
// wire shape of a denial; this package stays importable on its own, so the
// envelope is declared here rather than borrowed from a service's response
// models.
type DeniedResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// RateLimitExceededCode is the machine-readable code carried by every
// denial response.
const RateLimitExceededCode = "RATE_LIMIT_EXCEEDED"

// Middleware returns HTTP middleware that enforces rate limits. It takes
// two limiters: one for anonymous requests (keyed by client IP) and one for
// authenticated requests (keyed by the presented API key). The clock is
// read once per request and the same instant is passed to the limiter, so
// each request resolves against a single logical "now".
func Middleware(anonymous, authenticated Limiter, clock Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, limiter := resolveKeyAndLimiter(r, anonymous, authenticated)

			decision := limiter.Allow(key, clock.Now())

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))

			if !decision.Allowed {
				retryAfterSecs := int(decision.RetryAfter/time.Second) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				json.NewEncoder(w).Encode(DeniedResponse{
					Error:   "error",
					Message: "Rate limit exceeded",
					Code:    RateLimitExceededCode,
				})

				slog.Warn("Rate limit exceeded",
					"key", key,
					"limit", decision.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveKeyAndLimiter determines the rate limit key and which limiter to
// use based on the request's credentials. Requests presenting an API key
// get the authenticated tier; everything else is keyed by client IP.
func resolveKeyAndLimiter(r *http.Request, anonymous, authenticated Limiter) (string, Limiter) {
	if apiKey := apiKeyFromRequest(r); apiKey != "" {
		return "auth:" + apiKey, authenticated
	}
	return getClientIP(r), anonymous
}

// apiKeyFromRequest extracts an API key from the X-API-Key header or a
// bearer Authorization header. The key is opaque to the limiter; this layer
// does not verify it.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// getClientIP extracts the client IP from the request, checking proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
