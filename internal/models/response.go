package models

import (
	"time"

	"gatekeeper/pkg/ratelimit"
)

// Error code constants used in API error responses. Denials carry the
// middleware's own code so the two surfaces cannot drift.
const (
	ErrorCodeNotFound           = "NOT_FOUND"
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"
	ErrorCodeRateLimitExceeded  = ratelimit.RateLimitExceededCode
	ErrorCodeInternalError      = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewErrorResponse builds an ErrorResponse stamped with the current time.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// HealthCheckResponse reports service liveness.
type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
}

// VersionResponse reports build metadata.
type VersionResponse struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
}

// DenialRecord is one audited rate-limit denial.
type DenialRecord struct {
	Key        string        `json:"key"`
	Tier       string        `json:"tier"`
	Limit      int           `json:"limit"`
	RetryAfter time.Duration `json:"retry_after"`
	DeniedAt   time.Time     `json:"denied_at"`
}
