// Package api contains the HTTP handlers, routing, and request middleware
// for the gatekeeper service.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
	"gatekeeper/internal/version"
)

// Handlers contains HTTP handlers for the gatekeeper API.
type Handlers struct {
	auditStore *audit.Store
	ver        version.Info
	startTime  time.Time
}

// NewHandlers creates a new handlers instance. auditStore may be nil when
// audit logging is disabled; the denials endpoint then returns 503.
func NewHandlers(auditStore *audit.Store, ver version.Info) *Handlers {
	return &Handlers{
		auditStore: auditStore,
		ver:        ver,
		startTime:  time.Now(),
	}
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.ver.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// Version handles build metadata requests
// GET /api/v1/version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	response := models.VersionResponse{
		Version:    h.ver.Version,
		GitCommit:  h.ver.GitCommit,
		BuildDate:  h.ver.BuildDate,
		InstanceID: h.ver.InstanceID,
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// Ping is a minimal rate-limited endpoint. It exists so operators can
// exercise and observe the admission control path directly.
// GET /api/v1/ping
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "pong"})
}

// Denials returns recent rate-limit denials from the audit log.
// GET /api/v1/denials?limit=N
func (h *Handlers) Denials(w http.ResponseWriter, r *http.Request) {
	if h.auditStore == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable,
			"Audit logging is not enabled")
		return
	}

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n < 1 || n > 1000 {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest,
				"limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	records, err := h.auditStore.RecentDenials(r.Context(), limit)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError,
			"Failed to read audit log")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"denials": records,
		"count":   len(records),
	})
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written, nothing more to send
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	h.writeJSONResponse(w, statusCode, errorResp)
}
