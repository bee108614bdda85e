package handler

import (
	"net/http"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready func() bool
}

// NewHealthHandler creates a new health handler. A nil ready func reports
// ready unconditionally.
func NewHealthHandler(ready func() bool) *HealthHandler {
	return &HealthHandler{
		ready: ready,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
