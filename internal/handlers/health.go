package handlers

import (
	"net/http"
	"time"

	"github.com/teranga-app/api/internal/platform/httpx"
	"github.com/teranga-app/api/internal/repositories"
)

var startTime = time.Now()

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	health repositories.HealthRepository
}

// NewHealthHandlers constructs health endpoints. A nil repository degrades
// readiness to a liveness check.
func NewHealthHandlers(health repositories.HealthRepository) *HealthHandlers {
	return &HealthHandlers{health: health}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports backing-store connectivity.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", "database unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ready"})
}
