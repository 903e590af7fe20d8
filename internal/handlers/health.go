package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports service health
// @Summary Health check
// @Description The service is healthy while the local tier serves. A configured but unreachable shared tier reports degraded.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse "Service health"
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	stats := h.manager.Stats()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		KeyCount:  stats.KeyCount,
	}

	shared := h.manager.Shared()
	switch {
	case shared == nil:
		health.SharedTier.Status = "not_configured"
	case shared.Connected():
		health.SharedTier.Status = "connected"
		health.SharedTier.BreakerState = shared.Breaker().State
	default:
		health.SharedTier.Status = "disconnected"
		health.SharedTier.BreakerState = shared.Breaker().State
		health.Status = "degraded"
	}

	h.sendJSONResponse(w, http.StatusOK, health)
}
