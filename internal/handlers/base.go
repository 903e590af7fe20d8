// Package handlers exposes the cache manager over a small admin HTTP API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"threat-cache/internal/cache"
	"threat-cache/internal/common/logging"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

type Handlers struct {
	manager *cache.Manager
	logger  logging.Logger
}

func New(manager *cache.Manager, logger logging.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		logger:  logging.OrGlobal(logger).WithFields(logging.Field{Key: "component", Value: "handlers"}),
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// KeysResponse is one page of the cache keys matching a pattern.
type KeysResponse struct {
	Pattern    string   `json:"pattern"`
	Keys       []string `json:"keys"`
	Count      int      `json:"count"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

// InvalidateResponse reports an invalidate-by-pattern call.
type InvalidateResponse struct {
	Pattern string `json:"pattern"`
	Removed int    `json:"removed"`
}

// CleanupResponse reports a manual sweep.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status     string     `json:"status"`
	Timestamp  time.Time  `json:"timestamp"`
	Version    string     `json:"version"`
	SharedTier SharedInfo `json:"shared_tier"`
	KeyCount   int        `json:"key_count"`
}

// SharedInfo describes the shared tier connectivity.
type SharedInfo struct {
	Status       string `json:"status"`
	BreakerState string `json:"breaker_state,omitempty"`
}

func (h *Handlers) sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSONResponse(w, status, ErrorResponse{Error: message})
}
