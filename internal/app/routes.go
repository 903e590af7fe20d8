package app

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"threat-cache/internal/auth"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/handlers"
	"threat-cache/internal/metrics"
	"threat-cache/internal/middleware"
	"threat-cache/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes for the application. A nil
// registry leaves /metrics unmounted.
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authenticator *auth.Auth, rateLimiter *ratelimit.Limiter, registry *prometheus.Registry, logger logging.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	if rateLimiter != nil {
		router.Use(ratelimit.HTTPMiddleware(rateLimiter, rateLimiter.KeyFunc()))
	}

	if registry != nil {
		router.Handle("/metrics", metrics.Handler(registry)).Methods("GET")
	}

	h.RegisterRoutes(router, authenticator.RequireJWT)
}
