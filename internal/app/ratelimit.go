package app

import (
	"threat-cache/internal/common/logging"
	"threat-cache/internal/ratelimit"
)

// InitializeRateLimiter creates the per-IP limiter for the admin API, or nil
// when rate limiting is disabled.
func (app *App) InitializeRateLimiter() (*ratelimit.Limiter, error) {
	cfg := app.Config.RateLimitConfig()
	if !cfg.Enabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return nil, nil
	}

	limiter, err := ratelimit.New(cfg)
	if err != nil {
		return nil, err
	}

	app.Logger.Info("Rate Limiting: Enabled",
		logging.Field{Key: "rps", Value: cfg.RequestsPerSecond},
		logging.Field{Key: "burst", Value: cfg.BurstSize},
	)
	return limiter, nil
}
