package app

import (
	"context"

	"threat-cache/internal/cache"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/common/utils"
	"threat-cache/internal/redis"
)

func (app *App) initializeRedis(ctx context.Context) error {
	if !app.Config.RedisEnabled {
		app.Logger.Info("Redis: Disabled (shared tier not configured, serving from local tier only)")
		return nil
	}

	redisClient, err := redis.NewClient(app.Config.RedisConfig())
	if err != nil {
		return err
	}
	app.RedisClient = redisClient

	// The shared tier picks its initial state from one more ping below.
	if err := utils.RetryWithBackoff(ctx, utils.DefaultRetryConfig(), func() error {
		return redisClient.Ping(ctx)
	}); err != nil {
		app.Logger.Warn("Redis: Startup ping failed", logging.Err(err))
	}

	app.Shared = cache.NewSharedTier(ctx, redisClient, app.Config.SharedTierOptions(), app.Logger)
	if app.Shared.Connected() {
		app.Logger.Info("Redis: Connected",
			logging.Field{Key: "address", Value: redisClient.Address()},
			logging.Field{Key: "prefix", Value: app.Config.RedisKeyPrefix},
		)
	} else {
		app.Logger.Warn("Redis: Unreachable, shared tier starts disconnected",
			logging.Field{Key: "address", Value: redisClient.Address()},
		)
	}

	return nil
}
