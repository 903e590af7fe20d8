package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"threat-cache/internal/auth"
	"threat-cache/internal/cache"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/common/utils"
	"threat-cache/internal/config"
	"threat-cache/internal/metrics"
	"threat-cache/internal/redis"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	RedisClient *redis.Client
	Shared      *cache.SharedTier
	Manager     *cache.Manager
	Janitor     *cache.Janitor
	Auth        *auth.Auth
	Metrics     *prometheus.Registry
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies. An
// unreachable Redis is not fatal: the manager starts with a disconnected
// shared tier and reconnects once the breaker lets a probe through.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeRedis(ctx); err != nil {
		return nil, err
	}

	cacheConfig := cfg.CacheConfig()
	app.Manager = cache.NewManager(cacheConfig, nil, app.Shared, nil, logging.GetGlobalLogger())
	app.Logger.Info("Cache manager configured",
		logging.Field{Key: "memory_ttl", Value: utils.FormatDuration(cacheConfig.MemoryTTL)},
		logging.Field{Key: "shared_ttl", Value: utils.FormatDuration(cacheConfig.SharedTTL)},
		logging.Field{Key: "edge_ttl", Value: utils.FormatDuration(cacheConfig.EdgeTTL)},
		logging.Field{Key: "max_entries", Value: cacheConfig.MaxEntries},
	)

	if err := app.initializeJanitor(); err != nil {
		return nil, err
	}

	app.initializeAuth()

	if cfg.MetricsEnabled {
		app.Metrics = metrics.NewRegistry(app.Manager)
	}

	return app, nil
}

func (app *App) initializeJanitor() error {
	schedule := app.Config.CleanupSchedule()
	if schedule == "" {
		app.Logger.Info("Cache janitor: Disabled")
		return nil
	}

	janitor, err := cache.NewJanitor(app.Manager, schedule, app.Logger)
	if err != nil {
		return err
	}
	app.Janitor = janitor
	return nil
}

func (app *App) initializeAuth() {
	app.Auth = auth.New(app.Config.AdminJWTSecret, app.Logger)
	if app.Auth.Enabled() {
		app.Logger.Info("Admin authentication: Enabled")
	} else {
		app.Logger.Warn("Admin authentication: Disabled, mutating endpoints are open (set ADMIN_JWT_SECRET)")
	}
}

// Shutdown stops background work and disconnects the shared tier.
func (app *App) Shutdown(ctx context.Context) error {
	if app.Janitor != nil {
		if err := app.Janitor.Stop(ctx); err != nil {
			app.Logger.Warn("Error stopping cache janitor", logging.Err(err))
		} else {
			app.Logger.Info("Cache janitor stopped")
		}
	}

	if app.Manager != nil {
		if err := app.Manager.Close(); err != nil {
			return err
		}
		app.Logger.Info("Cache manager closed")
	}
	return nil
}
