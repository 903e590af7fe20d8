package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/config"
	"threat-cache/internal/handlers"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.Load()

	// Initialize logging
	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		logging.Error("Logger initialization failed", err)
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting threat cache",
		logging.Field{Key: "cpus", Value: runtime.NumCPU()},
		logging.Field{Key: "version", Value: handlers.Version},
	)

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx := context.Background()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	if err := app.WarmUp(ctx); err != nil {
		logging.Warn("Cache warm-up skipped", logging.Err(err))
	}

	if app.Janitor != nil {
		app.Janitor.Start()
	}

	srv, err := app.RunServer()
	if err != nil {
		logging.Error("Failed to build server", err)
		return err
	}
	serverErr := srv.Start()
	logging.Info("Admin server listening", logging.Field{Key: "port", Value: cfg.Port})

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		logging.Info("Shutting down server...")
	case err := <-serverErr:
		logging.Error("Server failed", err)
		_ = app.Shutdown(context.Background())
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}

	if err := app.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Error during app shutdown", logging.Err(err))
	}

	logging.Info("Server exited")
	return nil
}
