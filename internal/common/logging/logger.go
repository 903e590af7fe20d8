package logging

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ContextKey is the type of the request-scoped values WithContext extracts.
type ContextKey string

const (
	// RequestIDKey carries the request id set by the HTTP middleware
	RequestIDKey ContextKey = "request_id"
	// CacheKeyKey carries the cache key an operation works on
	CacheKeyKey ContextKey = "cache_key"
)

var contextKeys = []ContextKey{RequestIDKey, CacheKeyKey}

// WithCacheKey returns a copy of ctx whose loggers report key as cache_key.
func WithCacheKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, CacheKeyKey, key)
}

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger installs a zap logger at levelName writing to logFile as
// the global logger. An empty logFile defaults to threat-cache.log and "-"
// keeps output on stdout.
func InitGlobalLogger(levelName, logFile string) error {
	if levelName == "" {
		levelName = "INFO"
	}
	level := ParseLevel(levelName)

	if logFile == "" {
		logFile = "threat-cache.log"
	}

	config := LogConfig{
		Level:      level,
		TimeFormat: time.RFC3339,
	}

	if logFile != "-" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", level.String()},
		Field{"log_file", logFile},
	)
	return nil
}

// MustSync flushes any buffered log entries for zap loggers.
// Call before application exit.
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}
