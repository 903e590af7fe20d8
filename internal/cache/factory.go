package cache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the manager-wide cache configuration.
type Config struct {
	MemoryTTL time.Duration `json:"memory_ttl"`
	SharedTTL time.Duration `json:"shared_ttl"`
	EdgeTTL   time.Duration `json:"edge_ttl"`
	// MaxEntries bounds the local tier; 0 leaves it unbounded.
	MaxEntries int `json:"max_entries"`
	// CleanupSchedule is a cron spec for the local tier sweep; empty disables it.
	CleanupSchedule string `json:"cleanup_schedule,omitempty"`
	// WarmUpConcurrency caps parallel fetchers in WarmUp.
	WarmUpConcurrency int `json:"warmup_concurrency"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		MemoryTTL:         DefaultMemoryTTL,
		SharedTTL:         DefaultSharedTTL,
		EdgeTTL:           DefaultEdgeTTL,
		MaxEntries:        10000,
		CleanupSchedule:   "@every 1m",
		WarmUpConcurrency: 8,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MemoryTTL < 0 || c.SharedTTL < 0 || c.EdgeTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("max entries must not be negative, got %d", c.MaxEntries)
	}
	if c.WarmUpConcurrency < 0 {
		return fmt.Errorf("warm-up concurrency must not be negative, got %d", c.WarmUpConcurrency)
	}
	if c.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", c.CleanupSchedule, err)
		}
	}
	return nil
}

func (c Config) defaultOptions() Options {
	return Options{
		MemoryTTL: c.MemoryTTL,
		SharedTTL: c.SharedTTL,
		EdgeTTL:   c.EdgeTTL,
	}.withDefaults(Options{
		MemoryTTL: DefaultMemoryTTL,
		SharedTTL: DefaultSharedTTL,
		EdgeTTL:   DefaultEdgeTTL,
	})
}
