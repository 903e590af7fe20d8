package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"threat-cache/internal/cache"
	"threat-cache/internal/common/errors"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/common/utils"
)

// seedEntry is one record of the warm-up file.
type seedEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Tiers     []string        `json:"tiers,omitempty"`
	MemoryTTL string          `json:"memoryTTL,omitempty"`
	SharedTTL string          `json:"sharedTTL,omitempty"`
	EdgeTTL   string          `json:"edgeTTL,omitempty"`
}

// LoadSeedFile reads a JSON array of seed entries into warm-up entries.
func LoadSeedFile(path string) ([]cache.WarmUpEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("cannot read warm-up file %s", path)).WithContext("cause", err.Error())
	}

	var seeds []seedEntry
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, errors.SerializationError("invalid warm-up file "+path, err)
	}

	entries := make([]cache.WarmUpEntry, 0, len(seeds))
	for i, seed := range seeds {
		if seed.Key == "" {
			return nil, errors.ValidationError(fmt.Sprintf("warm-up entry %d has no key", i))
		}

		opts, err := seed.options()
		if err != nil {
			return nil, errors.ValidationError(err.Error()).WithContext("key", seed.Key)
		}

		value := seed.Value
		entries = append(entries, cache.WarmUpEntry{
			Key: seed.Key,
			Fetcher: func(ctx context.Context) (any, error) {
				if len(value) == 0 {
					return nil, fmt.Errorf("no value")
				}
				return value, nil
			},
			Options: opts,
		})
	}
	return entries, nil
}

func (s seedEntry) options() (cache.Options, error) {
	var opts cache.Options

	for _, name := range s.Tiers {
		tier, err := cache.ParseTier(name)
		if err != nil {
			return opts, err
		}
		opts.Tiers = append(opts.Tiers, tier)
	}

	for _, ttl := range []struct {
		raw string
		dst *time.Duration
	}{
		{s.MemoryTTL, &opts.MemoryTTL},
		{s.SharedTTL, &opts.SharedTTL},
		{s.EdgeTTL, &opts.EdgeTTL},
	} {
		if ttl.raw == "" {
			continue
		}
		d, err := utils.ParseDuration(ttl.raw)
		if err != nil {
			return opts, fmt.Errorf("invalid ttl %q", ttl.raw)
		}
		*ttl.dst = d
	}
	return opts, nil
}

// WarmUp preloads the cache from CACHE_WARMUP_FILE when it is set. Entry
// failures are logged by the manager and never stop startup.
func (app *App) WarmUp(ctx context.Context) error {
	path := app.Config.CacheWarmUpFile
	if path == "" {
		return nil
	}

	entries, err := LoadSeedFile(path)
	if err != nil {
		return err
	}

	report := app.Manager.WarmUp(ctx, entries)
	app.Logger.Info("Cache warmed up from file",
		logging.Field{Key: "file", Value: path},
		logging.Field{Key: "succeeded", Value: report.Succeeded},
		logging.Field{Key: "failed", Value: len(report.Failed)},
	)
	return nil
}
