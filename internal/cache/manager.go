package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"threat-cache/internal/common/errors"
	"threat-cache/internal/common/logging"
)

// Fetcher computes a value on a cache miss.
type Fetcher func(ctx context.Context) (any, error)

// WarmUpEntry is one item of a WarmUp batch.
type WarmUpEntry struct {
	Key     string
	Fetcher Fetcher
	Options Options
}

// WarmUpReport summarises a WarmUp call. Failed maps keys to their error.
type WarmUpReport struct {
	Succeeded int
	Failed    map[string]error
}

// Manager cascades reads across the local, shared and edge tiers and fans
// writes out to the selected ones. It is safe for concurrent use.
type Manager struct {
	local    *LocalTier
	shared   *SharedTier
	edge     EdgeStore
	defaults Options
	config   Config

	stats    statsCollector
	flight   singleflight.Group
	inFlight atomic.Int64

	closeOnce sync.Once
	logger    logging.Logger
}

// NewManager assembles a manager. A nil local tier is created from config, a
// nil shared tier is treated as disconnected and a nil edge store is NopEdge.
func NewManager(config Config, local *LocalTier, shared *SharedTier, edge EdgeStore, logger logging.Logger) *Manager {
	if local == nil {
		local = NewLocalTier(config.MaxEntries)
	}
	if edge == nil {
		edge = NopEdge{}
	}
	if config.WarmUpConcurrency <= 0 {
		config.WarmUpConcurrency = DefaultConfig().WarmUpConcurrency
	}

	return &Manager{
		local:    local,
		shared:   shared,
		edge:     edge,
		defaults: config.defaultOptions(),
		config:   config,
		logger:   logging.OrGlobal(logger).WithFields(logging.Field{Key: "component", Value: "cache"}),
	}
}

// Local exposes the local tier.
func (m *Manager) Local() *LocalTier { return m.local }

// Shared exposes the shared tier; it may be nil.
func (m *Manager) Shared() *SharedTier { return m.shared }

// Get looks key up in every tier, promoting hits into faster tiers.
func (m *Manager) Get(ctx context.Context, key string) (any, bool) {
	return m.get(ctx, key, true)
}

// GetLocal looks key up in the local tier only.
func (m *Manager) GetLocal(ctx context.Context, key string) (any, bool) {
	return m.get(ctx, key, false)
}

func (m *Manager) get(ctx context.Context, key string, useAllTiers bool) (any, bool) {
	m.stats.request()

	value, ok := m.lookup(ctx, key, useAllTiers)
	if ok {
		m.stats.hit()
	} else {
		m.stats.miss()
	}
	return value, ok
}

// lookup is the tier cascade without statistics.
func (m *Manager) lookup(ctx context.Context, key string, useAllTiers bool) (any, bool) {
	if value, ok := m.local.Get(key); ok {
		return value, true
	}
	if !useAllTiers {
		return nil, false
	}

	if entry, remaining, ok := m.shared.Get(ctx, key); ok {
		m.local.Set(key, entry.Data, remaining)
		return entry.Data, true
	}

	if value, ok := m.edge.Get(ctx, key); ok {
		m.local.Set(key, value, m.defaults.MemoryTTL)
		m.shared.Set(ctx, key, value, m.defaults.SharedTTL)
		return value, true
	}

	return nil, false
}

// Has reports whether key is present in the local or shared tier without
// touching statistics or hit counters.
func (m *Manager) Has(ctx context.Context, key string) bool {
	if _, ok := m.local.Entry(key); ok {
		return true
	}
	_, _, ok := m.shared.Get(ctx, key)
	return ok
}

// Set writes value to every tier selected by opts, each with its own TTL.
// A failing tier never affects the others.
func (m *Manager) Set(ctx context.Context, key string, value any, opts Options) {
	opts = opts.withDefaults(m.defaults)

	if opts.Has(TierLocal) {
		m.local.Set(key, value, opts.MemoryTTL)
	}
	if opts.Has(TierShared) {
		m.shared.Set(ctx, key, value, opts.SharedTTL)
	}
	if opts.Has(TierEdge) {
		m.edge.Set(ctx, key, value, opts.EdgeTTL)
	}
}

// Delete removes key from the local and shared tiers.
func (m *Manager) Delete(ctx context.Context, key string) {
	ctx = logging.WithCacheKey(ctx, key)
	m.local.Delete(key)
	m.shared.Delete(ctx, key)
	m.logger.WithContext(ctx).Debug("Cache key deleted")
}

// Clear empties the local tier and flushes the shared tier.
func (m *Manager) Clear(ctx context.Context) {
	m.local.Clear()
	m.shared.FlushAll(ctx)
	m.logger.Info("Cache cleared")
}

// Invalidate removes every key containing pattern from the local and shared
// tiers and returns how many distinct keys were removed.
func (m *Manager) Invalidate(ctx context.Context, pattern string) int {
	keys := m.GetKeys(ctx, pattern)

	for _, key := range m.local.Keys(pattern) {
		m.local.Delete(key)
	}
	m.shared.DeleteMatching(ctx, pattern)

	m.logger.Info("Cache invalidated",
		logging.Field{Key: "pattern", Value: pattern},
		logging.Field{Key: "keys", Value: len(keys)},
	)
	return len(keys)
}

// GetOrSet returns the cached value for key or computes it with fetcher and
// caches the result. Concurrent callers for the same key share one fetcher
// call. A fetcher error is returned unchanged and nothing is cached.
func (m *Manager) GetOrSet(ctx context.Context, key string, fetcher Fetcher, opts Options) (any, error) {
	if value, ok := m.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := m.flight.Do(key, func() (any, error) {
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		// A caller that just left the flight may have filled the key.
		if value, ok := m.lookup(ctx, key, true); ok {
			return value, nil
		}

		value, err := fetcher(ctx)
		if err != nil {
			return nil, err
		}
		m.Set(ctx, key, value, opts)
		return value, nil
	})
	return value, err
}

// WarmUp runs every entry's fetch-and-set in parallel. Failures are logged
// and reported per key; they never abort sibling entries.
func (m *Manager) WarmUp(ctx context.Context, entries []WarmUpEntry) WarmUpReport {
	report := WarmUpReport{Failed: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(m.config.WarmUpConcurrency)

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			err := m.warmOne(ctx, entry)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[entry.Key] = err
				m.logger.WithContext(logging.WithCacheKey(ctx, entry.Key)).Warn("Cache warm-up entry failed",
					logging.Err(err),
				)
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("Cache warm-up finished",
		logging.Field{Key: "succeeded", Value: report.Succeeded},
		logging.Field{Key: "failed", Value: len(report.Failed)},
	)
	return report
}

func (m *Manager) warmOne(ctx context.Context, entry WarmUpEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FetchError(entry.Key, fmt.Errorf("panic: %v", r))
		}
	}()

	if entry.Fetcher == nil {
		return errors.ValidationError("warm-up entry has no fetcher").WithContext("key", entry.Key)
	}

	value, err := entry.Fetcher(ctx)
	if err != nil {
		return errors.FetchError(entry.Key, err)
	}
	m.Set(ctx, entry.Key, value, entry.Options)
	return nil
}

// GetKeys returns the sorted union of local and shared keys containing pattern.
func (m *Manager) GetKeys(ctx context.Context, pattern string) []string {
	seen := make(map[string]struct{})
	for _, key := range m.local.Keys(pattern) {
		seen[key] = struct{}{}
	}
	for _, key := range m.shared.Keys(ctx, pattern) {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the cache statistics.
func (m *Manager) Stats() Stats {
	st := m.stats.snapshot()
	st.KeyCount, st.MemoryUsage = m.local.Usage()
	st.Evictions = m.local.Evictions()
	st.SharedConnected = m.shared.Connected()
	st.InFlight = m.inFlight.Load()
	return st
}

// Cleanup sweeps expired entries out of the local tier.
func (m *Manager) Cleanup() int {
	removed := m.local.Cleanup()
	if removed > 0 {
		m.logger.Info("Cache cleanup removed expired entries", logging.Field{Key: "removed", Value: removed})
	} else {
		m.logger.Debug("Cache cleanup found nothing to remove")
	}
	return removed
}

// Close disconnects the shared tier. The manager keeps serving from the
// local tier afterwards.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.shared.Disconnect()
	})
	return err
}
