// Package presets provides namespaced views over a cache.Manager for the
// data categories the threat-analysis service caches. A preset only fixes a
// key prefix and default options; every call is delegated to the manager.
package presets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"threat-cache/internal/cache"
	"threat-cache/internal/common/errors"
)

// Namespaces used by the built-in presets.
const (
	ThreatAnalysisNamespace     = "threat:analysis:"
	UserSessionNamespace        = "user:session:"
	RegionalAggregatesNamespace = "region:threats:"
)

// Preset is a typed, namespaced view over a cache.Manager.
type Preset[T any] struct {
	manager   *cache.Manager
	namespace string
	options   cache.Options
}

// New creates a preset storing T under namespace with the given defaults.
func New[T any](manager *cache.Manager, namespace string, options cache.Options) *Preset[T] {
	return &Preset[T]{manager: manager, namespace: namespace, options: options}
}

// ThreatAnalysis caches analysis results for 30 minutes locally and an hour
// in the shared tier, on every tier.
func ThreatAnalysis[T any](manager *cache.Manager) *Preset[T] {
	return New[T](manager, ThreatAnalysisNamespace, cache.Options{
		MemoryTTL: 30 * time.Minute,
		SharedTTL: 60 * time.Minute,
		Tiers:     []cache.Tier{cache.TierLocal, cache.TierShared, cache.TierEdge},
	})
}

// UserSession caches sessions for a day locally and two days in the shared
// tier. Sessions never go to the edge.
func UserSession[T any](manager *cache.Manager) *Preset[T] {
	return New[T](manager, UserSessionNamespace, cache.Options{
		MemoryTTL: 24 * time.Hour,
		SharedTTL: 48 * time.Hour,
		Tiers:     []cache.Tier{cache.TierLocal, cache.TierShared},
	})
}

// RegionalAggregates caches per-region threat counts.
func RegionalAggregates[T any](manager *cache.Manager) *Preset[T] {
	return New[T](manager, RegionalAggregatesNamespace, cache.Options{
		MemoryTTL: 5 * time.Minute,
		SharedTTL: 15 * time.Minute,
		Tiers:     []cache.Tier{cache.TierLocal, cache.TierShared, cache.TierEdge},
	})
}

// Namespace returns the key prefix.
func (p *Preset[T]) Namespace() string { return p.namespace }

// Options returns the default options applied to writes.
func (p *Preset[T]) Options() cache.Options { return p.options }

// Key returns the full cache key for id.
func (p *Preset[T]) Key(id string) string {
	return p.namespace + id
}

// KeyFor derives an id from an arbitrary request payload by hashing its JSON
// form, so equal payloads share a cache entry.
func (p *Preset[T]) KeyFor(input any) (string, error) {
	id, err := HashID(input)
	if err != nil {
		return "", err
	}
	return p.Key(id), nil
}

// Get returns the value stored for id.
func (p *Preset[T]) Get(ctx context.Context, id string) (T, bool) {
	return cache.Get[T](ctx, p.manager, p.Key(id))
}

// Set stores value for id with the preset's defaults.
func (p *Preset[T]) Set(ctx context.Context, id string, value T) {
	p.manager.Set(ctx, p.Key(id), value, p.options)
}

// SetWith stores value for id, overriding the preset's TTLs where opts sets
// them.
func (p *Preset[T]) SetWith(ctx context.Context, id string, value T, opts cache.Options) {
	p.manager.Set(ctx, p.Key(id), value, p.merge(opts))
}

// GetOrSet returns the value for id or computes and stores it.
func (p *Preset[T]) GetOrSet(ctx context.Context, id string, fetcher func(ctx context.Context) (T, error)) (T, error) {
	return cache.GetOrSet(ctx, p.manager, p.Key(id), fetcher, p.options)
}

// Delete removes id.
func (p *Preset[T]) Delete(ctx context.Context, id string) {
	p.manager.Delete(ctx, p.Key(id))
}

// InvalidateAll removes every key in the namespace.
func (p *Preset[T]) InvalidateAll(ctx context.Context) int {
	return p.manager.Invalidate(ctx, p.namespace)
}

// Keys lists the ids currently cached in the namespace.
func (p *Preset[T]) Keys(ctx context.Context) []string {
	keys := p.manager.GetKeys(ctx, p.namespace)
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := strings.CutPrefix(key, p.namespace); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Preset[T]) merge(opts cache.Options) cache.Options {
	merged := p.options
	if opts.MemoryTTL > 0 {
		merged.MemoryTTL = opts.MemoryTTL
	}
	if opts.SharedTTL > 0 {
		merged.SharedTTL = opts.SharedTTL
	}
	if opts.EdgeTTL > 0 {
		merged.EdgeTTL = opts.EdgeTTL
	}
	if opts.Tiers != nil {
		merged.Tiers = opts.Tiers
	}
	return merged
}

// HashID returns the hex SHA-256 of input's JSON encoding.
func HashID(input any) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", errors.SerializationError("cannot hash cache key input", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
