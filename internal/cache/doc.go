// Package cache provides a tiered cache manager that fronts several backing
// stores behind one get/set/invalidate contract.
//
// This package wraps battle-tested libraries:
//   - github.com/patrickmn/go-cache for the local in-process tier
//   - github.com/go-redis/redis/v8 (through internal/redis) for the shared tier
//   - github.com/sony/gobreaker (through internal/circuitbreaker) for shared tier connectivity
//   - golang.org/x/sync for request coalescing and warm-up fan-out
//   - github.com/robfig/cron/v3 for the periodic cleanup sweep
//
// Tiers are consulted in a fixed order:
//
// 1. Local Tier - in-process, lock-protected, sub-millisecond
//   - TTL checked on every read, expired entries removed on access
//   - optional LRU bound by last-hit time
//
// 2. Shared Tier - Redis-compatible store with native TTL
//   - JSON entry envelope
//   - every failure degrades to a miss or a no-op
//   - explicit connectivity state, short-circuits while disconnected
//
// 3. Edge Tier - extension point for a CDN store, a no-op by default
//
// A hit in a slower tier is promoted into the faster ones.
//
// Usage:
//
//	shared := cache.NewSharedTier(ctx, redisClient, cache.SharedTierOptions{Prefix: "threat-cache:"}, logger)
//	manager := cache.NewManager(cache.DefaultConfig(), nil, shared, nil, logger)
//	defer manager.Close()
//
//	manager.Set(ctx, "region:threats:Delhi", summary, cache.Options{MemoryTTL: 5 * time.Minute})
//	summary, err := cache.GetOrSet(ctx, manager, "region:threats:Delhi", loadSummary, cache.Options{})
//	removed := manager.Invalidate(ctx, "region:threats:")
package cache
