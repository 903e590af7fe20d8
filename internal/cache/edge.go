package cache

import (
	"context"
	"time"
)

// EdgeStore is the extension point for a CDN or edge cache. It has the same
// shape as the shared tier but no delete: edge purges are out of scope.
type EdgeStore interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// NopEdge is the default edge tier: reads always miss and writes are dropped.
type NopEdge struct{}

func (NopEdge) Get(context.Context, string) (any, bool) { return nil, false }

func (NopEdge) Set(context.Context, string, any, time.Duration) {}
