package cache

import (
	"fmt"
	"strings"
	"time"
)

// Tier identifies one backing store in the cascade.
type Tier int

const (
	TierLocal Tier = iota
	TierShared
	TierEdge
)

// AllTiers lists every tier in lookup order.
var AllTiers = []Tier{TierLocal, TierShared, TierEdge}

func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierShared:
		return "shared"
	case TierEdge:
		return "edge"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a tier name into a Tier.
func ParseTier(name string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "local", "memory":
		return TierLocal, nil
	case "shared", "redis":
		return TierShared, nil
	case "edge", "cdn":
		return TierEdge, nil
	default:
		return 0, fmt.Errorf("unknown cache tier: %q", name)
	}
}

const (
	DefaultMemoryTTL = 5 * time.Minute
	DefaultSharedTTL = time.Hour
	DefaultEdgeTTL   = 24 * time.Hour
)

// Options controls where and for how long Set writes a value. Zero TTLs take
// the manager defaults and a nil Tiers slice selects every tier.
type Options struct {
	MemoryTTL time.Duration
	SharedTTL time.Duration
	EdgeTTL   time.Duration
	Tiers     []Tier
}

// withDefaults fills unset fields from defaults.
func (o Options) withDefaults(defaults Options) Options {
	if o.MemoryTTL <= 0 {
		o.MemoryTTL = defaults.MemoryTTL
	}
	if o.SharedTTL <= 0 {
		o.SharedTTL = defaults.SharedTTL
	}
	if o.EdgeTTL <= 0 {
		o.EdgeTTL = defaults.EdgeTTL
	}
	if o.Tiers == nil {
		o.Tiers = defaults.Tiers
	}
	if o.Tiers == nil {
		o.Tiers = AllTiers
	}
	return o
}

// Has reports whether tier is selected.
func (o Options) Has(tier Tier) bool {
	for _, t := range o.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}
