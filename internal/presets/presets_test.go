package presets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"threat-cache/internal/cache"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/redis"
)

type threatResult struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

func newManager(t *testing.T) (*cache.Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)

	shared := cache.NewSharedTier(context.Background(), client, cache.SharedTierOptions{}, logging.NewNopLogger())
	m := cache.NewManager(cache.DefaultConfig(), nil, shared, nil, logging.NewNopLogger())
	t.Cleanup(func() { _ = m.Close() })
	return m, mr
}

type presetInfo interface {
	Namespace() string
	Options() cache.Options
}

func TestPresetDefaults(t *testing.T) {
	m, _ := newManager(t)

	tests := []struct {
		name      string
		preset    presetInfo
		namespace string
		memoryTTL time.Duration
		sharedTTL time.Duration
		tiers     []cache.Tier
	}{
		{"threat analysis", ThreatAnalysis[threatResult](m), "threat:analysis:", 30 * time.Minute, time.Hour,
			[]cache.Tier{cache.TierLocal, cache.TierShared, cache.TierEdge}},
		{"user session", UserSession[string](m), "user:session:", 24 * time.Hour, 48 * time.Hour,
			[]cache.Tier{cache.TierLocal, cache.TierShared}},
		{"regional aggregates", RegionalAggregates[int](m), "region:threats:", 5 * time.Minute, 15 * time.Minute,
			[]cache.Tier{cache.TierLocal, cache.TierShared, cache.TierEdge}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.namespace, tt.preset.Namespace())
			opts := tt.preset.Options()
			assert.Equal(t, tt.memoryTTL, opts.MemoryTTL)
			assert.Equal(t, tt.sharedTTL, opts.SharedTTL)
			assert.Equal(t, tt.tiers, opts.Tiers)
		})
	}
}

func TestPreset_SetGet(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()
	p := UserSession[map[string]string](m)

	p.Set(ctx, "42", map[string]string{"user": "alice"})

	got, ok := p.Get(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "alice", got["user"])

	assert.Equal(t, 48*time.Hour, mr.TTL("user:session:42"))
	entry, ok := m.Local().Entry("user:session:42")
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, entry.TTL)
}

func TestPreset_SetWithOverrides(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()
	p := RegionalAggregates[int](m)

	p.SetWith(ctx, "Delhi", 12, cache.Options{SharedTTL: time.Minute})

	assert.Equal(t, time.Minute, mr.TTL("region:threats:Delhi"))
	entry, ok := m.Local().Entry("region:threats:Delhi")
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, entry.TTL)
}

func TestPreset_GetFromSharedDecodes(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	p := ThreatAnalysis[threatResult](m)

	m.Set(ctx, p.Key("abc"), threatResult{Score: 80, Reason: "botnet"}, cache.Options{Tiers: []cache.Tier{cache.TierShared}})

	got, ok := p.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, threatResult{Score: 80, Reason: "botnet"}, got)
}

func TestPreset_GetOrSet(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	p := ThreatAnalysis[threatResult](m)

	calls := 0
	fetch := func(ctx context.Context) (threatResult, error) {
		calls++
		return threatResult{Score: 10}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := p.GetOrSet(ctx, "x", fetch)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Score)
	}
	assert.Equal(t, 1, calls)

	fetchErr := errors.New("model offline")
	_, err := p.GetOrSet(ctx, "y", func(ctx context.Context) (threatResult, error) {
		return threatResult{}, fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)
	_, ok := p.Get(ctx, "y")
	assert.False(t, ok)
}

func TestPreset_DeleteAndInvalidateAll(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	regions := RegionalAggregates[int](m)
	sessions := UserSession[string](m)

	regions.Set(ctx, "Delhi", 1)
	regions.Set(ctx, "Mumbai", 2)
	regions.Set(ctx, "Pune", 3)
	sessions.Set(ctx, "42", "token")

	regions.Delete(ctx, "Pune")
	assert.Equal(t, []string{"Delhi", "Mumbai"}, regions.Keys(ctx))

	assert.Equal(t, 2, regions.InvalidateAll(ctx))
	assert.Empty(t, regions.Keys(ctx))

	got, ok := sessions.Get(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "token", got)
}

func TestPreset_KeyFor(t *testing.T) {
	m, _ := newManager(t)
	p := ThreatAnalysis[threatResult](m)

	type request struct {
		IP   string `json:"ip"`
		Path string `json:"path"`
	}

	a, err := p.KeyFor(request{IP: "10.0.0.1", Path: "/login"})
	require.NoError(t, err)
	b, err := p.KeyFor(request{IP: "10.0.0.1", Path: "/login"})
	require.NoError(t, err)
	c, err := p.KeyFor(request{IP: "10.0.0.2", Path: "/login"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^threat:analysis:[0-9a-f]{64}$`, a)

	_, err = p.KeyFor(make(chan int))
	assert.Error(t, err)
}
