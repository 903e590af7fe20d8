package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "threat-cache/internal/common/errors"
	"threat-cache/internal/common/logging"
)

// MockEdge is a testify mock of the edge tier
type MockEdge struct {
	mock.Mock
}

func (m *MockEdge) Get(ctx context.Context, key string) (any, bool) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Bool(1)
}

func (m *MockEdge) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func TestManager_SetThenGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	values := []any{"text", 42, map[string]any{"v": 1}, []string{"a", "b"}}
	for i, v := range values {
		key := fmt.Sprintf("k%d", i)
		m.Set(ctx, key, v, Options{MemoryTTL: time.Minute})

		got, ok := m.Get(ctx, key)
		require.True(t, ok, key)
		assert.Equal(t, v, got)
	}
}

func TestManager_ExpiredLocalEntryIsAbsent(t *testing.T) {
	// Scenario A: no shared tier to fall back to.
	m := newLocalOnlyManager(t)
	ctx := context.Background()

	m.Set(ctx, "k1", map[string]int{"v": 1}, Options{MemoryTTL: 50 * time.Millisecond})
	time.Sleep(100 * time.Millisecond)

	_, ok := m.Get(ctx, "k1")
	assert.False(t, ok)
	_, present := m.Local().Entry("k1")
	assert.False(t, present)
	assert.Equal(t, 0, m.Stats().KeyCount)
}

func TestManager_ExpiredLocalEntryFallsBackToShared(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "k1", map[string]int{"v": 1}, Options{MemoryTTL: 20 * time.Millisecond})
	time.Sleep(40 * time.Millisecond)

	got, ok := Get[map[string]int](ctx, m, "k1")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"v": 1}, got)
}

func TestManager_HitRate(t *testing.T) {
	m := newLocalOnlyManager(t)
	ctx := context.Background()

	assert.Equal(t, 0.0, m.Stats().HitRate)

	m.Set(ctx, "present", 1, Options{})
	for i := 0; i < 3; i++ {
		m.Get(ctx, "present")
	}
	m.Get(ctx, "absent")
	m.GetLocal(ctx, "absent")

	st := m.Stats()
	assert.Equal(t, int64(5), st.TotalRequests)
	assert.Equal(t, int64(3), st.CacheHits)
	assert.Equal(t, int64(2), st.CacheMisses)
	assert.InDelta(t, 0.6, st.HitRate, 1e-9)
	assert.Equal(t, 1, st.KeyCount)
	assert.Greater(t, st.MemoryUsage, int64(0))
	assert.False(t, st.SharedConnected)
}

func TestManager_PromotesFromShared(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "threat:analysis:x", map[string]any{"score": 7}, Options{Tiers: []Tier{TierShared}})

	_, inLocal := m.Local().Entry("threat:analysis:x")
	require.False(t, inLocal)

	mr.SetTTL("test:threat:analysis:x", 90*time.Second)

	value, ok := m.Get(ctx, "threat:analysis:x")
	require.True(t, ok)
	assert.JSONEq(t, `{"score":7}`, string(value.(json.RawMessage)))

	entry, inLocal := m.Local().Entry("threat:analysis:x")
	require.True(t, inLocal)
	assert.Equal(t, 90*time.Second, entry.TTL)

	// Served locally from now on, even with the shared copy gone.
	mr.Del("test:threat:analysis:x")
	_, ok = m.GetLocal(ctx, "threat:analysis:x")
	assert.True(t, ok)
	assert.Equal(t, int64(2), m.Stats().CacheHits)
}

func TestManager_GetLocalSkipsSlowerTiers(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "k", 1, Options{Tiers: []Tier{TierShared}})

	_, ok := m.GetLocal(ctx, "k")
	assert.False(t, ok)
	_, inLocal := m.Local().Entry("k")
	assert.False(t, inLocal)
}

func TestManager_PromotesFromEdge(t *testing.T) {
	shared, mr := newTestShared(t)
	edge := new(MockEdge)
	m := NewManager(DefaultConfig(), nil, shared, edge, logging.NewNopLogger())
	ctx := context.Background()

	edge.On("Get", mock.Anything, "region:threats:Pune").Return("from-edge", true).Once()
	edge.On("Get", mock.Anything, "missing").Return(nil, false)

	value, ok := m.Get(ctx, "region:threats:Pune")
	require.True(t, ok)
	assert.Equal(t, "from-edge", value)

	_, inLocal := m.Local().Entry("region:threats:Pune")
	assert.True(t, inLocal)
	assert.True(t, mr.Exists("test:region:threats:Pune"))

	// Second read is a local hit; the edge is not consulted again.
	_, ok = m.Get(ctx, "region:threats:Pune")
	assert.True(t, ok)

	_, ok = m.Get(ctx, "missing")
	assert.False(t, ok)

	edge.AssertExpectations(t)
}

func TestManager_SetFansOutPerTier(t *testing.T) {
	shared, mr := newTestShared(t)
	edge := new(MockEdge)
	m := NewManager(DefaultConfig(), nil, shared, edge, logging.NewNopLogger())
	ctx := context.Background()

	edge.On("Set", mock.Anything, "all", "v", 48*time.Hour).Return().Once()

	m.Set(ctx, "all", "v", Options{MemoryTTL: time.Minute, SharedTTL: 2 * time.Hour, EdgeTTL: 48 * time.Hour})

	entry, ok := m.Local().Entry("all")
	require.True(t, ok)
	assert.Equal(t, time.Minute, entry.TTL)
	assert.Equal(t, 2*time.Hour, mr.TTL("test:all"))

	m.Set(ctx, "local-only", "v", Options{Tiers: []Tier{TierLocal}})
	assert.False(t, mr.Exists("test:local-only"))

	edge.AssertExpectations(t)
	edge.AssertNumberOfCalls(t, "Set", 1)
}

func TestManager_SetSurvivesSharedOutage(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	mr.Close()

	m.Set(ctx, "k", "v", Options{})

	value, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestManager_DeleteAndClear(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "a", 1, Options{})
	m.Set(ctx, "b", 2, Options{})

	m.Delete(ctx, "a")
	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:a"))

	m.Clear(ctx)
	_, ok = m.Get(ctx, "b")
	assert.False(t, ok)
	assert.Empty(t, m.GetKeys(ctx, ""))
}

func TestManager_Invalidate(t *testing.T) {
	// Scenario C
	m, mr := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "region:threats:Delhi", 1, Options{})
	m.Set(ctx, "region:threats:Mumbai", 2, Options{})
	m.Set(ctx, "user:session:42", 3, Options{})

	removed := m.Invalidate(ctx, "region:threats:")
	assert.Equal(t, 2, removed)

	_, ok := m.Get(ctx, "region:threats:Delhi")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "region:threats:Mumbai")
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:region:threats:Delhi"))

	value, ok := m.Get(ctx, "user:session:42")
	require.True(t, ok)
	assert.Equal(t, 3, value)
}

func TestManager_GetKeysUnion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "region:threats:Delhi", 1, Options{Tiers: []Tier{TierLocal}})
	m.Set(ctx, "region:threats:Mumbai", 2, Options{Tiers: []Tier{TierShared}})
	m.Set(ctx, "region:threats:Pune", 3, Options{})
	m.Set(ctx, "user:session:1", 4, Options{})

	assert.Equal(t,
		[]string{"region:threats:Delhi", "region:threats:Mumbai", "region:threats:Pune"},
		m.GetKeys(ctx, "region:threats:"),
	)
}

func TestManager_GetOrSet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "computed", nil
	}

	value, err := m.GetOrSet(ctx, "k", fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, "computed", value)

	value, err = m.GetOrSet(ctx, "k", fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestManager_GetOrSetPropagatesFetcherError(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	fetchErr := errors.New("upstream analysis failed")
	_, err := m.GetOrSet(ctx, "k", func(ctx context.Context) (any, error) {
		return nil, fetchErr
	}, Options{})

	assert.Same(t, fetchErr, err)
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:k"))
}

func TestManager_GetOrSetSingleFlight(t *testing.T) {
	// Scenario D
	m, _ := newTestManager(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "x", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.GetOrSet(ctx, "x", fetch, Options{})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	assert.Eventually(t, func() bool { return m.Stats().InFlight == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "x", v)
	}
	assert.Equal(t, int64(0), m.Stats().InFlight)
}

func TestManager_WarmUp(t *testing.T) {
	// Scenario B
	m, _ := newTestManager(t)
	ctx := context.Background()

	report := m.WarmUp(ctx, []WarmUpEntry{
		{Key: "a", Fetcher: func(ctx context.Context) (any, error) { return 1, nil }},
		{Key: "b", Fetcher: func(ctx context.Context) (any, error) { return nil, errors.New("boom") }},
		{Key: "c", Fetcher: func(ctx context.Context) (any, error) { return 3, nil }},
		{Key: "d", Fetcher: func(ctx context.Context) (any, error) { panic("bad fetcher") }},
		{Key: "e"},
	})

	assert.Equal(t, 2, report.Succeeded)
	assert.Len(t, report.Failed, 3)
	assert.True(t, apperrors.IsType(report.Failed["b"], apperrors.ErrTypeFetch))
	assert.Contains(t, report.Failed["d"].Error(), "bad fetcher")
	assert.True(t, apperrors.IsType(report.Failed["e"], apperrors.ErrTypeValidation))

	a, ok := m.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 1, a)

	c, ok := m.Get(ctx, "c")
	require.True(t, ok)
	assert.Equal(t, 3, c)

	_, ok = m.Get(ctx, "b")
	assert.False(t, ok)
}

func TestManager_WarmUpHonoursOptions(t *testing.T) {
	m, mr := newTestManager(t)

	m.WarmUp(context.Background(), []WarmUpEntry{{
		Key:     "only-shared",
		Fetcher: func(ctx context.Context) (any, error) { return "v", nil },
		Options: Options{Tiers: []Tier{TierShared}, SharedTTL: time.Minute},
	}})

	_, inLocal := m.Local().Entry("only-shared")
	assert.False(t, inLocal)
	assert.Equal(t, time.Minute, mr.TTL("test:only-shared"))
}

func TestManager_WarmUpEmpty(t *testing.T) {
	m := newLocalOnlyManager(t)
	report := m.WarmUp(context.Background(), nil)
	assert.Equal(t, 0, report.Succeeded)
	assert.Empty(t, report.Failed)
}

func TestManager_Has(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.Set(ctx, "local", 1, Options{Tiers: []Tier{TierLocal}})
	m.Set(ctx, "shared", 2, Options{Tiers: []Tier{TierShared}})

	assert.True(t, m.Has(ctx, "local"))
	assert.True(t, m.Has(ctx, "shared"))
	assert.False(t, m.Has(ctx, "none"))
	assert.Equal(t, int64(0), m.Stats().TotalRequests)
}

func TestManager_Cleanup(t *testing.T) {
	m := newLocalOnlyManager(t)
	ctx := context.Background()

	m.Set(ctx, "short", 1, Options{MemoryTTL: 10 * time.Millisecond})
	m.Set(ctx, "long", 2, Options{MemoryTTL: time.Hour})
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, m.Cleanup())
	assert.Equal(t, 1, m.Stats().KeyCount)
}

func TestManager_Close(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.True(t, m.Stats().SharedConnected)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.False(t, m.Stats().SharedConnected)

	m.Set(ctx, "after-close", 1, Options{})
	assert.False(t, mr.Exists("test:after-close"))

	value, ok := m.Get(ctx, "after-close")
	require.True(t, ok)
	assert.Equal(t, 1, value)
}
