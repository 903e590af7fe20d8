package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"threat-cache/internal/cache"
)

type fixedStats cache.Stats

func (f fixedStats) Stats() cache.Stats { return cache.Stats(f) }

func TestCollector_ExportsSnapshot(t *testing.T) {
	source := fixedStats{
		TotalRequests:   5,
		CacheHits:       3,
		CacheMisses:     2,
		HitRate:         0.6,
		KeyCount:        4,
		MemoryUsage:     512,
		SharedConnected: true,
	}

	c := NewCollector(source)
	assert.Equal(t, 9, testutil.CollectAndCount(c))

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "threat_cache_requests_total 5")
	assert.Contains(t, text, "threat_cache_hits_total 3")
	assert.Contains(t, text, "threat_cache_misses_total 2")
	assert.Contains(t, text, "threat_cache_hit_ratio 0.6")
	assert.Contains(t, text, "threat_cache_local_keys 4")
	assert.Contains(t, text, "threat_cache_shared_connected 1")
}

func TestNewRegistry_WithManager(t *testing.T) {
	m := cache.NewManager(cache.DefaultConfig(), nil, nil, nil, nil)
	m.Get(t.Context(), "missing")

	reg := NewRegistry(m)
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "threat_cache_misses_total")
	assert.Contains(t, names, "go_goroutines")
}
