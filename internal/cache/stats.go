package cache

import "sync/atomic"

// Stats is the exported statistics shape.
type Stats struct {
	TotalRequests   int64   `json:"totalRequests"`
	CacheHits       int64   `json:"cacheHits"`
	CacheMisses     int64   `json:"cacheMisses"`
	HitRate         float64 `json:"hitRate"`
	MemoryUsage     int64   `json:"memoryUsage"`
	KeyCount        int     `json:"keyCount"`
	Evictions       int64   `json:"evictions"`
	SharedConnected bool    `json:"sharedConnected"`
	InFlight        int64   `json:"inFlight"`
}

// statsCollector holds the process-lifetime request counters.
type statsCollector struct {
	requests atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

func (s *statsCollector) request() { s.requests.Add(1) }
func (s *statsCollector) hit()     { s.hits.Add(1) }
func (s *statsCollector) miss()    { s.misses.Add(1) }

func (s *statsCollector) snapshot() Stats {
	// hits and misses are recorded after their request, so loading them first
	// keeps the snapshot consistent (hits+misses <= requests).
	st := Stats{
		CacheHits:   s.hits.Load(),
		CacheMisses: s.misses.Load(),
	}
	st.TotalRequests = s.requests.Load()
	if st.TotalRequests > 0 {
		st.HitRate = float64(st.CacheHits) / float64(st.TotalRequests)
	}
	return st
}
