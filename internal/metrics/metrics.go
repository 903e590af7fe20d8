// Package metrics exposes the cache manager statistics in the Prometheus
// text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"threat-cache/internal/cache"
)

const namespace = "threat_cache"

// StatsSource is satisfied by *cache.Manager.
type StatsSource interface {
	Stats() cache.Stats
}

// Collector exports a fresh stats snapshot on every scrape.
type Collector struct {
	source StatsSource

	requests        *prometheus.Desc
	hits            *prometheus.Desc
	misses          *prometheus.Desc
	hitRate         *prometheus.Desc
	keys            *prometheus.Desc
	memoryBytes     *prometheus.Desc
	evictions       *prometheus.Desc
	sharedConnected *prometheus.Desc
	inFlight        *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}

	return &Collector{
		source:          source,
		requests:        desc("requests_total", "Total cache reads"),
		hits:            desc("hits_total", "Cache reads answered by any tier"),
		misses:          desc("misses_total", "Cache reads no tier could answer"),
		hitRate:         desc("hit_ratio", "Hits divided by requests since start"),
		keys:            desc("local_keys", "Live entries in the local tier"),
		memoryBytes:     desc("local_memory_bytes", "Estimated size of the local tier"),
		evictions:       desc("local_evictions_total", "Entries evicted from the local tier to respect its bound"),
		sharedConnected: desc("shared_connected", "1 when the shared tier is reachable"),
		inFlight:        desc("getorset_in_flight", "Fetchers currently running in GetOrSet"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRate
	ch <- c.keys
	ch <- c.memoryBytes
	ch <- c.evictions
	ch <- c.sharedConnected
	ch <- c.inFlight
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()

	connected := 0.0
	if st.SharedConnected {
		connected = 1
	}

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(st.TotalRequests))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.CacheMisses))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, st.HitRate)
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.KeyCount))
	ch <- prometheus.MustNewConstMetric(c.memoryBytes, prometheus.GaugeValue, float64(st.MemoryUsage))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.sharedConnected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(st.InFlight))
}

// NewRegistry returns a registry holding the cache collector plus the Go
// runtime and process collectors.
func NewRegistry(source StatsSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
