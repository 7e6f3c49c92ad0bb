// Package metrics exposes cache statistics to Prometheus.
//
// The [Collector] reads each registered cache's Stats at scrape time, so
// the cache hot path never touches Prometheus. Hit, miss and error counts
// are gauges: a cache Flush resets them.
//
//	c := metrics.NewCollector("tiercache", records, sessions)
//	reg := metrics.NewRegistry(c)
//	r.Handle("/metrics", metrics.Handler(reg))
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emrvault/tiercache/pkg/cache"
)

// Source is a named cache that reports statistics; *cache.Tiered is one.
type Source interface {
	Name() string
	Stats() cache.Stats
}

// Collector is a prometheus.Collector over a set of caches.
type Collector struct {
	hits         *prometheus.Desc
	misses       *prometheus.Desc
	hitRatio     *prometheus.Desc
	keys         *prometheus.Desc
	memory       *prometheus.Desc
	sharedErrors *prometheus.Desc
	sharedUp     *prometheus.Desc
	sources      []Source
	mu           sync.RWMutex
}

// NewCollector creates a collector with metric names prefixed by namespace.
func NewCollector(namespace string, sources ...Source) *Collector {
	labels := []string{"cache"}

	return &Collector{
		sources: sources,
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "hits"),
			"Cache hits by answering tier since the last flush.",
			[]string{"cache", "tier"}, nil,
		),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "misses"),
			"Lookups that missed both tiers since the last flush.",
			labels, nil,
		),
		hitRatio: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "hit_ratio"),
			"Hits divided by lookups since the last flush.",
			labels, nil,
		),
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "local", "keys"),
			"Entries held by the local tier.",
			labels, nil,
		),
		memory: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "local", "memory_bytes"),
			"Approximate size of local tier values.",
			labels, nil,
		),
		sharedErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "shared", "errors"),
			"Shared tier writes that failed while it was ready, since the last flush.",
			labels, nil,
		),
		sharedUp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "shared", "up"),
			"Whether the shared tier is ready (1) or not (0).",
			labels, nil,
		),
	}
}

// Add registers another cache.
func (c *Collector) Add(s Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, s)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRatio
	ch <- c.keys
	ch <- c.memory
	ch <- c.sharedErrors
	ch <- c.sharedUp
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := append([]Source(nil), c.sources...)
	c.mu.RUnlock()

	for _, src := range sources {
		name := src.Name()
		s := src.Stats()

		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.GaugeValue, float64(s.L1Hits), name, "l1")
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.GaugeValue, float64(s.L2Hits), name, "l2")
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.GaugeValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, s.HitRate, name)
		ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(s.KeyCount), name)
		ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(s.MemoryUsageBytes), name)
		ch <- prometheus.MustNewConstMetric(c.sharedErrors, prometheus.GaugeValue, float64(s.L2Errors), name)
		ch <- prometheus.MustNewConstMetric(c.sharedUp, prometheus.GaugeValue, boolToFloat(s.SharedReady), name)
	}
}

// NewRegistry returns a registry holding the collector plus the Go runtime
// and process collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ prometheus.Collector = (*Collector)(nil)
