// Package metrics exposes the engine, scene cache, loader and HTTP
// instrumentation as Prometheus collectors. Every Registry owns its own
// prometheus.Registry so engines in one process do not share series.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forcegraph"

// Registry holds every collector the engine and API report to
type Registry struct {
	// bound graph
	GraphNodesTotal prometheus.Gauge
	GraphEdgesTotal prometheus.Gauge

	// renderables and the resource cache
	SceneObjects          *prometheus.GaugeVec
	ObjectsCreatedTotal   *prometheus.CounterVec
	ObjectsDestroyedTotal *prometheus.CounterVec
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec

	// simulation
	ReconcileActionsTotal *prometheus.CounterVec
	TicksTotal            prometheus.Counter
	TickDuration          prometheus.Histogram
	EngineRunning         prometheus.Gauge
	EngineStopsTotal      prometheus.Counter

	// graph sources
	LoadsTotal   *prometheus.CounterVec
	LoadDuration *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// process, sampled on scrape
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.Mutex
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// DefaultRegistry returns the process wide registry, created on first use
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// NewRegistry creates a registry with every collector registered
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.registerGraph()
	r.registerScene()
	r.registerEngine()
	r.registerLoads()
	r.registerHTTP()
	r.registerProcess()
	return r
}

// GetPrometheusRegistry returns the underlying registry for scraping
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
