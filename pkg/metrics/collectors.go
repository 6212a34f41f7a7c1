package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickBuckets = []float64{0.0001, 0.0005, 0.001, 0.004, 0.008, 0.016, 0.033, 0.1}

	// label sets
	byKind   = []string{"kind"} // node, link, arrow, photons
	byTier   = []string{"tier"}
	byAction = []string{"kind", "action"}
	byLoad   = []string{"scheme", "status"} // ok, error, rejected
	byScheme = []string{"scheme"}
	byRoute  = []string{"method", "path", "status"}
)

func gaugeOpts(subsystem, name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
}

func counterOpts(subsystem, name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
}

func histogramOpts(subsystem, name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}
}

func (r *Registry) registerGraph() {
	f := promauto.With(r.registry)
	r.GraphNodesTotal = f.NewGauge(gaugeOpts("graph", "nodes_total", "Nodes in the bound graph"))
	r.GraphEdgesTotal = f.NewGauge(gaugeOpts("graph", "edges_total", "Edges in the bound graph"))
}

func (r *Registry) registerScene() {
	f := promauto.With(r.registry)
	r.SceneObjects = f.NewGaugeVec(gaugeOpts("scene", "objects", "Renderables currently bound, by kind"), byKind)
	r.ObjectsCreatedTotal = f.NewCounterVec(counterOpts("objects", "created_total", "Renderables created"), byKind)
	r.ObjectsDestroyedTotal = f.NewCounterVec(counterOpts("objects", "destroyed_total", "Renderables destroyed"), byKind)
	r.CacheHitsTotal = f.NewCounterVec(counterOpts("cache", "hits_total", "Resource cache lookups served from the cache"), byTier)
	r.CacheMissesTotal = f.NewCounterVec(counterOpts("cache", "misses_total", "Resource cache lookups that built a new resource"), byTier)
}

func (r *Registry) registerEngine() {
	f := promauto.With(r.registry)
	// action: add, drop, rebuild, material, geometry, keep
	r.ReconcileActionsTotal = f.NewCounterVec(counterOpts("reconcile", "actions_total", "Per-element decisions taken by the reconciler"), byAction)
	r.TicksTotal = f.NewCounter(counterOpts("", "ticks_total", "Animation frames processed"))
	r.TickDuration = f.NewHistogram(histogramOpts("tick", "duration_seconds", "Time spent in one animation frame", tickBuckets))
	r.EngineRunning = f.NewGauge(gaugeOpts("engine", "running", "Whether the layout simulation is running (1=yes, 0=no)"))
	r.EngineStopsTotal = f.NewCounter(counterOpts("engine", "stops_total", "Times the simulation cooled down"))
}

func (r *Registry) registerLoads() {
	f := promauto.With(r.registry)
	r.LoadsTotal = f.NewCounterVec(counterOpts("", "loads_total", "Graph loads by source scheme and result"), byLoad)
	r.LoadDuration = f.NewHistogramVec(histogramOpts("load", "duration_seconds", "Time to fetch and decode a graph", prometheus.DefBuckets), byScheme)
}

func (r *Registry) registerHTTP() {
	f := promauto.With(r.registry)
	r.HTTPRequestsTotal = f.NewCounterVec(counterOpts("http", "requests_total", "HTTP requests served"), byRoute)
	r.HTTPRequestDuration = f.NewHistogramVec(histogramOpts("http", "request_duration_seconds", "HTTP request latency", prometheus.DefBuckets), byRoute)
}

func (r *Registry) registerProcess() {
	f := promauto.With(r.registry)
	r.UptimeSeconds = f.NewGauge(gaugeOpts("", "uptime_seconds", "Seconds since the API server started"))
	r.GoRoutines = f.NewGauge(gaugeOpts("", "goroutines", "Live goroutines"))
	r.MemoryAllocBytes = f.NewGauge(gaugeOpts("memory", "alloc_bytes", "Bytes of allocated heap objects"))
	r.MemorySysBytes = f.NewGauge(gaugeOpts("memory", "sys_bytes", "Bytes of memory obtained from the OS"))
}
