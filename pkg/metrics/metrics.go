package metrics

import (
	"runtime"
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// UpdateGraphMetrics records the size of the bound graph
func (r *Registry) UpdateGraphMetrics(nodes, edges int) {
	r.GraphNodesTotal.Set(float64(nodes))
	r.GraphEdgesTotal.Set(float64(edges))
}

// RecordObjectCreated counts a new renderable of kind
func (r *Registry) RecordObjectCreated(kind string) {
	r.ObjectsCreatedTotal.WithLabelValues(kind).Inc()
	r.SceneObjects.WithLabelValues(kind).Inc()
}

// RecordObjectDestroyed counts a destroyed renderable of kind
func (r *Registry) RecordObjectDestroyed(kind string) {
	r.ObjectsDestroyedTotal.WithLabelValues(kind).Inc()
	r.SceneObjects.WithLabelValues(kind).Dec()
}

// RecordCacheLookup counts a resource cache hit or miss for tier
func (r *Registry) RecordCacheLookup(tier string, hit bool) {
	if hit {
		r.CacheHitsTotal.WithLabelValues(tier).Inc()
	} else {
		r.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

// RecordReconcileAction counts one reconciler decision
func (r *Registry) RecordReconcileAction(kind, action string) {
	r.ReconcileActionsTotal.WithLabelValues(kind, action).Inc()
}

// RecordTick records one processed frame
func (r *Registry) RecordTick(duration time.Duration) {
	r.TicksTotal.Inc()
	r.TickDuration.Observe(duration.Seconds())
}

// SetEngineRunning records the simulation run state
func (r *Registry) SetEngineRunning(running bool) {
	if running {
		r.EngineRunning.Set(1)
	} else {
		r.EngineRunning.Set(0)
	}
}

// RecordEngineStop counts a cooldown
func (r *Registry) RecordEngineStop() {
	r.EngineStopsTotal.Inc()
	r.EngineRunning.Set(0)
}

// RecordLoad records a graph load attempt
func (r *Registry) RecordLoad(scheme, status string, duration time.Duration) {
	r.LoadsTotal.WithLabelValues(scheme, status).Inc()
	if status != "rejected" {
		r.LoadDuration.WithLabelValues(scheme).Observe(duration.Seconds())
	}
}

// UpdateSystemMetrics samples process level gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(ms.Alloc))
	r.MemorySysBytes.Set(float64(ms.Sys))
}
