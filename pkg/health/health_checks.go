package health

import "time"

// Common health check functions

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// EngineState is the part of the engine state the checks look at
type EngineState struct {
	Closed     bool
	Running    bool
	Paused     bool
	Nodes      int
	BoundNodes int
	Edges      int
	BoundLinks int
}

// EngineCheck creates a health check for the scene engine. A closed engine is
// unhealthy; a paused one is degraded.
func EngineCheck(getState func() EngineState) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "engine",
			Details: make(map[string]any),
		}

		st := getState()
		check.Details["running"] = st.Running
		check.Details["paused"] = st.Paused
		check.Details["nodes"] = st.Nodes
		check.Details["bound_nodes"] = st.BoundNodes
		check.Details["edges"] = st.Edges
		check.Details["bound_links"] = st.BoundLinks

		switch {
		case st.Closed:
			check.Status = StatusUnhealthy
			check.Message = "Engine closed"
		case st.Paused:
			check.Status = StatusDegraded
			check.Message = "Animation paused"
		case st.Running:
			check.Status = StatusHealthy
			check.Message = "Simulation running"
		default:
			check.Status = StatusHealthy
			check.Message = "Simulation settled"
		}

		return check
	}
}

// LoadCheck creates a health check for the last graph load. It is degraded
// while the last load failed.
func LoadCheck(getLast func() (source string, err error)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "graph_source",
			Details: make(map[string]any),
		}

		source, err := getLast()
		if source != "" {
			check.Details["source"] = source
		}

		switch {
		case err != nil:
			check.Status = StatusDegraded
			check.Message = err.Error()
		case source == "":
			check.Status = StatusHealthy
			check.Message = "No source loaded"
		default:
			check.Status = StatusHealthy
			check.Message = "Source loaded"
		}

		return check
	}
}

// ResourceCheck creates a health check over live scene resources. A resource
// released twice makes the scene unhealthy.
func ResourceCheck(getCounts func() (live, doubleDisposed int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "scene_resources",
			Details: make(map[string]any),
		}

		live, doubled := getCounts()
		check.Details["live"] = live
		check.Details["double_disposed"] = doubled

		if doubled > 0 {
			check.Status = StatusUnhealthy
			check.Message = "Resources released twice"
		} else {
			check.Status = StatusHealthy
			check.Message = "Resources balanced"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := 0.0
		if sys > 0 {
			usagePercent = float64(alloc) / float64(sys) * 100
		}

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}

// DrainCheck reports unhealthy once draining returns true, so load
// balancers stop routing to a server that is shutting down
func DrainCheck(draining func() bool) CheckFunc {
	return func() Check {
		check := Check{Name: "http", Status: StatusHealthy, LastChecked: time.Now()}
		if draining() {
			check.Status = StatusUnhealthy
			check.Message = "shutting down"
		}
		return check
	}
}

// CertificateCheck watches the serving certificate. It degrades inside the
// renewal window and fails once the certificate has expired.
func CertificateCheck(notAfter time.Time, renewWithin time.Duration) CheckFunc {
	return func() Check {
		left := time.Until(notAfter)
		check := Check{
			Name:        "certificate",
			Status:      StatusHealthy,
			LastChecked: time.Now(),
			Details:     map[string]any{"not_after": notAfter.UTC().Format(time.RFC3339)},
		}
		switch {
		case left <= 0:
			check.Status = StatusUnhealthy
			check.Message = "certificate expired"
		case left < renewWithin:
			check.Status = StatusDegraded
			check.Message = "certificate expires soon"
		}
		return check
	}
}
