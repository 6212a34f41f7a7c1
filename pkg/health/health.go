// Package health reports whether the scene server and its engine can serve.
// Checks are grouped into probes: the full report, readiness and liveness.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Probe selects which group of checks runs
type Probe string

const (
	ProbeHealth    Probe = "health"
	ProbeReadiness Probe = "readiness"
	ProbeLiveness  Probe = "liveness"
)

// Check is the outcome of one component check
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ms"`
}

// CheckFunc performs a single check
type CheckFunc func() Check

// Response is the aggregated result of a probe. The worst check status
// becomes the overall status.
type Response struct {
	Probe     Probe            `json:"probe"`
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    float64          `json:"uptime_seconds"`
}

type namedCheck struct {
	name string
	fn   CheckFunc
}

// HealthChecker holds the registered checks of every probe
type HealthChecker struct {
	mu      sync.RWMutex
	probes  map[Probe]map[string]CheckFunc
	started time.Time
}

// NewHealthChecker creates a checker with no checks registered
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		probes:  make(map[Probe]map[string]CheckFunc),
		started: time.Now(),
	}
}

// Register adds check to probe under name, replacing an earlier one
func (hc *HealthChecker) Register(probe Probe, name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.probes[probe] == nil {
		hc.probes[probe] = make(map[string]CheckFunc)
	}
	hc.probes[probe][name] = check
}

// RegisterCheck registers a check of the full health report
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.Register(ProbeHealth, name, check)
}

// RegisterReadinessCheck registers a readiness check
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.Register(ProbeReadiness, name, check)
}

// RegisterLivenessCheck registers a liveness check
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.Register(ProbeLiveness, name, check)
}

// Names lists the checks registered for probe in sorted order
func (hc *HealthChecker) Names(probe Probe) []string {
	checks := hc.snapshot(probe)
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.name
	}
	return names
}

func (hc *HealthChecker) snapshot(probe Probe) []namedCheck {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	checks := make([]namedCheck, 0, len(hc.probes[probe]))
	for name, fn := range hc.probes[probe] {
		checks = append(checks, namedCheck{name, fn})
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].name < checks[j].name })
	return checks
}

// Run executes every check of probe. Checks run without the registry lock
// held, so a check may itself register checks.
func (hc *HealthChecker) Run(probe Probe) Response {
	response := Response{
		Probe:     probe,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check),
		Uptime:    time.Since(hc.started).Seconds(),
	}

	for _, c := range hc.snapshot(probe) {
		start := time.Now()
		check := c.fn()
		check.Duration = time.Since(start)
		check.LastChecked = start
		if check.Name == "" {
			check.Name = c.name
		}

		response.Checks[c.name] = check
		if check.Status.severity() > response.Status.severity() {
			response.Status = check.Status
		}
	}
	return response
}

// Check runs the full health report
func (hc *HealthChecker) Check() Response { return hc.Run(ProbeHealth) }

// CheckReadiness runs the readiness probe
func (hc *HealthChecker) CheckReadiness() Response { return hc.Run(ProbeReadiness) }

// CheckLiveness runs the liveness probe
func (hc *HealthChecker) CheckLiveness() Response { return hc.Run(ProbeLiveness) }

// Handler serves probe as JSON. ok decides whether the aggregated status
// answers 200 or 503.
func (hc *HealthChecker) Handler(probe Probe, ok func(Status) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := hc.Run(probe)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if ok(response.Status) {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// HTTPHandler serves the full report. A degraded engine still answers 200.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return hc.Handler(ProbeHealth, func(s Status) bool { return s != StatusUnhealthy })
}

// ReadinessHandler serves the readiness probe; only healthy answers 200
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return hc.Handler(ProbeReadiness, func(s Status) bool { return s == StatusHealthy })
}

// LivenessHandler serves the liveness probe; only healthy answers 200
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return hc.Handler(ProbeLiveness, func(s Status) bool { return s == StatusHealthy })
}
