package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker()

	for _, probe := range []Probe{ProbeHealth, ProbeReadiness, ProbeLiveness} {
		if names := hc.Names(probe); len(names) != 0 {
			t.Errorf("probe %s: expected no checks, got %v", probe, names)
		}
	}
}

func TestProbesAreIndependent(t *testing.T) {
	tests := []struct {
		name     string
		register func(*HealthChecker, string, CheckFunc)
		probe    Probe
	}{
		{"health", (*HealthChecker).RegisterCheck, ProbeHealth},
		{"readiness", (*HealthChecker).RegisterReadinessCheck, ProbeReadiness},
		{"liveness", (*HealthChecker).RegisterLivenessCheck, ProbeLiveness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			calls := 0
			tt.register(hc, "engine", func() Check {
				calls++
				return Check{Status: StatusHealthy}
			})

			for _, other := range []Probe{ProbeHealth, ProbeReadiness, ProbeLiveness} {
				if other == tt.probe {
					continue
				}
				if resp := hc.Run(other); len(resp.Checks) != 0 {
					t.Errorf("probe %s ran checks of %s", other, tt.probe)
				}
			}
			if calls != 0 {
				t.Fatalf("check ran %d times before its probe", calls)
			}

			resp := hc.Run(tt.probe)
			if calls != 1 {
				t.Errorf("expected one call, got %d", calls)
			}
			if resp.Probe != tt.probe {
				t.Errorf("expected probe %s, got %s", tt.probe, resp.Probe)
			}
			if _, ok := resp.Checks["engine"]; !ok {
				t.Error("check result not in response")
			}
		})
	}
}

func TestRegisterReplacesCheck(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("graph_source", func() Check { return Check{Status: StatusDegraded} })
	hc.RegisterCheck("graph_source", func() Check { return Check{Status: StatusHealthy} })

	resp := hc.Check()
	if len(resp.Checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(resp.Checks))
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected the later check to win, got %s", resp.Status)
	}
}

func TestCheckNameDefaultsToRegisteredName(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("memory", func() Check { return Check{Status: StatusHealthy} })
	hc.RegisterCheck("engine", func() Check { return SimpleCheck("scene engine") })

	resp := hc.Check()
	if got := resp.Checks["memory"].Name; got != "memory" {
		t.Errorf("expected name 'memory', got %q", got)
	}
	if got := resp.Checks["engine"].Name; got != "scene engine" {
		t.Errorf("expected explicit name to survive, got %q", got)
	}
}

func TestNamesAreSorted(t *testing.T) {
	hc := NewHealthChecker()
	for _, name := range []string{"memory", "engine", "graph_source"} {
		hc.RegisterCheck(name, func() Check { return Check{Status: StatusHealthy} })
	}

	got := hc.Names(ProbeHealth)
	want := []string{"engine", "graph_source", "memory"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestCheckMayRegisterChecks(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("lazy", func() Check {
		hc.RegisterCheck("late", func() Check { return Check{Status: StatusHealthy} })
		return Check{Status: StatusHealthy}
	})

	done := make(chan struct{})
	go func() {
		hc.Check()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a check registering a check deadlocked")
	}
	if len(hc.Names(ProbeHealth)) != 2 {
		t.Errorf("expected the late check to be registered")
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name           string
		checkStatuses  []Status
		expectedStatus Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded, StatusHealthy}, StatusDegraded},
		{"one unhealthy", []Status{StatusHealthy, StatusUnhealthy}, StatusUnhealthy},
		{"degraded and unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"unhealthy before degraded", []Status{StatusUnhealthy, StatusDegraded}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, status := range tt.checkStatuses {
				hc.RegisterCheck(string(rune('a'+i)), func() Check {
					return Check{Status: status}
				})
			}

			resp := hc.Check()
			if resp.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, resp.Status)
			}
		})
	}
}

func TestCheckTiming(t *testing.T) {
	hc := NewHealthChecker()
	sleep := 10 * time.Millisecond
	hc.RegisterCheck("slow", func() Check {
		time.Sleep(sleep)
		return Check{Status: StatusHealthy}
	})

	before := time.Now()
	resp := hc.Check()
	after := time.Now()

	if resp.Timestamp.Before(before) || resp.Timestamp.After(after) {
		t.Errorf("timestamp %v not between %v and %v", resp.Timestamp, before, after)
	}
	check := resp.Checks["slow"]
	if check.Duration < sleep {
		t.Errorf("duration %v less than sleep time %v", check.Duration, sleep)
	}
	if check.LastChecked.Before(before) {
		t.Errorf("LastChecked %v precedes the run", check.LastChecked)
	}
}

func TestSimpleCheck(t *testing.T) {
	check := SimpleCheck("test-component")

	if check.Name != "test-component" {
		t.Errorf("expected name 'test-component', got %s", check.Name)
	}
	if check.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", check.Status)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestEngineCheck(t *testing.T) {
	tests := []struct {
		name           string
		state          EngineState
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "running",
			state:          EngineState{Running: true, Nodes: 3, BoundNodes: 3},
			expectedStatus: StatusHealthy,
			expectedMsg:    "Simulation running",
		},
		{
			name:           "settled",
			state:          EngineState{},
			expectedStatus: StatusHealthy,
			expectedMsg:    "Simulation settled",
		},
		{
			name:           "paused",
			state:          EngineState{Running: true, Paused: true},
			expectedStatus: StatusDegraded,
			expectedMsg:    "Animation paused",
		},
		{
			name:           "closed",
			state:          EngineState{Closed: true, Paused: true},
			expectedStatus: StatusUnhealthy,
			expectedMsg:    "Engine closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := EngineCheck(func() EngineState { return tt.state })()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
			if check.Name != "engine" {
				t.Errorf("expected name 'engine', got %s", check.Name)
			}
			if check.Details["nodes"] != tt.state.Nodes {
				t.Errorf("expected nodes detail %d, got %v", tt.state.Nodes, check.Details["nodes"])
			}
		})
	}
}

func TestLoadCheck(t *testing.T) {
	tests := []struct {
		name           string
		source         string
		err            error
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "nothing loaded",
			expectedStatus: StatusHealthy,
			expectedMsg:    "No source loaded",
		},
		{
			name:           "loaded",
			source:         "graph.json",
			expectedStatus: StatusHealthy,
			expectedMsg:    "Source loaded",
		},
		{
			name:           "failed",
			source:         "s3://bucket/graph.json",
			err:            errors.New("access denied"),
			expectedStatus: StatusDegraded,
			expectedMsg:    "access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := LoadCheck(func() (string, error) { return tt.source, tt.err })()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
			if tt.source != "" && check.Details["source"] != tt.source {
				t.Errorf("expected source detail %q, got %v", tt.source, check.Details["source"])
			}
		})
	}
}

func TestResourceCheck(t *testing.T) {
	healthy := ResourceCheck(func() (int, int) { return 12, 0 })()
	if healthy.Status != StatusHealthy {
		t.Errorf("expected status %s, got %s", StatusHealthy, healthy.Status)
	}
	if healthy.Details["live"] != 12 {
		t.Errorf("expected live detail 12, got %v", healthy.Details["live"])
	}

	broken := ResourceCheck(func() (int, int) { return 12, 1 })()
	if broken.Status != StatusUnhealthy {
		t.Errorf("expected status %s, got %s", StatusUnhealthy, broken.Status)
	}
}

func TestDrainCheck(t *testing.T) {
	draining := false
	check := DrainCheck(func() bool { return draining })

	if got := check(); got.Status != StatusHealthy {
		t.Errorf("expected status %s, got %s", StatusHealthy, got.Status)
	}

	draining = true
	got := check()
	if got.Status != StatusUnhealthy {
		t.Errorf("expected status %s, got %s", StatusUnhealthy, got.Status)
	}
	if got.Message != "shutting down" {
		t.Errorf("expected message %q, got %q", "shutting down", got.Message)
	}
}

func TestCertificateCheck(t *testing.T) {
	tests := []struct {
		name     string
		notAfter time.Time
		want     Status
	}{
		{"valid", time.Now().Add(90 * 24 * time.Hour), StatusHealthy},
		{"renewal window", time.Now().Add(24 * time.Hour), StatusDegraded},
		{"expired", time.Now().Add(-time.Minute), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CertificateCheck(tt.notAfter, 14*24*time.Hour)()
			if check.Status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, check.Status)
			}
			if check.Details["not_after"] == nil {
				t.Error("expected not_after detail")
			}
		})
	}
}

func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		name           string
		alloc          uint64
		sys            uint64
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "normal usage",
			alloc:          50,
			sys:            100,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "high usage (90%)",
			alloc:          90,
			sys:            100,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "no system memory",
			alloc:          0,
			sys:            0,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "high usage (91%)",
			alloc:          91,
			sys:            100,
			expectedStatus: StatusDegraded,
			expectedMsg:    "High memory usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFunc := MemoryCheck(func() (uint64, uint64) {
				return tt.alloc, tt.sys
			})

			check := checkFunc()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		probe   Probe
		status  Status
		code    int
		handler func(*HealthChecker) http.HandlerFunc
	}{
		{ProbeHealth, StatusHealthy, http.StatusOK, (*HealthChecker).HTTPHandler},
		{ProbeHealth, StatusDegraded, http.StatusOK, (*HealthChecker).HTTPHandler},
		{ProbeHealth, StatusUnhealthy, http.StatusServiceUnavailable, (*HealthChecker).HTTPHandler},
		{ProbeReadiness, StatusHealthy, http.StatusOK, (*HealthChecker).ReadinessHandler},
		{ProbeReadiness, StatusDegraded, http.StatusServiceUnavailable, (*HealthChecker).ReadinessHandler},
		{ProbeReadiness, StatusUnhealthy, http.StatusServiceUnavailable, (*HealthChecker).ReadinessHandler},
		{ProbeLiveness, StatusHealthy, http.StatusOK, (*HealthChecker).LivenessHandler},
		{ProbeLiveness, StatusDegraded, http.StatusServiceUnavailable, (*HealthChecker).LivenessHandler},
	}

	for _, tt := range tests {
		t.Run(string(tt.probe)+"/"+string(tt.status), func(t *testing.T) {
			hc := NewHealthChecker()
			hc.Register(tt.probe, "engine", func() Check {
				return Check{Status: tt.status}
			})

			rec := httptest.NewRecorder()
			tt.handler(hc)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.code {
				t.Errorf("expected status code %d, got %d", tt.code, rec.Code)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Error("health responses must not be cached")
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("expected response status %s, got %s", tt.status, resp.Status)
			}
			if resp.Probe != tt.probe {
				t.Errorf("expected probe %s, got %s", tt.probe, resp.Probe)
			}
		})
	}
}

func TestConcurrentRegistrationAndChecks(t *testing.T) {
	hc := NewHealthChecker()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hc.RegisterCheck(string(rune('a'+i)), func() Check {
				return Check{Status: StatusHealthy}
			})
		}()
		go func() {
			defer wg.Done()
			hc.Check()
		}()
	}
	wg.Wait()

	if resp := hc.Check(); len(resp.Checks) != 10 {
		t.Errorf("expected 10 checks, got %d", len(resp.Checks))
	}
}
