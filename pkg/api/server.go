// Package api exposes a running force graph over HTTP: graph mutations that
// flow through the graph events into the scene, engine controls and scene
// inspection.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-forcegraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/health"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
)

// NewServer creates a new API server for fg
func NewServer(fg *forcegraph.ForceGraph, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	reg := cfg.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	s := &Server{
		fg:              fg,
		metricsRegistry: reg,
		healthChecker:   health.NewHealthChecker(),
		tracker:         cfg.Tracker,
		corsConfig:      cfg.CORS,
		log:             logger.With(logging.Component("api")),
		startTime:       time.Now(),
		version:         version,
		maxBodyBytes:    maxBody,
		metricsPath:     metricsPath,
		trustedProxies:  cfg.TrustedProxies,
		tlsEnabled:      cfg.TLSEnabled,
		baseCtx:         base,
	}
	s.registerHealthChecks()
	return s
}

func (s *Server) registerHealthChecks() {
	engine := health.EngineCheck(func() health.EngineState {
		st := s.fg.Stats()
		return health.EngineState{
			Closed:     st.Closed,
			Running:    st.Running,
			Paused:     st.Paused,
			Nodes:      st.Nodes,
			BoundNodes: st.BoundNodes,
			Edges:      st.Edges,
			BoundLinks: st.BoundLinks,
		}
	})

	s.healthChecker.RegisterCheck("engine", engine)
	s.healthChecker.RegisterCheck("graph_source", health.LoadCheck(s.lastLoad))
	s.healthChecker.RegisterCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return ms.Alloc, ms.Sys
	}))
	if s.tracker != nil {
		s.healthChecker.RegisterCheck("scene_resources", health.ResourceCheck(func() (int, int) {
			return len(s.tracker.Live()), len(s.tracker.DoubleDisposed())
		}))
	}

	s.healthChecker.RegisterReadinessCheck("engine", engine)
	s.healthChecker.RegisterLivenessCheck("api", func() health.Check {
		return health.SimpleCheck("api")
	})
}

// Health returns the checker behind the /health endpoints so callers can
// add their own probes
func (s *Server) Health() *health.HealthChecker {
	return s.healthChecker
}

// Handler returns the API with its middleware chain applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("/health", s.healthChecker.HTTPHandler())
	mux.HandleFunc("/health/ready", s.healthChecker.ReadinessHandler())
	mux.HandleFunc("/health/live", s.healthChecker.LivenessHandler())
	mux.Handle(s.metricsPath, s.handleMetrics())
	mux.HandleFunc("/version", s.handleVersion)

	// Graph endpoints
	mux.HandleFunc("/graph", s.handleGraph)
	mux.HandleFunc("/nodes", s.handleNodes)
	mux.HandleFunc("/nodes/", s.handleNode) // /nodes/{key}[/drag]
	mux.HandleFunc("/nodes/batch", s.handleBatchNodes)
	mux.HandleFunc("/edges", s.handleEdges)
	mux.HandleFunc("/edges/", s.handleEdge) // /edges/{key}[/emit]
	mux.HandleFunc("/edges/batch", s.handleBatchEdges)
	mux.HandleFunc("/load", s.handleLoad)

	// Engine and scene endpoints
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/scene", s.handleScene)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/pause", s.handlePause)
	mux.HandleFunc("/resume", s.handleResume)
	mux.HandleFunc("/zoom-to-fit", s.handleZoomToFit)

	return chain(mux,
		middleware.PanicRecovery(s.log),
		middleware.RequestID(),
		middleware.ClientIP(s.trustedProxies),
		middleware.SecurityHeaders(&middleware.SecurityHeadersConfig{TLSEnabled: s.tlsEnabled}),
		middleware.Logging(s.log, middleware.GetRequestID),
		middleware.CORS(s.corsConfig),
		middleware.Metrics(s.metricsRegistry, routeLabel),
		middleware.BodySizeLimit(s.maxBodyBytes),
	)
}

// chain wraps h so that the first middleware sees each request first
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) handleMetrics() http.Handler {
	prom := promhttp.HandlerFor(s.metricsRegistry.GetPrometheusRegistry(), promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metricsRegistry.UpdateSystemMetrics(s.startTime)
		st := s.fg.Stats()
		s.metricsRegistry.UpdateGraphMetrics(st.Nodes, st.Edges)
		prom.ServeHTTP(w, r)
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, VersionResponse{
		Version: s.version,
		Started: s.startTime,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// routeLabel collapses keys in the path so metrics stay low cardinality
func routeLabel(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		return r.URL.Path
	}
	if (parts[0] == "nodes" || parts[0] == "edges") && parts[1] != "batch" {
		parts[1] = "{key}"
	}
	return "/" + strings.Join(parts, "/")
}

// lastLoad reports the most recent graph source and its outcome
func (s *Server) lastLoad() (string, error) {
	s.loadMu.RLock()
	defer s.loadMu.RUnlock()
	return s.lastSource, s.lastErr
}

func (s *Server) recordLoad(source string, err error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	s.lastSource = source
	s.lastErr = err
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("encoding JSON response failed", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	s.respondJSON(w, status, response)
}
