package api

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/health"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// DefaultMaxBodyBytes bounds request bodies when Config leaves it unset
const DefaultMaxBodyBytes = 10 << 20

// Server represents the HTTP API server
type Server struct {
	fg              *forcegraph.ForceGraph
	metricsRegistry *metrics.Registry
	healthChecker   *health.HealthChecker
	tracker         *scene.Tracker
	corsConfig      *middleware.CORSConfig // CORS configuration for cross-origin requests
	log             logging.Logger
	startTime       time.Time
	version         string
	maxBodyBytes    int64
	metricsPath     string
	trustedProxies  []*net.IPNet
	tlsEnabled      bool

	// loads outlive the request that started them
	baseCtx context.Context

	loadMu     sync.RWMutex
	lastSource string
	lastErr    error
}

// Config wires the server to its collaborators. Zero values pick defaults.
type Config struct {
	Version      string
	Logger       logging.Logger
	Metrics      *metrics.Registry
	Tracker      *scene.Tracker
	CORS         *middleware.CORSConfig
	MaxBodyBytes int64
	// MetricsPath is where the Prometheus handler is mounted, /metrics by default
	MetricsPath string
	// TrustedProxies may set X-Real-IP and X-Forwarded-For
	TrustedProxies []*net.IPNet
	// TLSEnabled turns on Strict-Transport-Security
	TLSEnabled bool
	// BaseContext parents background graph loads
	BaseContext context.Context
}
