// Package server runs the scene HTTP API with graceful shutdown and SIGHUP
// configuration reloads.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
)

// DefaultShutdownTimeout bounds how long in-flight requests may drain
const DefaultShutdownTimeout = 30 * time.Second

// ConfigReloadFunc re-applies configuration to a running process
type ConfigReloadFunc func() error

// GracefulServer is an http.Server that drains on context cancellation and
// reloads configuration on SIGHUP
type GracefulServer struct {
	srv             *http.Server
	log             logging.Logger
	ShutdownTimeout time.Duration

	reload   atomic.Pointer[ConfigReloadFunc]
	draining chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewGracefulServer creates a server for handler on addr. A nil logger
// discards output.
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GracefulServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
			MaxHeaderBytes:    1 << 20,
		},
		log:             logger.With(logging.Component("http")),
		ShutdownTimeout: DefaultShutdownTimeout,
		draining:        make(chan struct{}),
	}
}

// Run listens on the server address and serves until ctx is done
func (gs *GracefulServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.srv.Addr)
	if err != nil {
		return err
	}
	return gs.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for at most ShutdownTimeout
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	served := make(chan error, 1)
	go func() {
		if gs.srv.TLSConfig != nil {
			served <- gs.srv.ServeTLS(ln, "", "")
			return
		}
		served <- gs.srv.Serve(ln)
	}()
	gs.log.Info("listening",
		logging.String("addr", ln.Addr().String()),
		logging.Bool("tls", gs.srv.TLSConfig != nil),
	)

	for {
		select {
		case err := <-served:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-hup:
			gs.log.Info("SIGHUP received")
			if err := gs.ReloadConfig(); err != nil {
				gs.log.Warn("configuration reload failed", logging.Error(err))
			}
		case <-ctx.Done():
			err := gs.Shutdown(gs.ShutdownTimeout)
			<-served
			return err
		}
	}
}

// SetTLSConfig makes Serve speak HTTPS with cfg. It must be called before
// Serve; nil keeps plain HTTP.
func (gs *GracefulServer) SetTLSConfig(cfg *tls.Config) {
	gs.srv.TLSConfig = cfg
}

// Shutdown stops accepting connections and waits up to timeout for active
// requests. Later calls return the first call's result.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	gs.stopOnce.Do(func() {
		close(gs.draining)
		gs.log.Info("draining", logging.Duration("timeout", timeout))

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if gs.stopErr = gs.srv.Shutdown(ctx); gs.stopErr != nil {
			gs.log.Error("shutdown failed", logging.Error(gs.stopErr))
			return
		}
		gs.log.Info("stopped")
	})
	return gs.stopErr
}

// ShuttingDown reports whether Shutdown has started
func (gs *GracefulServer) ShuttingDown() bool {
	select {
	case <-gs.draining:
		return true
	default:
		return false
	}
}

// Draining is closed once Shutdown starts
func (gs *GracefulServer) Draining() <-chan struct{} {
	return gs.draining
}

// SetConfigReloadFunc installs the SIGHUP handler; nil removes it
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	if fn == nil {
		gs.reload.Store(nil)
		return
	}
	gs.reload.Store(&fn)
}

// ReloadConfig runs the installed reload function, if any
func (gs *GracefulServer) ReloadConfig() error {
	fn := gs.reload.Load()
	if fn == nil {
		gs.log.Debug("reload requested with no reload function")
		return nil
	}
	return (*fn)()
}
