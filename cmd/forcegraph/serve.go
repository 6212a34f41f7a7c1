package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-forcegraph/pkg/api"
	"github.com/dd0wney/cluso-forcegraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-forcegraph/pkg/config"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/health"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
	"github.com/dd0wney/cluso-forcegraph/pkg/server"
	"github.com/dd0wney/cluso-forcegraph/pkg/source"
	fgtls "github.com/dd0wney/cluso-forcegraph/pkg/tls"
)

func serveCmd() *cobra.Command {
	var (
		addr         string
		watch        bool
		corsOrigins  []string
		maxBodyBytes int64
		tlsFlags     config.TLSConfig
		proxies      []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine behind the HTTP API",
		Long: "Run the force layout continuously and expose the graph over HTTP.\n" +
			"SIGHUP reloads the configuration file; SIGINT and SIGTERM shut down gracefully.",
		Example: "  forcegraph serve -c forcegraph.yaml -s graph.json --watch",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyTLSFlags(cmd, &cfg.TLS, tlsFlags)
			if cmd.Flags().Changed("trusted-proxy") {
				cfg.TrustedProxies = proxies
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cors := middleware.DefaultCORSConfig()
			if len(corsOrigins) > 0 {
				cors.AllowedOrigins = corsOrigins
			}
			return serve(ctx, cfg, logger, serveOptions{
				addr:         addr,
				watch:        watch,
				cors:         cors,
				maxBodyBytes: maxBodyBytes,
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the source file whenever it changes")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable)")
	cmd.Flags().Int64Var(&maxBodyBytes, "max-body-bytes", api.DefaultMaxBodyBytes, "Largest accepted request body")
	cmd.Flags().StringVar(&tlsFlags.CertFile, "tls-cert", "", "PEM certificate to serve HTTPS with")
	cmd.Flags().StringVar(&tlsFlags.KeyFile, "tls-key", "", "PEM key for --tls-cert")
	cmd.Flags().BoolVar(&tlsFlags.SelfSigned, "tls-self-signed", false, "Serve HTTPS with a generated certificate")
	cmd.Flags().StringSliceVar(&proxies, "trusted-proxy", nil, "CIDR or address of a proxy whose X-Forwarded-For is trusted (repeatable)")
	return cmd
}

// applyTLSFlags overrides the configured TLS settings with flags the user set
func applyTLSFlags(cmd *cobra.Command, dst *config.TLSConfig, flags config.TLSConfig) {
	if cmd.Flags().Changed("tls-cert") || cmd.Flags().Changed("tls-key") {
		dst.CertFile, dst.KeyFile = flags.CertFile, flags.KeyFile
	}
	if cmd.Flags().Changed("tls-self-signed") {
		dst.SelfSigned = flags.SelfSigned
	}
}

// certRenewWindow is when the certificate health check starts degrading
const certRenewWindow = 14 * 24 * time.Hour

// serverTLS builds the HTTPS configuration and registers its expiry check.
// It returns nil when TLS is not configured.
func serverTLS(c config.TLSConfig, checks *health.HealthChecker) (*tls.Config, error) {
	tlsCfg, err := fgtls.ServerConfig(fgtls.Config{
		CertFile:   c.CertFile,
		KeyFile:    c.KeyFile,
		SelfSigned: c.SelfSigned,
		Hosts:      c.Hosts,
	})
	if err != nil || tlsCfg == nil {
		return nil, err
	}
	notAfter, err := fgtls.NotAfter(tlsCfg)
	if err != nil {
		return nil, err
	}
	checks.RegisterCheck("certificate", health.CertificateCheck(notAfter, certRenewWindow))
	return tlsCfg, nil
}

type serveOptions struct {
	addr         string
	watch        bool
	cors         *middleware.CORSConfig
	maxBodyBytes int64
}

func serve(ctx context.Context, cfg *config.Config, logger logging.Logger, opts serveOptions) error {
	reg := metrics.NewRegistry()
	var engineMetrics *metrics.Registry
	if cfg.Metrics.Enabled {
		engineMetrics = reg
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	e, err := newEngine(ctx, cfg, logger, engineMetrics)
	if err != nil {
		return err
	}
	defer e.fg.Close()

	srv := api.NewServer(e.fg, api.Config{
		Version:        version,
		Logger:         logger,
		Metrics:        reg,
		Tracker:        e.tracker,
		CORS:           opts.cors,
		MaxBodyBytes:   opts.maxBodyBytes,
		MetricsPath:    cfg.Metrics.Path,
		TrustedProxies: proxies,
		TLSEnabled:     cfg.TLS.Enabled(),
		BaseContext:    ctx,
	})

	tlsCfg, err := serverTLS(cfg.TLS, srv.Health())
	if err != nil {
		return err
	}

	gs := server.NewGracefulServer(opts.addr, srv.Handler(), logger)
	gs.SetTLSConfig(tlsCfg)
	gs.SetConfigReloadFunc(reloadFunc(e.fg, logger))
	srv.Health().RegisterReadinessCheck("http", health.DrainCheck(gs.ShuttingDown))

	go func() {
		if err := e.fg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("engine stopped", logging.Error(err))
		}
	}()

	if opts.watch {
		if cfg.Source == "" || source.Scheme(cfg.Source) != "file" {
			return fmt.Errorf("--watch needs a local source file, got %q", cfg.Source)
		}
		go watchSource(ctx, e.fg, cfg.Source, logger)
	}

	logger.Info("forcegraph serving",
		logging.String("addr", opts.addr),
		logging.Source(cfg.Source),
		logging.String("version", version),
	)
	return gs.Run(ctx)
}

// reloadFunc re-reads --config and applies it to the running engine. The
// graph itself is left alone.
func reloadFunc(fg *forcegraph.ForceGraph, logger logging.Logger) server.ConfigReloadFunc {
	return func() error {
		if configPath == "" {
			return nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		logger.SetLevel(cfg.Level())
		if err := fg.Set(opts...); err != nil {
			return err
		}
		logger.Info("configuration reloaded", logging.String("path", configPath))
		return nil
	}
}

// watchSource swaps in the graph file each time it changes. A file that
// fails to parse leaves the current graph in place.
func watchSource(ctx context.Context, fg *forcegraph.ForceGraph, path string, logger logging.Logger) {
	err := source.Watch(ctx, path, func(g *graph.Graph, err error) {
		if err != nil {
			logger.Warn("reloading source failed", logging.Source(path), logging.Error(err))
			return
		}
		if err := fg.Set(forcegraph.WithGraph(g)); err != nil {
			logger.Warn("replacing graph failed", logging.Source(path), logging.Error(err))
			return
		}
		logger.Info("source reloaded", logging.Source(path), logging.Count(g.Order()))
	})
	if err != nil {
		logger.Error("watching source failed", logging.Source(path), logging.Error(err))
	}
}
