package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-forcegraph/pkg/config"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
	"github.com/dd0wney/cluso-forcegraph/pkg/source"
)

var version = "0.3.0"

var (
	configPath string
	logLevel   string
	sourceURL  string
)

var rootCmd = &cobra.Command{
	Use:           "forcegraph",
	Short:         "forcegraph - force-directed 3D graph scenes",
	Long:          "Lay out a graph with a force simulation and keep a 3D scene in sync with it",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.SetVersionTemplate("forcegraph {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVarP(&sourceURL, "source", "s", "", "Graph to load (file path, file://, http(s):// or s3:// URL)")

	rootCmd.AddCommand(
		simulateCmd(),
		serveCmd(),
		tuiCmd(),
		configCmd(),
	)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config on top of the defaults and applies the flag
// overrides
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if sourceURL != "" {
		cfg.Source = sourceURL
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	logger := logging.NewJSONLogger(os.Stderr, cfg.Level())
	logging.SetDefaultLogger(logger)
	return logger
}

// engine bundles a configured engine with the pieces commands inspect
type engine struct {
	fg       *forcegraph.ForceGraph
	renderer *scene.Headless
	tracker  *scene.Tracker
	metrics  *metrics.Registry
	log      logging.Logger
}

// newEngine builds an engine from cfg. The configured source, if any, is
// loaded synchronously before the engine is returned.
func newEngine(ctx context.Context, cfg *config.Config, logger logging.Logger, reg *metrics.Registry) (*engine, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	e := &engine{
		renderer: scene.NewHeadless(),
		tracker:  scene.NewTracker(),
		metrics:  reg,
		log:      logger,
	}
	opts = append(opts,
		forcegraph.WithLogger(logger),
		forcegraph.WithTracker(e.tracker),
		forcegraph.WithSourceLoader(source.Load),
	)
	if reg != nil {
		opts = append(opts, forcegraph.WithMetrics(reg))
	}

	fg, err := forcegraph.New(e.renderer, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	e.fg = fg

	if cfg.Source != "" {
		if err := e.load(ctx, cfg.Source); err != nil {
			_ = fg.Close()
			return nil, err
		}
	}
	return e, nil
}

// load replaces the engine's graph with the one at url and waits for it
func (e *engine) load(ctx context.Context, url string) error {
	done, err := e.fg.LoadGraph(ctx, url)
	if err != nil {
		return err
	}
	return <-done
}
