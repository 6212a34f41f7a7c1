package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-forcegraph/pkg/colors"
	"github.com/dd0wney/cluso-forcegraph/pkg/config"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
	"github.com/dd0wney/cluso-forcegraph/pkg/source"
)

// simulateReport is what simulate prints once the layout stopped
type simulateReport struct {
	Source    string                     `json:"source,omitempty" yaml:"source,omitempty"`
	Frames    int                        `json:"frames" yaml:"frames"`
	Elapsed   string                     `json:"elapsed" yaml:"elapsed"`
	Settled   bool                       `json:"settled" yaml:"settled"`
	Engine    forcegraph.Stats           `json:"engine" yaml:"engine"`
	Scene     scene.FrameStats           `json:"scene" yaml:"scene"`
	Positions map[string]layout.Position `json:"positions,omitempty" yaml:"positions,omitempty"`
}

func simulateCmd() *cobra.Command {
	var (
		maxFrames int
		format    string
		positions bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the layout headless until it settles and print the result",
		Example: "  forcegraph simulate -s graph.json --format yaml\n" +
			"  forcegraph simulate -s s3://bucket/graph.json.sz --output laid-out.json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (json or yaml)", format)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			report, g, err := simulate(cmd.Context(), cfg, logger, maxFrames)
			if err != nil {
				return err
			}
			if output != "" {
				if err := exportLayout(cmd.Context(), cfg, g, report.Positions, output); err != nil {
					return err
				}
				logger.Info("layout written", logging.Source(output), logging.Count(len(report.Positions)))
			}
			if !positions {
				report.Positions = nil
			}
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}

	cmd.Flags().IntVarP(&maxFrames, "frames", "n", 1000, "Maximum number of frames to run")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json or yaml)")
	cmd.Flags().BoolVar(&positions, "positions", true, "Include node positions in the report")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the graph with x/y/z node attributes to this file or URL")
	return cmd
}

// simulate drives frames until the layout stops or maxFrames ran. The
// returned graph is detached from the closed engine.
func simulate(ctx context.Context, cfg *config.Config, logger logging.Logger, maxFrames int) (*simulateReport, *graph.Graph, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := newEngine(ctx, cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	frames := 0
	for frames < maxFrames && e.fg.Running() {
		if err := ctx.Err(); err != nil {
			_ = e.fg.Close()
			return nil, nil, err
		}
		if err := e.fg.Frame(); err != nil {
			_ = e.fg.Close()
			return nil, nil, err
		}
		frames++
	}

	report := &simulateReport{
		Source:    cfg.Source,
		Frames:    frames,
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		Settled:   !e.fg.Running(),
		Engine:    e.fg.Stats(),
		Scene:     e.renderer.Summary(),
		Positions: e.fg.NodePositions(),
	}
	g := e.fg.Graph()
	if err := e.fg.Close(); err != nil {
		return nil, nil, err
	}
	logger.Debug("simulation finished",
		logging.Int("frames", frames),
		logging.Bool("settled", report.Settled),
	)
	return report, g, nil
}

// exportLayout stores the positions as node attributes and saves the graph.
// Nodes get palette colors when the config auto-colors them.
func exportLayout(ctx context.Context, cfg *config.Config, g *graph.Graph, positions map[string]layout.Position, dest string) error {
	for key, pos := range positions {
		if err := g.MergeNodeAttributes(key, graph.Attributes{"x": pos.X, "y": pos.Y, "z": pos.Z}); err != nil {
			return err
		}
	}
	if by := cfg.NodeAutoColor(); by.IsSet() {
		if err := colors.AutoColorNodes(g, by, "color", colors.NewOrdinal()); err != nil {
			return err
		}
	}
	return source.Save(ctx, g, dest)
}

func writeReport(w io.Writer, format string, report *simulateReport) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
