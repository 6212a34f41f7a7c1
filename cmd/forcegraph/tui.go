package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
)

func tuiCmd() *cobra.Command {
	var fps int

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Watch the layout settle in an interactive terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fps <= 0 || fps > 120 {
				return fmt.Errorf("--fps must be between 1 and 120, got %d", fps)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// the dashboard owns the terminal, so logs are dropped
			logger := logging.NewJSONLogger(io.Discard, cfg.Level())

			e, err := newEngine(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer e.fg.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m := newDashboard(ctx, e, cfg.Source, time.Second/time.Duration(fps))
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}

	cmd.Flags().IntVar(&fps, "fps", 30, "Frames per second to simulate and redraw")
	return cmd
}
