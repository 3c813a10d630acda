//go:build !tinygo

package cli

import (
	"errors"
	"fmt"
	"io"

	"ember/app"
	"ember/hal"

	"github.com/spf13/cobra"
)

func newTraceCmd() *cobra.Command {
	var ticks uint64
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Run the system for a number of ticks and print who held the CPU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ticks") || cfg.StopAfter == 0 {
				cfg.StopAfter = ticks
			}
			return runTrace(cfg, cmd.ErrOrStderr(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Uint64Var(&ticks, "ticks", 1000, "Kernel ticks to run")
	return cmd
}

// runTrace steps a headless system to its stop tick, logging to logw, and
// writes the summary to out.
func runTrace(cfg app.Config, logw, out io.Writer) error {
	if cfg.StopAfter == 0 {
		return fmt.Errorf("%w: trace needs a positive tick count", app.ErrConfig)
	}
	s, err := app.New(hal.NewHost(logw), cfg)
	if err != nil {
		return err
	}
	for {
		err := s.Step()
		if errors.Is(err, hal.ErrHalt) {
			break
		}
		if err != nil {
			return err
		}
	}
	return s.WriteSummary(out)
}
