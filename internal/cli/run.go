//go:build !tinygo

package cli

import (
	"context"
	"errors"

	"ember/app"
	"ember/hal"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		headless bool
		hz       int
		ticks    uint64
		budget   int
		stop     uint64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the system in a window or headless",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("stop-after") {
				cfg.StopAfter = stop
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if !headless {
				return hal.RunWindow(app.StepFunc(cfg), budget)
			}
			err = hal.RunHeadless(cmd.Context(), app.StepFunc(cfg), hal.HeadlessConfig{
				Hz:         hz,
				Ticks:      ticks,
				StepBudget: budget,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without a window")
	cmd.Flags().IntVar(&hz, "hz", 60, "Host frame rate")
	cmd.Flags().Uint64Var(&ticks, "frames", 0, "Stop after N host frames in headless mode (0 = run until halt)")
	cmd.Flags().IntVar(&budget, "budget", 1, "System steps per host frame")
	cmd.Flags().Uint64Var(&stop, "stop-after", 0, "Halt after N kernel ticks (0 = never)")
	return cmd
}
