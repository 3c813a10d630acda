//go:build !tinygo

// Package cli holds the host command line of ember.
package cli

import (
	"ember/app"

	"github.com/spf13/cobra"
)

var flagConfig string

// NewRootCmd creates the root cobra command for the ember CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ember",
		Short:        "Ember runs a fixed-priority RTOS kernel on a simulated Cortex-M core",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML system description (defaults to the built-in demo)")

	root.AddCommand(
		newRunCmd(),
		newTraceCmd(),
		newProgramsCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig() (app.Config, error) {
	if flagConfig == "" {
		return app.DefaultConfig(), nil
	}
	return app.LoadConfig(flagConfig)
}
