package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenqi/lumen-core/pkg/core"
	"github.com/lumenqi/lumen-core/pkg/llm"
)

type statsOutput struct {
	core.Stats
	Health map[core.Source]llm.HealthStatus `json:"health,omitempty"`
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var health bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the adaptive state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			companion, err := flags.openCompanion()
			if err != nil {
				return err
			}
			defer companion.Close()

			out := statsOutput{Stats: companion.GetStats()}
			if health {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				out.Health = companion.Health(ctx)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&health, "health", false, "probe model sources that support health checks")
	return cmd
}

func newEvolveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "evolve",
		Short: "Run one evolution cycle and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			companion, err := flags.openCompanion()
			if err != nil {
				return err
			}
			defer companion.Close()

			report, err := companion.ForceEvolutionCycle(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
