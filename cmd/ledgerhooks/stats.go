package ledgerhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/server"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Print queue statistics",
		Long:    "Print lane and sink sizes for the configured queue as JSON.",
		Example: "  ledgerhooks stats --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := core.NewLogger("stats")
			config, err := core.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			services, err := server.BuildServices(config, logger)
			if err != nil {
				return err
			}
			defer services.Close()

			stats, err := services.Queue.Stats(context.Background())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(map[string]interface{}{
				"queue": services.Queue.Name(),
				"jobs":  stats,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}
