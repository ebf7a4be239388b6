package ledgerhooks

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
	"ledgerhooks/pkg/server"
)

func newRetryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "retry",
		Short:   "Re-enqueue failed jobs",
		Long:    "Drain the failed sink back onto the normal lane, one shot.",
		Example: "  ledgerhooks retry --limit 50",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := core.NewLogger("retry")
			config, err := core.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			services, err := server.BuildServices(config, logger)
			if err != nil {
				return err
			}
			defer services.Close()

			manager := queue.NewRetryManager(services.Queue, config.Worker.MaxAttempts, logger)
			count, err := manager.RetryFailed(context.Background(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "re-enqueued %d jobs\n", count)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of failed jobs to re-enqueue")
	return cmd
}
