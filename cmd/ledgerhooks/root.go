package ledgerhooks

import "github.com/spf13/cobra"

// NewRootCmd returns the Cobra entrypoint for the gateway and worker.
func NewRootCmd() *cobra.Command {
	configPath = "config.yaml"
	root := &cobra.Command{
		Use:   "ledgerhooks",
		Short: "Webhook gateway + job processor for accounting events",
		Long: "ledgerhooks ingests payment, commerce, and marketing webhooks, verifies their " +
			"signatures, and converts qualifying events into prioritized jobs processed " +
			"against the accounting ledger.",
		Example: "  ledgerhooks serve --config config.yaml\n" +
			"  ledgerhooks worker --config config.yaml\n" +
			"  ledgerhooks retry --limit 50\n" +
			"  ledgerhooks stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Path to config file")
	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newRetryCmd())
	root.AddCommand(newStatsCmd())
	return root
}

var configPath string
