package ledgerhooks

import (
	"github.com/spf13/cobra"

	"ledgerhooks/pkg/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook gateway",
		Long: "Run the HTTP gateway that receives sender webhooks, verifies signatures, and " +
			"enqueues jobs onto the priority queue.",
		Example: "  ledgerhooks serve --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.RunConfig(configPath)
		},
	}
	return cmd
}
