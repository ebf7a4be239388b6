package ledgerhooks

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
	"ledgerhooks/pkg/server"
	"ledgerhooks/pkg/worker"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker [queue]",
		Short: "Start the job processor",
		Long: "Run the single-consumer worker loop that drains the priority queue, plus a " +
			"periodic retry pass over the failed sink.",
		Example: "  ledgerhooks worker --config config.yaml\n" +
			"  ledgerhooks worker accounting",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(args)
		},
	}
	return cmd
}

func runWorker(args []string) error {
	logger := core.NewLogger("worker")
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(args) > 0 && args[0] != "" {
		config.Queue.Name = args[0]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	services, err := server.BuildServices(config, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	retryManager := queue.NewRetryManager(services.Queue, config.Worker.MaxAttempts, core.NewLogger("retry"))
	scheduler := cron.New()
	retryInterval := time.Duration(config.Worker.RetryIntervalMS) * time.Millisecond
	_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", retryInterval), func() {
		count, err := retryManager.RetryFailed(ctx, config.Worker.RetryLimit)
		if err != nil {
			logger.Printf("retry pass failed: %v", err)
			return
		}
		if count > 0 {
			logger.Printf("retry pass re-enqueued %d jobs", count)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	w := worker.New(services.Queue, services.Dispatcher,
		worker.WithPollInterval(time.Duration(config.Worker.PollIntervalMS)*time.Millisecond),
		worker.WithErrorBackoff(time.Duration(config.Worker.ErrorBackoffMS)*time.Millisecond),
		worker.WithLogger(logger),
	)
	return w.Run(ctx)
}
