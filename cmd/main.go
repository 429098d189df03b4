// jobmate-aggregator-service
//
// Aggregates job postings from external job boards into PostgreSQL.
//   - worker   - drains the Redis request queue until it stays empty
//   - run      - one-shot search over ROLES × experience levels
//   - launch   - runs every shard as a separate `run` process
//   - schedule - relaunches the shards on a cron cadence
//   - enqueue  - pushes search requests onto the queue
//   - stats / search - inspect the stored jobs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/app"
	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/logger"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aggregator",
		Short:         "Job posting aggregation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(
		newWorkerCmd(),
		newRunCmd(),
		newLaunchCmd(),
		newScheduleCmd(),
		newEnqueueCmd(),
		newStatsCmd(),
		newSearchCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "aggregator-service version %s\n", app.Version)
			},
		},
	)
	return root
}

// setup loads the configuration and builds the command's logger.
func setup(command string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel,
		zap.String("service", "aggregator-service"),
		zap.String("command", command),
		zap.Int("pid", os.Getpid()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
