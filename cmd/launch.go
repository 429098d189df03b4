package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/scheduler"
	"jobmate/aggregator-service/internal/shard"
)

func newLaunchCmd() *cobra.Command {
	var names []string
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Run every shard as a child `run` process and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("launch")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			shards, err := shard.Select(shard.Builtin, names)
			if err != nil {
				return err
			}
			return launch(cmd.Context(), shard.NewLauncher(cfg.MaxParallelShards, log), shards, cmd, log)
		},
	}
	cmd.Flags().StringSliceVar(&names, "shard", nil, "shard to run (repeatable, default all)")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var (
		names []string
		now   bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Launch the shards on the SCHEDULE_SPEC cron cadence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("schedule")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			shards, err := shard.Select(shard.Builtin, names)
			if err != nil {
				return err
			}
			l := shard.NewLauncher(cfg.MaxParallelShards, log)

			var opts []scheduler.Option
			if now {
				opts = append(opts, scheduler.RunOnStart())
			}
			s := scheduler.New(cfg.ScheduleSpec, func(ctx context.Context) error {
				return launch(ctx, l, shards, cmd, log)
			}, log, opts...)

			ctx := cmd.Context()
			if err := s.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			log.Info("shutting down scheduler")
			s.Stop()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "shard", nil, "shard to run (repeatable, default all)")
	cmd.Flags().BoolVar(&now, "now", false, "also launch once at startup")
	return cmd
}

// launch runs shards, prints the summary table and fails when any shard did.
func launch(ctx context.Context, l *shard.Launcher, shards []shard.Shard, cmd *cobra.Command, log *zap.Logger) error {
	results, err := l.Run(ctx, shards)
	if err != nil {
		return err
	}
	shard.WriteSummary(cmd.OutOrStdout(), results)
	if n := shard.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d shards failed", n, len(results))
	}
	log.Info("all shards completed", zap.Int("shards", len(results)))
	return nil
}
