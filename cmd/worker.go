package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmate/aggregator-service/internal/app"
)

func newWorkerCmd() *cobra.Command {
	var watchSources bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain the search request queue, exiting once it stays empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("worker")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if watchSources {
				if err := a.Sources.Watch(ctx, log); err != nil {
					log.Warn("source table hot reload disabled", zap.Error(err))
				}
			}

			// The metrics server lives as long as the loop.
			loopCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(loopCtx)
			g.Go(func() error { return a.Serve(gctx, cfg.MetricsPort) })
			g.Go(func() error {
				defer cancel()
				sum, err := a.NewLoop().Run(gctx)
				log.Info("worker finished",
					zap.Int("processed", sum.Processed), zap.Int("failed", sum.Failed),
					zap.Int("malformed", sum.Malformed), zap.Int("inserted", sum.Inserted),
					zap.Int("updated", sum.Updated))
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&watchSources, "watch-sources", true, "reload SOURCES_FILE when it changes")
	return cmd
}
