package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/queue"
	"jobmate/aggregator-service/internal/shard"
)

func newEnqueueCmd() *cobra.Command {
	var (
		roles       []string
		experiences []string
		location    string
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Push search requests for roles × experience levels onto the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("enqueue")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if len(roles) == 0 {
				if roles, err = shard.ParseRoles(os.Getenv("ROLES")); err != nil {
					return err
				}
			}
			if len(roles) == 0 {
				roles = shard.DefaultRoles
			}
			if len(experiences) == 0 {
				experiences = shard.Experiences
			}

			ctx := cmd.Context()
			rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			q := queue.New(rdb, cfg.QueueKey)
			reqs := shard.Requests(roles, experiences, location)
			for _, req := range reqs {
				if err := q.Push(ctx, req); err != nil {
					return fmt.Errorf("enqueue %q: %w", req.Role, err)
				}
			}
			depth, err := q.Len(ctx)
			if err != nil {
				return err
			}
			log.Info("requests enqueued", zap.Int("pushed", len(reqs)), zap.Int64("depth", depth), zap.String("queue", q.Key()))
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d requests on %s (depth %d)\n", len(reqs), q.Key(), depth)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to enqueue (repeatable, overrides ROLES)")
	cmd.Flags().StringSliceVar(&experiences, "experience", nil, "experience label (repeatable, default all levels)")
	cmd.Flags().StringVar(&location, "location", "", "location hint carried on each request")
	return cmd
}
