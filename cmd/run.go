package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/app"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/shard"
	"jobmate/aggregator-service/internal/worker"
)

// passSummary totals one `run` invocation.
type passSummary struct {
	Requests  int
	Failed    int
	Succeeded int
	Result    model.BatchResult
}

func newRunCmd() *cobra.Command {
	var roles []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search every role in ROLES at every experience level and store the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("run")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if name := os.Getenv("SHARD"); name != "" {
				log = log.With(zap.String("shard", name))
			}

			if len(roles) == 0 {
				if roles, err = shard.ParseRoles(os.Getenv("ROLES")); err != nil {
					return err
				}
			}
			if len(roles) == 0 {
				roles = shard.DefaultRoles
			}

			ctx := cmd.Context()
			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sum := runPass(ctx, a.Orchestrator, a.Store, shard.Requests(roles, shard.Experiences, ""), log)
			if err := ctx.Err(); err != nil {
				return err
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d requests failed", sum.Failed, sum.Requests)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to search (repeatable, overrides ROLES)")
	return cmd
}

// runPass searches and persists every request in order. A failed request
// is logged and counted; the rest still run.
func runPass(ctx context.Context, s worker.Searcher, p worker.Persister, reqs []model.SearchRequest, log *zap.Logger) passSummary {
	start := time.Now()
	sum := passSummary{Requests: len(reqs)}
	for _, req := range reqs {
		if ctx.Err() != nil {
			sum.Failed += sum.Requests - sum.Succeeded - sum.Failed
			break
		}
		l := log.With(zap.String("role", req.Role), zap.String("experience", req.Experience))

		out, err := s.Search(ctx, req)
		if err != nil {
			l.Error("search failed", zap.Error(err))
			sum.Failed++
			continue
		}
		res, err := p.Upsert(ctx, out.Jobs)
		sum.Result.Add(res)
		if err != nil {
			l.Error("persist failed", zap.Error(err))
			sum.Failed++
			continue
		}
		sum.Succeeded++
		l.Info("request done",
			zap.Int("jobs", out.TotalJobs), zap.Any("per_source", out.PerSourceCount),
			zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated))
	}
	log.Info("pass complete",
		zap.Int("requests", sum.Requests), zap.Int("failed", sum.Failed),
		zap.Int("inserted", sum.Result.Inserted), zap.Int("updated", sum.Result.Updated),
		zap.Duration("took", time.Since(start)))
	return sum
}
