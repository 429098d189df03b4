// Package app builds the runtime context shared by every command: store and
// queue connections plus the search pipeline wired on top of them. Handles
// are opened by Open and released by Close; nothing is kept in package
// state.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/fetch"
	"jobmate/aggregator-service/internal/metrics"
	"jobmate/aggregator-service/internal/queue"
	"jobmate/aggregator-service/internal/scraper"
	"jobmate/aggregator-service/internal/source"
	"jobmate/aggregator-service/internal/store"
	"jobmate/aggregator-service/internal/worker"
)

// App holds every long-lived handle of one process.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Pool  *pgxpool.Pool
	Redis *redis.Client
	Store *store.JobStore
	Queue *queue.Queue

	Sources      *source.Registry
	Orchestrator *scraper.Orchestrator
}

// Open connects to PostgreSQL and Redis, ensures the schema and builds the
// search pipeline. Connection failures wrap db.ErrStoreUnavailable or
// db.ErrQueueUnavailable.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	log.Info("connecting to PostgreSQL")
	if a.Pool, err = db.NewPostgresPool(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	log.Info("connecting to Redis")
	if a.Redis, err = db.NewRedisClient(ctx, cfg.RedisURL); err != nil {
		return nil, err
	}

	a.Store = store.New(a.Pool, log, store.WithMetrics(a.Metrics))
	if err = a.Store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", db.ErrStoreUnavailable, err)
	}
	a.Queue = queue.New(a.Redis, cfg.QueueKey)

	if a.Sources, err = source.Open(cfg.SourcesFile); err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	a.Orchestrator = NewPipeline(cfg, a.Sources, log, a.Metrics)
	return a, nil
}

// NewPipeline wires fetchers, paginator and orchestrator for cfg.
func NewPipeline(cfg *config.Config, sources scraper.Sources, log *zap.Logger, m *metrics.Metrics) *scraper.Orchestrator {
	direct := fetch.NewDirect(fetch.DirectOptions{HostRatePerSec: cfg.HostRatePerSec})
	scriptedOpts := fetch.ScriptedOptions{ExecPath: cfg.ChromePath}
	if cfg.ScriptedScroll {
		scriptedOpts.ScrollPasses = 3
	}
	scripted := fetch.NewScripted(scriptedOpts)

	pager := scraper.NewPaginator(direct, scripted, scraper.PaginatorConfig{
		InterPageDelay: cfg.InterPageDelay,
	}, log, m)

	return scraper.NewOrchestrator(sources, pager, scraper.Options{
		BatchSize:       cfg.BatchSize,
		InterBatchDelay: cfg.InterBatchDelay,
		Location:        cfg.ForcedLocation,
		Country:         cfg.Country,
		DedupPolicy:     cfg.DedupPolicy,
	}, log, m)
}

// NewLoop returns a queue worker loop over the app's queue, pipeline and
// store.
func (a *App) NewLoop() *worker.Loop {
	return worker.NewLoop(a.Queue, a.Orchestrator, a.Store, worker.Options{
		EmptyPollLimit:   a.Config.EmptyPollLimit,
		EmptyPollBackoff: a.Config.EmptyPollBackoff,
		InterJobDelay:    a.Config.InterJobDelay,
	}, a.Log, a.Metrics)
}

// Close releases every handle opened by Open. It is safe on a partially
// opened App.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("close redis", zap.Error(err))
		}
		a.Redis = nil
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
}
