package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/metrics"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/source"
)

const (
	DefaultBatchSize       = 4
	DefaultInterBatchDelay = 3 * time.Second
	DefaultLocation        = "United States"
)

// Pager paginates one source. *Paginator implements it.
type Pager interface {
	Run(ctx context.Context, a source.Adapter, role, location string) ([]model.RawListing, model.SourceStats)
}

// Sources yields the source table for one search pass.
type Sources interface {
	Snapshot() []source.Adapter
}

// Options configures an Orchestrator.
type Options struct {
	BatchSize       int
	InterBatchDelay time.Duration
	Location        string // forced on every request
	Country         string // defaults to Location
	DedupPolicy     config.DedupPolicy
}

// Orchestrator runs every source for a request in fixed-size concurrent
// batches and merges the results.
type Orchestrator struct {
	sources Sources
	pager   Pager
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator builds an orchestrator over sources.
func NewOrchestrator(sources Sources, pager Pager, opts Options, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.InterBatchDelay < 0 {
		opts.InterBatchDelay = 0
	}
	if opts.Location == "" {
		opts.Location = DefaultLocation
	}
	if opts.Country == "" {
		opts.Country = opts.Location
	}
	if opts.DedupPolicy == "" {
		opts.DedupPolicy = config.DedupCrossSource
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		sources: sources,
		pager:   pager,
		opts:    opts,
		log:     log.Named("orchestrator"),
		metrics: m,
		sleep:   sleepCtx,
	}
}

// sourceResult is what one source contributed, kept in registry order.
type sourceResult struct {
	listings []model.RawListing
	stats    model.SourceStats
}

// Search runs one search pass for req. A failing source contributes zero
// listings and never affects its siblings. The only error returned is the
// context's, when the pass is cancelled between batches.
func (o *Orchestrator) Search(ctx context.Context, req model.SearchRequest) (model.SearchOutcome, error) {
	adapters := o.sources.Snapshot()
	location := o.opts.Location
	log := o.log.With(zap.String("role", req.Role), zap.String("experience", string(req.Level())))
	log.Info("search started", zap.Int("sources", len(adapters)), zap.Int("batch_size", o.opts.BatchSize))

	results := make([]sourceResult, len(adapters))
	for start := 0; start < len(adapters); start += o.opts.BatchSize {
		if start > 0 {
			if err := o.sleep(ctx, o.opts.InterBatchDelay); err != nil {
				return model.SearchOutcome{}, fmt.Errorf("search %q: %w", req.Role, err)
			}
		}
		end := min(start+o.opts.BatchSize, len(adapters))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = o.runSource(ctx, adapters[i], req.Role, location)
				return nil
			})
		}
		_ = g.Wait()
		log.Debug("batch done", zap.Int("from", start), zap.Int("to", end))
	}

	out := o.merge(req, results)
	log.Info("search done", zap.Int("total_jobs", out.TotalJobs), zap.Any("per_source", out.PerSourceCount))
	return out, nil
}

// runSource isolates one source: a panic is converted into an empty result.
func (o *Orchestrator) runSource(ctx context.Context, a source.Adapter, role, location string) (res sourceResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("source failed", zap.String("source", a.Name()), zap.Any("panic", r))
			res = sourceResult{stats: model.SourceStats{Source: a.Name(), Err: fmt.Sprintf("panic: %v", r)}}
		}
	}()
	listings, stats := o.pager.Run(ctx, a, role, location)
	if stats.Source == "" {
		stats.Source = a.Name()
	}
	return sourceResult{listings: listings, stats: stats}
}

// merge tags, filters and deduplicates the per-source results in registry
// order.
func (o *Orchestrator) merge(req model.SearchRequest, results []sourceResult) model.SearchOutcome {
	matcher := newRoleMatcher(req.Role)
	dedup := NewDeduplicator(o.opts.DedupPolicy)
	level := req.Level()

	out := model.SearchOutcome{
		Jobs:           []model.CanonicalListing{},
		PerSourceCount: make(map[string]int, len(results)),
		Sources:        make([]model.SourceStats, 0, len(results)),
	}
	for _, r := range results {
		name := r.stats.Source
		relevant := 0
		for _, raw := range r.listings {
			if !matcher.match(raw.Title) {
				continue
			}
			relevant++
			l := model.CanonicalListing{
				RawListing:    raw,
				NormalizedURL: NormalizeURL(raw.URL),
				Role:          req.Role,
				Experience:    level,
				Country:       o.opts.Country,
			}
			if dedup.Keep(l) {
				out.Jobs = append(out.Jobs, l)
			}
		}
		r.stats.Relevant = relevant
		out.PerSourceCount[name] = relevant
		out.Sources = append(out.Sources, r.stats)
		o.metrics.Relevant(name, relevant)
	}
	out.TotalJobs = len(out.Jobs)
	return out
}
