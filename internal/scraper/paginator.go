package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/fetch"
	"jobmate/aggregator-service/internal/metrics"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/source"
)

const (
	DefaultDirectMinResults   = 20
	DefaultDirectPageCap      = 5
	DefaultScriptedMinResults = 10
	DefaultScriptedPageCap    = 2
	DefaultInterPageDelay     = 2 * time.Second
)

// Stop reasons reported in logs.
const (
	stopMinResults   = "min_results"
	stopPageCap      = "page_cap"
	stopEmptyPage    = "empty_page"
	stopFetchFailure = "fetch_failure"
	stopCancelled    = "cancelled"
)

// PaginatorConfig holds the pagination limits per fetch mode.
type PaginatorConfig struct {
	DirectMinResults   int
	DirectPageCap      int
	ScriptedMinResults int
	ScriptedPageCap    int
	InterPageDelay     time.Duration
}

func (c *PaginatorConfig) setDefaults() {
	if c.DirectMinResults <= 0 {
		c.DirectMinResults = DefaultDirectMinResults
	}
	if c.DirectPageCap <= 0 {
		c.DirectPageCap = DefaultDirectPageCap
	}
	if c.ScriptedMinResults <= 0 {
		c.ScriptedMinResults = DefaultScriptedMinResults
	}
	if c.ScriptedPageCap <= 0 {
		c.ScriptedPageCap = DefaultScriptedPageCap
	}
	if c.InterPageDelay < 0 {
		c.InterPageDelay = 0
	}
}

// Paginator walks the result pages of one source until enough listings are
// collected, the page cap is hit, a page comes back empty, or a fetch fails.
type Paginator struct {
	direct   fetch.Fetcher
	scripted fetch.Fetcher
	cfg      PaginatorConfig
	log      *zap.Logger
	metrics  *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewPaginator builds a paginator. scripted may be nil, in which case
// sources that require scripting fail to open a session.
func NewPaginator(direct, scripted fetch.Fetcher, cfg PaginatorConfig, log *zap.Logger, m *metrics.Metrics) *Paginator {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Paginator{
		direct:   direct,
		scripted: scripted,
		cfg:      cfg,
		log:      log.Named("paginator"),
		metrics:  m,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// limits resolves the page cap and minimum result count for a.
func (p *Paginator) limits(a source.Adapter) (pageCap, minResults int) {
	if a.RequiresScripting() {
		pageCap, minResults = p.cfg.ScriptedPageCap, p.cfg.ScriptedMinResults
	} else {
		pageCap, minResults = p.cfg.DirectPageCap, p.cfg.DirectMinResults
	}
	if l, ok := a.(source.Limiter); ok {
		c, m := l.Limits()
		if c > 0 {
			pageCap = c
		}
		if m > 0 {
			minResults = m
		}
	}
	return pageCap, minResults
}

func (p *Paginator) fetcherFor(a source.Adapter) (fetch.Fetcher, error) {
	f := p.direct
	if a.RequiresScripting() {
		f = p.scripted
	}
	if f == nil {
		return nil, errors.New("no fetcher configured for source mode")
	}
	return f, nil
}

// Run paginates a. It never returns an error: failures are reported in the
// returned stats and whatever was accumulated before the failure is kept.
// An adapter panic discards the source's listings.
func (p *Paginator) Run(ctx context.Context, a source.Adapter, role, location string) (listings []model.RawListing, stats model.SourceStats) {
	start := p.now()
	stats.Source = a.Name()
	log := p.log.With(zap.String("source", a.Name()), zap.String("role", role))

	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", zap.Any("panic", r), zap.Stack("stack"))
			listings = nil
			stats.Raw = 0
			stats.Err = fmt.Sprintf("panic: %v", r)
		}
		stats.Duration = p.now().Sub(start)
		p.metrics.SourceDone(a.Name(), stats.Duration)
	}()

	f, err := p.fetcherFor(a)
	if err != nil {
		stats.Err = err.Error()
		log.Warn("source skipped", zap.Error(err))
		return nil, stats
	}
	sess, err := f.Open(ctx)
	if err != nil {
		stats.Err = err.Error()
		log.Warn("open fetch session failed", zap.Error(err))
		return nil, stats
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("close fetch session", zap.Error(err))
		}
	}()

	pageCap, minResults := p.limits(a)
	reason := stopPageCap

	for page := 0; page < pageCap; page++ {
		if ctx.Err() != nil {
			reason = stopCancelled
			break
		}

		pageURL := a.BuildURL(role, location, page)
		pg, err := sess.Fetch(ctx, pageURL)
		if err != nil {
			kind := fetch.FailureKind(err)
			p.metrics.FetchFailed(a.Name(), string(kind))
			log.Warn("fetch failed, stopping source",
				zap.Int("page", page), zap.String("url", pageURL), zap.String("kind", string(kind)), zap.Error(err))
			stats.Err = err.Error()
			reason = stopFetchFailure
			break
		}
		stats.Pages++
		p.metrics.PageFetched(a.Name(), string(f.Mode()))

		observed := p.now()
		n := 0
		for l := range a.Extract(pg.Doc) {
			l.Source = a.Name()
			l.ObservedAt = observed
			listings = append(listings, l)
			n++
		}
		p.metrics.Extracted(a.Name(), n)

		if n == 0 {
			if marker, blocked := source.DetectBlock(pg.Title, pg.BodyText()); blocked {
				stats.Blocked = true
				p.metrics.BlockPage(a.Name())
				log.Warn("block page detected", zap.Int("page", page), zap.String("marker", marker))
			}
			reason = stopEmptyPage
			break
		}
		log.Debug("page extracted", zap.Int("page", page), zap.Int("listings", n), zap.Int("total", len(listings)))

		if len(listings) >= minResults {
			reason = stopMinResults
			break
		}
		if page+1 >= pageCap {
			break
		}
		if err := p.sleep(ctx, p.cfg.InterPageDelay); err != nil {
			reason = stopCancelled
			break
		}
	}

	stats.Raw = len(listings)
	log.Info("source done",
		zap.Int("pages", stats.Pages), zap.Int("listings", stats.Raw), zap.String("stop", reason))
	return listings, stats
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
