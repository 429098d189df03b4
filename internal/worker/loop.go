package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/metrics"
	"jobmate/aggregator-service/internal/model"
)

const (
	DefaultEmptyPollLimit   = 3
	DefaultEmptyPollBackoff = 3 * time.Second
	DefaultInterJobDelay    = 3 * time.Second
)

// ErrLoopExited is returned by Run on a Loop that already exited.
var ErrLoopExited = errors.New("worker: loop already exited")

// Request statuses recorded in metrics.
const (
	statusOK        = "ok"
	statusFailed    = "failed"
	statusMalformed = "malformed"
)

// Queue hands out search requests without blocking. ok reports whether an
// entry was taken off the queue; an entry that could not be decoded is
// returned with ok true and a non-nil error.
type Queue interface {
	Pop(ctx context.Context) (req model.SearchRequest, ok bool, err error)
}

// Searcher runs one search pass.
type Searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (model.SearchOutcome, error)
}

// Persister stores the jobs of a search pass.
type Persister interface {
	Upsert(ctx context.Context, jobs []model.CanonicalListing) (model.BatchResult, error)
}

// Options configures a Loop.
type Options struct {
	EmptyPollLimit   int
	EmptyPollBackoff time.Duration
	InterJobDelay    time.Duration
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// Summary counts what one Run did.
type Summary struct {
	Processed  int // requests taken off the queue, malformed ones included
	Failed     int
	Malformed  int
	EmptyPolls int
	Inserted   int
	Updated    int
}

// Loop pulls one request at a time, searches and persists it, and exits
// once the queue has been empty for EmptyPollLimit consecutive polls.
type Loop struct {
	id        string
	queue     Queue
	searcher  Searcher
	persister Persister
	opts      Options
	log       *zap.Logger
	metrics   *metrics.Metrics
	state     State

	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop builds a Loop.
func NewLoop(q Queue, s Searcher, p Persister, opts Options, log *zap.Logger, m *metrics.Metrics) *Loop {
	if opts.EmptyPollLimit <= 0 {
		opts.EmptyPollLimit = DefaultEmptyPollLimit
	}
	if opts.EmptyPollBackoff < 0 {
		opts.EmptyPollBackoff = 0
	}
	if opts.InterJobDelay < 0 {
		opts.InterJobDelay = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Loop{
		id:        id,
		queue:     q,
		searcher:  s,
		persister: p,
		opts:      opts,
		log:       log.Named("worker").With(zap.String("worker_id", id)),
		metrics:   m,
		state:     StateIdle,
		sleep:     sleepCtx,
	}
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

func (l *Loop) to(next State) {
	if !IsTransitionAllowed(l.state, next) {
		panic(fmt.Sprintf("worker: invalid transition %s -> %s", l.state, next))
	}
	prev := l.state
	l.state = next
	if l.opts.OnTransition != nil {
		l.opts.OnTransition(prev, next)
	}
}

// Run drains the queue. It returns nil once the empty-poll limit is reached
// and ctx.Err() when ctx is cancelled first. A Loop runs once.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	if IsTerminal(l.state) {
		return Summary{}, ErrLoopExited
	}
	var (
		sum   Summary
		empty int
	)
	l.log.Info("worker started", zap.Int("empty_poll_limit", l.opts.EmptyPollLimit))

	for {
		if err := ctx.Err(); err != nil {
			l.to(StateExited)
			l.log.Info("worker cancelled", zap.Int("processed", sum.Processed))
			return sum, err
		}

		l.to(StateDequeuing)
		req, ok, err := l.queue.Pop(ctx)

		if ok {
			empty = 0
			sum.Processed++
			l.to(StateProcessing)
			if err != nil {
				sum.Malformed++
				l.metrics.Request(statusMalformed)
				l.log.Warn("discarding malformed request", zap.Error(err))
			} else {
				res, perr := l.process(ctx, req)
				sum.Inserted += res.Inserted
				sum.Updated += res.Updated
				if perr != nil {
					sum.Failed++
					l.metrics.Request(statusFailed)
					l.log.Error("request failed", zap.String("request_id", req.ID), zap.String("role", req.Role), zap.Error(perr))
				} else {
					l.metrics.Request(statusOK)
				}
			}
			l.to(StateIdle)
			_ = l.sleep(ctx, l.opts.InterJobDelay)
			continue
		}

		if err != nil {
			l.log.Warn("queue pop failed, counting as empty poll", zap.Error(err))
		}
		empty++
		sum.EmptyPolls++
		l.metrics.EmptyPoll()
		if empty >= l.opts.EmptyPollLimit {
			l.to(StateExited)
			l.log.Info("queue empty, worker exiting",
				zap.Int("empty_polls", empty), zap.Int("processed", sum.Processed), zap.Int("failed", sum.Failed))
			return sum, nil
		}
		l.to(StateBackingOff)
		l.log.Debug("queue empty, backing off", zap.Int("empty_polls", empty), zap.Duration("backoff", l.opts.EmptyPollBackoff))
		_ = l.sleep(ctx, l.opts.EmptyPollBackoff)
		l.to(StateIdle)
	}
}

// process searches and persists one request. Panics are converted into
// errors so a single bad request never ends the loop.
func (l *Loop) process(ctx context.Context, req model.SearchRequest) (res model.BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	log := l.log.With(zap.String("request_id", req.ID), zap.String("role", req.Role), zap.String("experience", req.Experience))
	if req.UserID != "" {
		log = log.With(zap.String("user_id", req.UserID))
	}
	log.Info("processing request")
	start := time.Now()

	out, err := l.searcher.Search(ctx, req)
	if err != nil {
		return res, fmt.Errorf("search: %w", err)
	}
	if len(out.Jobs) == 0 {
		log.Info("request done, no jobs found", zap.Any("per_source", out.PerSourceCount), zap.Duration("took", time.Since(start)))
		return res, nil
	}

	res, err = l.persister.Upsert(ctx, out.Jobs)
	log.Info("request done",
		zap.Int("total_jobs", out.TotalJobs), zap.Any("per_source", out.PerSourceCount),
		zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated), zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)))
	if err != nil {
		return res, fmt.Errorf("persist: %w", err)
	}
	return res, nil
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
