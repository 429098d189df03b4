// Package scheduler wires up the cron job that periodically relaunches the
// shard pipeline.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec runs the pipeline at 05:00 and 17:00.
const DefaultSpec = "0 5,17 * * *"

// Job is one scheduled pipeline run.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron. Overlapping runs are skipped: a tick that
// fires while the previous run is still going does nothing.
type Scheduler struct {
	cron  *cron.Cron
	spec  string
	job   Job
	log   *zap.Logger
	immed bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// RunOnStart also runs the job once, immediately, when Start is called.
func RunOnStart() Option {
	return func(s *Scheduler) { s.immed = true }
}

// New creates a Scheduler that fires job on spec (standard 5-field cron
// syntax or a descriptor such as "@every 6h").
func New(spec string, job Job, log *zap.Logger, opts ...Option) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scheduler")
	cl := cronLogger{log}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec: spec,
		job:  job,
		log:  log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info("cron started", zap.String("spec", s.spec), zap.Time("next", s.cron.Entry(id).Next))

	if s.immed {
		go s.cron.Entry(id).WrappedJob.Run()
	}
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.log.Info("pipeline run started")
	if err := s.job(ctx); err != nil {
		s.log.Error("pipeline run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	s.log.Info("pipeline run complete", zap.Duration("took", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, zap.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
