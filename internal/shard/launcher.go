package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel bounds concurrently running shard processes.
const DefaultMaxParallel = 4

// Result is the outcome of one shard process.
type Result struct {
	Shard    string
	ExitCode int
	Err      error
	Duration time.Duration
}

// OK reports whether the shard process succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Launcher runs one subprocess per shard with bounded parallelism. The
// child receives the shard's roles in ROLES and its name in SHARD.
type Launcher struct {
	Exe         string   // binary to run, the current executable when empty
	Args        []string // arguments passed to every child
	MaxParallel int
	Stdout      io.Writer
	Stderr      io.Writer
	Log         *zap.Logger
}

// NewLauncher returns a launcher that re-executes the current binary with
// the `run` command.
func NewLauncher(maxParallel int, log *zap.Logger) *Launcher {
	return &Launcher{
		Args:        []string{"run"},
		MaxParallel: maxParallel,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Log:         log,
	}
}

// Run starts every shard and waits for all of them. A failing shard never
// stops its siblings; results are returned in shard order.
func (l *Launcher) Run(ctx context.Context, shards []Shard) ([]Result, error) {
	exe := l.Exe
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		exe = self
	}
	limit := l.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("launching shards", zap.Int("shards", len(shards)), zap.Int("max_parallel", limit))
	results := make([]Result, len(shards))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, s := range shards {
		g.Go(func() error {
			start := time.Now()
			cmd := exec.CommandContext(ctx, exe, l.Args...)
			cmd.Env = append(os.Environ(), "ROLES="+EncodeRoles(s.Roles), "SHARD="+s.Name)
			cmd.Stdout = l.Stdout
			cmd.Stderr = l.Stderr

			log.Info("shard started", zap.String("shard", s.Name), zap.Int("roles", len(s.Roles)))
			err := cmd.Run()
			res := Result{Shard: s.Name, Err: err, Duration: time.Since(start)}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				res.ExitCode = exitErr.ExitCode()
			}
			if err != nil {
				log.Error("shard failed", zap.String("shard", s.Name), zap.Int("exit_code", res.ExitCode), zap.Error(err))
			} else {
				log.Info("shard completed", zap.String("shard", s.Name), zap.Duration("took", res.Duration))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// Failed counts failed results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// WriteSummary renders results as a table on w.
func WriteSummary(w io.Writer, results []Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Shard", "Status", "Exit", "Duration", "Error"})
	for _, r := range results {
		status, errText := "SUCCESS", ""
		if !r.OK() {
			status, errText = "FAILED", r.Err.Error()
		}
		t.AppendRow(table.Row{r.Shard, status, r.ExitCode, r.Duration.Round(time.Millisecond), errText})
	}
	failed := Failed(results)
	t.AppendFooter(table.Row{"Total", len(results), "", fmt.Sprintf("Success: %d", len(results)-failed), fmt.Sprintf("Failed: %d", failed)})
	t.Render()
}
