package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/store"
)

type fakeSearcher struct {
	fail map[string]bool
	seen []string
}

func (f *fakeSearcher) Search(_ context.Context, req model.SearchRequest) (model.SearchOutcome, error) {
	f.seen = append(f.seen, req.Role+"/"+req.Experience)
	if f.fail[req.Role] {
		return model.SearchOutcome{}, errors.New("boom")
	}
	job := model.CanonicalListing{RawListing: model.RawListing{URL: "https://x.test/" + req.Role, Source: "x"}}
	return model.SearchOutcome{Jobs: []model.CanonicalListing{job}, TotalJobs: 1, PerSourceCount: map[string]int{"x": 1}}, nil
}

type fakePersister struct{ calls int }

func (f *fakePersister) Upsert(_ context.Context, jobs []model.CanonicalListing) (model.BatchResult, error) {
	f.calls++
	if f.calls == 1 {
		return model.BatchResult{Inserted: len(jobs)}, nil
	}
	return model.BatchResult{Updated: len(jobs), Matched: len(jobs)}, nil
}

func TestRunPassCountsFailuresAndContinues(t *testing.T) {
	s := &fakeSearcher{fail: map[string]bool{"Broken": true}}
	p := &fakePersister{}
	reqs := []model.SearchRequest{
		{Role: "Go", Experience: "Entry Level"},
		{Role: "Broken", Experience: "Entry Level"},
		{Role: "Rust", Experience: "Entry Level"},
	}

	sum := runPass(context.Background(), s, p, reqs, zap.NewNop())

	assert.Equal(t, 3, sum.Requests)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, model.BatchResult{Inserted: 1, Updated: 1, Matched: 1}, sum.Result)
	assert.Len(t, s.seen, 3)
	assert.Equal(t, 2, p.calls)
}

func TestRunPassStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSearcher{}

	sum := runPass(ctx, s, &fakePersister{}, []model.SearchRequest{{Role: "Go"}, {Role: "Rust"}}, zap.NewNop())

	assert.Empty(t, s.seen)
	assert.Equal(t, 2, sum.Failed)
	assert.Zero(t, sum.Succeeded)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"worker", "run", "launch", "schedule", "enqueue", "stats", "search", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "aggregator-service version")
}

func TestRenderStats(t *testing.T) {
	var out bytes.Buffer
	renderStats(&out, &store.Stats{
		Total:    7,
		BySource: []store.SourceCount{{Source: "remoteok", Count: 5}, {Source: "indeed", Count: 2}},
		Recent: []model.PersistedJob{{
			Title: "Go Developer", Role: "Backend Developer", Source: "remoteok",
			ScrapedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
	})

	s := out.String()
	assert.Contains(t, s, "remoteok")
	assert.Contains(t, s, "indeed")
	assert.Contains(t, s, "Go Developer")
	assert.Contains(t, s, "2026-01-02 03:04:05")
}

func TestRenderStatsWithoutRecent(t *testing.T) {
	var out bytes.Buffer
	renderStats(&out, &store.Stats{})
	assert.NotContains(t, out.String(), "Most recent")
}

func TestRenderPage(t *testing.T) {
	var out bytes.Buffer
	renderPage(&out, &store.Page{
		Jobs:        []model.PersistedJob{{Title: "SRE", ApplyURL: "https://jobs.test/1", Source: "indeed"}},
		CurrentPage: 1,
		TotalPages:  3,
		TotalJobs:   25,
	})

	s := out.String()
	assert.Contains(t, s, "https://jobs.test/1")
	assert.Contains(t, s, "PAGE 1/3")
	assert.Contains(t, s, "25 JOBS")
}
