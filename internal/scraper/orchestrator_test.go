package scraper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/fetch"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/source"
)

// stubPager returns canned listings per source and tracks concurrency.
type stubPager struct {
	listings map[string][]model.RawListing
	panics   map[string]bool
	hold     time.Duration

	inFlight  atomic.Int32
	maxFlight atomic.Int32

	mu        sync.Mutex
	locations []string
}

func (p *stubPager) Run(_ context.Context, a source.Adapter, _, location string) ([]model.RawListing, model.SourceStats) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		cur := p.maxFlight.Load()
		if n <= cur || p.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	p.mu.Lock()
	p.locations = append(p.locations, location)
	p.mu.Unlock()
	time.Sleep(p.hold)

	if p.panics[a.Name()] {
		panic("adapter blew up")
	}
	ls := p.listings[a.Name()]
	return ls, model.SourceStats{Source: a.Name(), Pages: 1, Raw: len(ls)}
}

func raw(src, url, title string) model.RawListing {
	return model.RawListing{URL: url, Title: title, Source: src}
}

func newTestOrchestrator(t *testing.T, adapters []source.Adapter, pager Pager, opts Options) (*Orchestrator, *sleepRecorder) {
	t.Helper()
	o := NewOrchestrator(source.NewRegistry(adapters), pager, opts, zaptest.NewLogger(t), nil)
	rec := &sleepRecorder{}
	o.sleep = rec.sleep
	return o, rec
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	a := board("A", "a.test", false, 0, 0)
	b := board("B", "b.test", false, 0, 0)

	f := newFakeFetcher(fetch.ModeDirect)
	f.pages[pageURL(a, role, 0)] = listingsHTML("a.test", 0,
		"Senior Backend Engineer", "Backend Developer", "Software Engineer II",
		"Marketing Specialist", "Sales Associate")
	f.pages[pageURL(a, role, 1)] = emptyHTML
	f.fail[pageURL(b, role, 0)] = &fetch.Failure{URL: pageURL(b, role, 0), Kind: fetch.KindNetwork}

	p, _ := newTestPaginator(t, f, nil, PaginatorConfig{}, nil)
	o, _ := newTestOrchestrator(t, []source.Adapter{a, b}, p, Options{})

	out, err := o.Search(context.Background(), model.SearchRequest{
		Role: "Backend Engineer", Experience: "Mid Level", Location: "United States",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalJobs)
	assert.Len(t, out.Jobs, 3)
	assert.Equal(t, map[string]int{"A": 3, "B": 0}, out.PerSourceCount)

	for _, j := range out.Jobs {
		assert.Equal(t, "A", j.Source)
		assert.Equal(t, "Backend Engineer", j.Role)
		assert.Equal(t, model.ExperienceMid, j.Experience)
		assert.Equal(t, "United States", j.Country)
		assert.NotContains(t, j.NormalizedURL, "?")
	}

	require.Len(t, out.Sources, 2)
	assert.Equal(t, 5, out.Sources[0].Raw)
	assert.Equal(t, 3, out.Sources[0].Relevant)
	assert.NotEmpty(t, out.Sources[1].Err)
	assert.Equal(t, 2, f.closed, "every session is closed")
}

func TestOrchestrator_IsolatesPanickingSource(t *testing.T) {
	adapters := []source.Adapter{
		board("Good1", "g1.test", false, 0, 0),
		board("Broken", "broken.test", false, 0, 0),
		board("Good2", "g2.test", false, 0, 0),
	}
	pager := &stubPager{
		listings: map[string][]model.RawListing{
			"Good1":  {raw("Good1", "https://g1.test/1", "Backend Engineer")},
			"Broken": {raw("Broken", "https://broken.test/1", "Backend Engineer")},
			"Good2":  {raw("Good2", "https://g2.test/1", "Backend Engineer"), raw("Good2", "https://g2.test/2", "Go Engineer")},
		},
		panics: map[string]bool{"Broken": true},
	}
	o, _ := newTestOrchestrator(t, adapters, pager, Options{BatchSize: 3})

	out, err := o.Search(context.Background(), model.SearchRequest{Role: role})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Good1": 1, "Broken": 0, "Good2": 2}, out.PerSourceCount)
	assert.Equal(t, 3, out.TotalJobs)
	assert.Contains(t, out.Sources[1].Err, "adapter blew up")
}

func TestOrchestrator_BatchesAreBounded(t *testing.T) {
	var adapters []source.Adapter
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("S%d", i)
		adapters = append(adapters, board(name, name+".test", false, 0, 0))
	}
	pager := &stubPager{hold: 20 * time.Millisecond}
	o, rec := newTestOrchestrator(t, adapters, pager, Options{BatchSize: 2, InterBatchDelay: 3 * time.Second})

	out, err := o.Search(context.Background(), model.SearchRequest{Role: role})
	require.NoError(t, err)

	assert.LessOrEqual(t, pager.maxFlight.Load(), int32(2))
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, rec.calls)
	assert.Len(t, out.PerSourceCount, 5)
	assert.Equal(t, 0, out.TotalJobs)
	assert.NotNil(t, out.Jobs)
}

func TestOrchestrator_DedupPolicy(t *testing.T) {
	adapters := []source.Adapter{board("A", "a.test", false, 0, 0), board("B", "b.test", false, 0, 0)}
	listings := map[string][]model.RawListing{
		"A": {
			raw("A", "https://x.com/job/1?utm=a", "Backend Engineer"),
			raw("A", "https://x.com/job/1?utm=b", "Backend Engineer"),
		},
		"B": {raw("B", "https://x.com/job/1?utm=c", "Backend Engineer")},
	}

	tests := []struct {
		policy config.DedupPolicy
		want   int
	}{
		{config.DedupCrossSource, 1},
		{config.DedupPerSource, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			o, _ := newTestOrchestrator(t, adapters, &stubPager{listings: listings}, Options{DedupPolicy: tt.policy})
			out, err := o.Search(context.Background(), model.SearchRequest{Role: role})
			require.NoError(t, err)

			assert.Equal(t, tt.want, out.TotalJobs)
			assert.Equal(t, map[string]int{"A": 2, "B": 1}, out.PerSourceCount)
			assert.Equal(t, "https://x.com/job/1?utm=a", out.Jobs[0].URL, "first occurrence wins")
		})
	}
}

func TestOrchestrator_ForcesLocation(t *testing.T) {
	pager := &stubPager{}
	o, _ := newTestOrchestrator(t, []source.Adapter{board("A", "a.test", false, 0, 0)}, pager, Options{})

	_, err := o.Search(context.Background(), model.SearchRequest{Role: role, Location: "Paris"})
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultLocation}, pager.locations)
}

func TestOrchestrator_CancelledBetweenBatches(t *testing.T) {
	adapters := []source.Adapter{board("A", "a.test", false, 0, 0), board("B", "b.test", false, 0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	o, _ := newTestOrchestrator(t, adapters, &stubPager{}, Options{BatchSize: 1})
	o.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := o.Search(ctx, model.SearchRequest{Role: role})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_NoSources(t *testing.T) {
	o, rec := newTestOrchestrator(t, nil, &stubPager{}, Options{})
	out, err := o.Search(context.Background(), model.SearchRequest{Role: role})
	require.NoError(t, err)
	assert.Equal(t, 0, out.TotalJobs)
	assert.Empty(t, out.PerSourceCount)
	assert.Zero(t, rec.count())
}
