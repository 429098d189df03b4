//go:build integration

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/testhelpers"
)

func setupPostgres(t *testing.T) *JobStore {
	t.Helper()
	ctx := context.Background()

	ctr, err := testhelpers.StartPostgres(ctx)
	if err != nil {
		t.Skipf("Skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	pool, err := db.NewPostgresPool(ctx, ctr.URL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool, zaptest.NewLogger(t))
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema creation is repeatable")
	return s
}

func TestJobStore_Integration(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	jobs := []model.CanonicalListing{
		job("A", "https://a.test/job/1", "Backend Engineer"),
		job("A", "https://a.test/job/2", "Senior Backend Engineer"),
		job("B", "https://b.test/job/1", "Backend Developer"),
	}

	first, err := s.Upsert(ctx, jobs)
	require.NoError(t, err)
	assert.Equal(t, model.BatchResult{Inserted: 3}, first)

	jobs[0].Title = "Lead Backend Engineer"
	second, err := s.Upsert(ctx, jobs)
	require.NoError(t, err)
	assert.Equal(t, model.BatchResult{Updated: 3, Matched: 3}, second)

	page, err := s.Search(ctx, Query{Role: "backend", Experience: "Mid Level", DateRange: Range24h, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalJobs)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Jobs, 2)
	assert.True(t, page.HasNext)

	st, err := s.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, []SourceCount{{Source: "A", Count: 2}, {Source: "B", Count: 1}}, st.BySource)
	require.Len(t, st.Recent, 3)

	var titles []string
	for _, j := range st.Recent {
		titles = append(titles, j.Title)
	}
	assert.Contains(t, titles, "Lead Backend Engineer")
}

func TestJobStore_ConcurrentUpsertsNeverDuplicate(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	var jobs []model.CanonicalListing
	for i := 0; i < 50; i++ {
		jobs = append(jobs, job("A", fmt.Sprintf("https://a.test/job/%d", i), "Backend Engineer"))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total model.BatchResult
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Upsert(ctx, jobs)
			assert.NoError(t, err)
			mu.Lock()
			total.Add(res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, total.Inserted)
	assert.Equal(t, 150, total.Updated)

	st, err := s.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, st.Total)
}
