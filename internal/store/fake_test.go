package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB emulates the job_links upsert on top of pgx.Batch.QueuedQueries
// and single-row QueryRow. Each batch is applied atomically, like the
// implicit transaction pgx uses.
type fakeDB struct {
	mu       sync.Mutex
	rows     map[string][]any // apply_url -> queued arguments of the stored row
	failURL  string
	batches  int
	rowCalls int
	execSQL  []string
}

func newFakeDB() *fakeDB { return &fakeDB{rows: map[string][]any{}} }

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execSQL = append(f.execSQL, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDB: Query not supported")
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rowCalls++

	url := args[0].(string)
	if url == f.failURL {
		return fakeRow{err: errors.New("ERROR: simulated constraint failure (SQLSTATE 23514)")}
	}
	row := append([]any(nil), args...)
	prev, existed := f.rows[url]
	if existed {
		keepFirstSighting(row, prev)
	}
	f.rows[url] = row
	return fakeRow{inserted: !existed}
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++

	staged := make(map[string][]any)
	var results []fakeRow
	failed := false
	for _, q := range b.QueuedQueries {
		url := q.Arguments[0].(string)
		if url == f.failURL {
			results = append(results, fakeRow{err: errors.New("ERROR: simulated constraint failure (SQLSTATE 23514)")})
			failed = true
			break
		}
		_, existed := f.rows[url]
		_, stagedBefore := staged[url]
		row := append([]any(nil), q.Arguments...)
		if prev, ok := f.rows[url]; ok && !stagedBefore {
			keepFirstSighting(row, prev)
		} else if prev, ok := staged[url]; ok {
			keepFirstSighting(row, prev)
		}
		staged[url] = row
		results = append(results, fakeRow{inserted: !existed && !stagedBefore})
	}
	if !failed {
		for url, row := range staged {
			f.rows[url] = row
		}
	}
	return &fakeBatchResults{rows: results}
}

// keepFirstSighting copies country, source and first_seen_at from prev.
func keepFirstSighting(row, prev []any) {
	row[4] = prev[4]
	row[5] = prev[5]
	row[7] = prev[7]
}

func (f *fakeDB) stored(url string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[url]
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeRow struct {
	inserted bool
	err      error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.inserted
	return nil
}

type fakeBatchResults struct {
	rows []fakeRow
	next int
}

func (b *fakeBatchResults) QueryRow() pgx.Row {
	if b.next >= len(b.rows) {
		return fakeRow{err: errors.New("batch already closed")}
	}
	r := b.rows[b.next]
	b.next++
	return r
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r := b.QueryRow().(fakeRow)
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) {
	return nil, errors.New("fakeBatchResults: Query not supported")
}

func (b *fakeBatchResults) Close() error { return nil }
