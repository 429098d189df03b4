// Package store persists aggregated job links in PostgreSQL.
//
// The apply URL is the identity of a job: job_links carries a UNIQUE
// constraint on it and every write is an INSERT ... ON CONFLICT upsert, so
// concurrent workers can never create two rows for the same URL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"jobmate/aggregator-service/internal/metrics"
	"jobmate/aggregator-service/internal/model"
)

// DefaultChunkSize is the number of rows sent per pgx batch.
const DefaultChunkSize = 100

// ErrEmptyApplyURL is reported for listings without a URL.
var ErrEmptyApplyURL = errors.New("listing has no apply url")

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ─── Store ───────────────────────────────────────────────────────────────────

// JobStore reads and writes the job_links table.
type JobStore struct {
	db        DB
	chunkSize int
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a JobStore.
type Option func(*JobStore)

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(s *JobStore) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithMetrics records persisted row counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *JobStore) { s.metrics = m }
}

// New returns a JobStore over db.
func New(db DB, log *zap.Logger, opts ...Option) *JobStore {
	if log == nil {
		log = zap.NewNop()
	}
	s := &JobStore{db: db, chunkSize: DefaultChunkSize, log: log.Named("store"), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS job_links (
	id            BIGSERIAL PRIMARY KEY,
	apply_url     TEXT        NOT NULL,
	title         TEXT        NOT NULL DEFAULT '',
	role          TEXT        NOT NULL DEFAULT '',
	experience    TEXT        NOT NULL DEFAULT 'all',
	country       TEXT        NOT NULL DEFAULT '',
	source        TEXT        NOT NULL DEFAULT '',
	scraped_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT job_links_apply_url_key UNIQUE (apply_url)
);
CREATE INDEX IF NOT EXISTS job_links_scraped_at_idx ON job_links (scraped_at DESC);
CREATE INDEX IF NOT EXISTS job_links_source_idx ON job_links (source);
`

// EnsureSchema creates the job_links table and its indexes if missing.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// upsertSQL keeps source, country and first_seen_at from the first sighting.
// xmax is 0 only for a freshly inserted row version.
const upsertSQL = `
INSERT INTO job_links (apply_url, title, role, experience, country, source, scraped_at, first_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (apply_url) DO UPDATE
SET title      = EXCLUDED.title,
    role       = EXCLUDED.role,
    experience = EXCLUDED.experience,
    scraped_at = EXCLUDED.scraped_at
RETURNING (xmax = 0) AS inserted`

// Upsert writes jobs keyed by their original URL. Jobs are grouped by
// source and sent in chunks. Each record is atomic: a chunk that fails as a
// batch is replayed row by row, so only the bad rows count in Failed. The
// row errors are joined into the returned error.
func (s *JobStore) Upsert(ctx context.Context, jobs []model.CanonicalListing) (model.BatchResult, error) {
	var (
		total model.BatchResult
		errs  []error
	)
	scrapedAt := s.now().UTC()

	for _, group := range groupBySource(jobs) {
		for start := 0; start < len(group.jobs); start += s.chunkSize {
			chunk := group.jobs[start:min(start+s.chunkSize, len(group.jobs))]
			res, err := s.upsertChunk(ctx, chunk, scrapedAt)
			total.Add(res)
			if err != nil {
				s.log.Warn("upsert chunk failed",
					zap.String("source", group.source), zap.Int("offset", start), zap.Int("rows", len(chunk)), zap.Error(err))
				errs = append(errs, fmt.Errorf("upsert %s[%d:%d]: %w", group.source, start, start+len(chunk), err))
			}
		}
	}

	s.metrics.Persisted(total.Inserted, total.Updated, total.Failed)
	s.log.Info("upsert done",
		zap.Int("jobs", len(jobs)), zap.Int("inserted", total.Inserted),
		zap.Int("updated", total.Updated), zap.Int("failed", total.Failed))
	return total, errors.Join(errs...)
}

func (s *JobStore) upsertChunk(ctx context.Context, chunk []model.CanonicalListing, scrapedAt time.Time) (model.BatchResult, error) {
	var (
		res   model.BatchResult
		errs  []error
		rows  [][]any
		batch = &pgx.Batch{}
	)
	for _, j := range chunk {
		if j.URL == "" {
			res.Failed++
			errs = append(errs, ErrEmptyApplyURL)
			continue
		}
		args := []any{j.URL, j.Title, j.Role, string(j.Experience), j.Country, j.Source, scrapedAt}
		rows = append(rows, args)
		batch.Queue(upsertSQL, args...)
	}
	if batch.Len() == 0 {
		return res, errors.Join(errs...)
	}

	br := s.db.SendBatch(ctx, batch)
	var inserted, updated int
	var batchErr error
	for range batch.Len() {
		var isNew bool
		if err := br.QueryRow().Scan(&isNew); err != nil {
			batchErr = err
			break
		}
		if isNew {
			inserted++
		} else {
			updated++
		}
	}
	if err := br.Close(); err != nil && batchErr == nil {
		batchErr = err
	}

	// The batch runs as one implicit transaction, so a single bad row rolls
	// back the whole chunk. Replay it row by row to isolate the failure.
	if batchErr != nil {
		s.log.Warn("batch upsert failed, retrying rows individually",
			zap.Int("rows", len(rows)), zap.Error(batchErr))
		inserted, updated = 0, 0
		for _, args := range rows {
			var isNew bool
			if err := s.db.QueryRow(ctx, upsertSQL, args...).Scan(&isNew); err != nil {
				res.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", args[0], err))
				continue
			}
			if isNew {
				inserted++
			} else {
				updated++
			}
		}
	}

	res.Inserted = inserted
	res.Updated = updated
	res.Matched = updated
	return res, errors.Join(errs...)
}

type sourceGroup struct {
	source string
	jobs   []model.CanonicalListing
}

// groupBySource keeps the first-appearance order of sources and jobs.
func groupBySource(jobs []model.CanonicalListing) []sourceGroup {
	idx := make(map[string]int)
	var groups []sourceGroup
	for _, j := range jobs {
		i, ok := idx[j.Source]
		if !ok {
			i = len(groups)
			idx[j.Source] = i
			groups = append(groups, sourceGroup{source: j.Source})
		}
		groups[i].jobs = append(groups[i].jobs, j)
	}
	return groups
}
