package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobmate/aggregator-service/internal/model"
)

const (
	defaultPageLimit = 12
	maxPageLimit     = 100
)

// DateRange restricts a search to recently scraped jobs.
type DateRange string

const (
	RangeAll DateRange = "all"
	Range24h DateRange = "24h"
	Range7d  DateRange = "7d"
	Range30d DateRange = "30d"
)

// since returns the lower scraped_at bound for r, or the zero time.
func (r DateRange) since(now time.Time) time.Time {
	switch r {
	case Range24h:
		return now.AddDate(0, 0, -1)
	case Range7d:
		return now.AddDate(0, 0, -7)
	case Range30d:
		return now.AddDate(0, 0, -30)
	}
	return time.Time{}
}

// Query filters and pages through stored jobs.
type Query struct {
	Role       string // case-insensitive substring
	Experience string // first word is matched case-insensitively
	DateRange  DateRange
	Oldest     bool // sort by scraped_at ascending
	Page       int  // one-based
	Limit      int
}

// Page is one page of search results.
type Page struct {
	Jobs        []model.PersistedJob `json:"jobs"`
	CurrentPage int                  `json:"currentPage"`
	TotalPages  int                  `json:"totalPages"`
	TotalJobs   int                  `json:"totalJobs"`
	Limit       int                  `json:"limit"`
	HasNext     bool                 `json:"hasNextPage"`
	HasPrev     bool                 `json:"hasPrevPage"`
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}
	q.Limit = min(q.Limit, maxPageLimit)
	return q
}

// where builds the WHERE clause and its arguments.
func (q Query) where(now time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if role := strings.TrimSpace(q.Role); role != "" {
		args = append(args, regexp.QuoteMeta(role))
		conds = append(conds, fmt.Sprintf("role ~* $%d", len(args)))
	}
	if fields := strings.Fields(q.Experience); len(fields) > 0 {
		args = append(args, regexp.QuoteMeta(fields[0]))
		conds = append(conds, fmt.Sprintf("experience ~* $%d", len(args)))
	}
	if since := q.DateRange.since(now); !since.IsZero() {
		args = append(args, since)
		conds = append(conds, fmt.Sprintf("scraped_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const jobColumns = `apply_url, title, role, experience, country, source, scraped_at, first_seen_at`

// Search returns one page of jobs matching q, newest first unless q.Oldest.
func (s *JobStore) Search(ctx context.Context, q Query) (*Page, error) {
	q = q.normalized()
	where, args := q.where(s.now().UTC())

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM job_links`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("search count: %w", err)
	}

	order := "DESC"
	if q.Oldest {
		order = "ASC"
	}
	n := len(args)
	sql := fmt.Sprintf(`SELECT %s FROM job_links%s ORDER BY scraped_at %s, id %s LIMIT $%d OFFSET $%d`,
		jobColumns, where, order, order, n+1, n+2)
	jobs, err := s.queryJobs(ctx, sql, append(args, q.Limit, (q.Page-1)*q.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	totalPages := (total + q.Limit - 1) / q.Limit
	return &Page{
		Jobs:        jobs,
		CurrentPage: q.Page,
		TotalPages:  totalPages,
		TotalJobs:   total,
		Limit:       q.Limit,
		HasNext:     q.Page < totalPages,
		HasPrev:     q.Page > 1,
	}, nil
}

// SourceCount is the number of stored jobs of one source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Stats summarizes the table for operators.
type Stats struct {
	Total    int                  `json:"total"`
	BySource []SourceCount        `json:"bySource"`
	Recent   []model.PersistedJob `json:"recent"`
}

// Stats returns the job total, the per-source breakdown and the recent most
// recently scraped jobs.
func (s *JobStore) Stats(ctx context.Context, recent int) (*Stats, error) {
	st := &Stats{BySource: []SourceCount{}}
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM job_links`).Scan(&st.Total); err != nil {
		return nil, fmt.Errorf("stats total: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT source, count(*) FROM job_links GROUP BY source ORDER BY count(*) DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("stats by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Source, &c.Count); err != nil {
			return nil, fmt.Errorf("stats by source scan: %w", err)
		}
		st.BySource = append(st.BySource, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats by source: %w", err)
	}

	if recent > 0 {
		st.Recent, err = s.queryJobs(ctx,
			`SELECT `+jobColumns+` FROM job_links ORDER BY scraped_at DESC, id DESC LIMIT $1`, recent)
		if err != nil {
			return nil, fmt.Errorf("stats recent: %w", err)
		}
	}
	return st, nil
}

func (s *JobStore) queryJobs(ctx context.Context, sql string, args ...any) ([]model.PersistedJob, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]model.PersistedJob, 0)
	for rows.Next() {
		var (
			j   model.PersistedJob
			exp string
		)
		if err := rows.Scan(&j.ApplyURL, &j.Title, &j.Role, &exp, &j.Country, &j.Source, &j.ScrapedAt, &j.FirstSeenAt); err != nil {
			return nil, err
		}
		j.Experience = model.Experience(exp)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
