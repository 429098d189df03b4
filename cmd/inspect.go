package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/store"
)

func newStatsCmd() *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored job totals per source and the most recent jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("stats")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			st, err := store.New(pool, log).Stats(ctx, recent)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent jobs to list")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		q         store.Query
		dateRange string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query stored jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("search")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			switch r := store.DateRange(dateRange); r {
			case store.RangeAll, store.Range24h, store.Range7d, store.Range30d:
				q.DateRange = r
			default:
				return fmt.Errorf("invalid --range %q (all, 24h, 7d, 30d)", dateRange)
			}

			ctx := cmd.Context()
			pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			page, err := store.New(pool, log).Search(ctx, q)
			if err != nil {
				return err
			}
			renderPage(cmd.OutOrStdout(), page)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Role, "role", "", "role substring, case-insensitive")
	f.StringVar(&q.Experience, "experience", "", "experience level (Entry, Mid, Senior)")
	f.StringVar(&dateRange, "range", string(store.RangeAll), "scraped within: all, 24h, 7d, 30d")
	f.BoolVar(&q.Oldest, "oldest", false, "oldest first")
	f.IntVar(&q.Page, "page", 1, "page number")
	f.IntVar(&q.Limit, "limit", 12, "jobs per page")
	return cmd
}

func renderStats(w io.Writer, st *store.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Jobs by source")
	t.AppendHeader(table.Row{"Source", "Jobs"})
	for _, sc := range st.BySource {
		t.AppendRow(table.Row{sc.Source, sc.Count})
	}
	t.AppendFooter(table.Row{"Total", st.Total})
	t.Render()

	if len(st.Recent) == 0 {
		return
	}
	r := table.NewWriter()
	r.SetOutputMirror(w)
	r.SetStyle(table.StyleRounded)
	r.SetTitle("Most recent")
	r.AppendHeader(table.Row{"Scraped", "Source", "Role", "Title"})
	for _, j := range st.Recent {
		r.AppendRow(table.Row{j.ScrapedAt.Format(time.DateTime), j.Source, j.Role, j.Title})
	}
	r.Render()
}

func renderPage(w io.Writer, p *store.Page) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Title", "Role", "Level", "Source", "Scraped", "URL"})
	for _, j := range p.Jobs {
		t.AppendRow(table.Row{j.Title, j.Role, j.Experience, j.Source, j.ScrapedAt.Format(time.DateOnly), j.ApplyURL})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("Page %d/%d", p.CurrentPage, p.TotalPages), "", "", "", "", fmt.Sprintf("%d jobs", p.TotalJobs)})
	t.Render()
}
