package scraper

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobmate/aggregator-service/internal/fetch"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/source"
)

// fakeFetcher serves canned HTML per URL. Unknown URLs return a 404 failure.
type fakeFetcher struct {
	mode  fetch.Mode
	pages map[string]string
	fail  map[string]error

	mu        sync.Mutex
	requested []string
	opened    int
	closed    int
}

func newFakeFetcher(mode fetch.Mode) *fakeFetcher {
	return &fakeFetcher{mode: mode, pages: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeFetcher) Mode() fetch.Mode { return f.mode }

func (f *fakeFetcher) Open(context.Context) (fetch.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &fakeSession{f: f}, nil
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

type fakeSession struct{ f *fakeFetcher }

func (s *fakeSession) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	s.f.mu.Lock()
	s.f.requested = append(s.f.requested, url)
	err, failing := s.f.fail[url]
	html, ok := s.f.pages[url]
	s.f.mu.Unlock()

	if failing {
		return nil, err
	}
	if !ok {
		return nil, &fetch.Failure{URL: url, Kind: fetch.KindStatus, StatusCode: 404}
	}
	doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if perr != nil {
		return nil, perr
	}
	return &fetch.Page{
		URL:        url,
		StatusCode: 200,
		Title:      strings.TrimSpace(doc.Find("title").Text()),
		Doc:        doc,
	}, nil
}

func (s *fakeSession) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.closed++
	return nil
}

// board builds a selector adapter whose page URLs are https://<host>/?p=N.
func board(name, host string, scripted bool, pageCap, minResults int) source.Adapter {
	a, err := source.NewSelectorAdapter(source.Descriptor{
		Name:              name,
		URLTemplate:       "https://" + host + "/?q={{q .Role}}&p={{.Page}}",
		LinkSelector:      "a.job",
		RequiresScripting: scripted,
		PageCap:           pageCap,
		MinResults:        minResults,
	})
	if err != nil {
		panic(err)
	}
	return a
}

func pageURL(a source.Adapter, role string, page int) string {
	return a.BuildURL(role, DefaultLocation, page)
}

// listingsHTML renders one a.job link per title under host.
func listingsHTML(host string, offset int, titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Results</title></head><body>")
	for i, t := range titles {
		fmt.Fprintf(&b, `<a class="job" href="https://%s/job/%d?ref=list">%s</a>`, host, offset+i, t)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const emptyHTML = "<html><head><title>Results</title></head><body><p>No jobs</p></body></html>"

// panicAdapter wraps an adapter whose extractor always panics.
type panicAdapter struct{ source.Adapter }

func (panicAdapter) Extract(*goquery.Document) iter.Seq[model.RawListing] {
	return func(func(model.RawListing) bool) { panic("selector exploded") }
}

// sleepRecorder replaces the real sleep and records requested durations.
type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
