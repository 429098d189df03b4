// Package fetch retrieves search result pages for source adapters, either
// with a plain HTTP request (direct mode) or through a headless browser
// (scripted mode). Fetchers never retry; the caller decides what a failure
// means for pagination.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Mode selects the retrieval strategy for a source.
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModeScripted Mode = "scripted"
)

// Fetcher opens retrieval sessions. One session is opened per source
// pagination run and must be closed by the caller.
type Fetcher interface {
	Mode() Mode
	Open(ctx context.Context) (Session, error)
}

// Session fetches pages. Pages of one session are fetched sequentially.
type Session interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Close() error
}

// Page is a parsed document snapshot.
type Page struct {
	URL        string
	StatusCode int
	Title      string
	Doc        *goquery.Document
}

// BodyText returns the visible text of the page, trimmed.
func (p *Page) BodyText() string {
	if p == nil || p.Doc == nil {
		return ""
	}
	return strings.TrimSpace(p.Doc.Find("body").Text())
}

// Kind classifies a fetch failure.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindNetwork Kind = "network"
	KindStatus  Kind = "status"
	KindParse   Kind = "parse"
)

// Failure is returned for every unsuccessful fetch.
type Failure struct {
	URL        string
	Kind       Kind
	StatusCode int
	Cause      error
}

func (f *Failure) Error() string {
	switch {
	case f.Kind == KindStatus:
		return fmt.Sprintf("fetch %s: HTTP status %d", f.URL, f.StatusCode)
	case f.Cause != nil:
		return fmt.Sprintf("fetch %s: %s: %v", f.URL, f.Kind, f.Cause)
	default:
		return fmt.Sprintf("fetch %s: %s", f.URL, f.Kind)
	}
}

func (f *Failure) Unwrap() error { return f.Cause }

// FailureKind returns the Kind of a *Failure anywhere in err's chain, or
// KindNetwork for any other error.
func FailureKind(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindNetwork
}

func newFailure(url string, err error) *Failure {
	return &Failure{URL: url, Kind: classify(err), Cause: err}
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// checkStatus fails every non-2xx document status.
func checkStatus(url string, code int) error {
	if code < 200 || code > 299 {
		return &Failure{URL: url, Kind: KindStatus, StatusCode: code}
	}
	return nil
}

func parse(url string, status int, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &Failure{URL: url, Kind: KindParse, Cause: err}
	}
	return &Page{
		URL:        url,
		StatusCode: status,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		Doc:        doc,
	}, nil
}
