// Package source describes the external job boards the aggregator searches.
//
// Every board is a Descriptor (URL template plus CSS selectors) turned into
// a SelectorAdapter. Boards are data, not code: the registry is a tagged list
// loaded from the built-in table or a YAML file.
package source

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"text/template"

	"github.com/PuerkitoBio/goquery"

	"jobmate/aggregator-service/internal/model"
)

// Adapter builds page URLs for one source and extracts listings from its pages.
// Implementations are stateless and safe for concurrent use.
type Adapter interface {
	Name() string
	// BuildURL is pure: the same arguments always yield the same URL.
	BuildURL(role, location string, page int) string
	// Extract never fails; malformed or unexpected markup yields no listings.
	Extract(doc *goquery.Document) iter.Seq[model.RawListing]
	RequiresScripting() bool
}

// Limiter is implemented by adapters that override the paginator's
// page cap or minimum result count. Zero values mean "use the default".
type Limiter interface {
	Limits() (pageCap, minResults int)
}

// Descriptor is the configuration of one source.
type Descriptor struct {
	Name              string   `yaml:"name"`
	URLTemplate       string   `yaml:"url"`
	BaseURL           string   `yaml:"base_url"`
	LinkSelector      string   `yaml:"link_selector"`
	TitleSelector     string   `yaml:"title_selector,omitempty"`
	UnwrapParam       string   `yaml:"unwrap_param,omitempty"`
	URLKeywords       []string `yaml:"url_keywords,omitempty"`
	MaxResults        int      `yaml:"max_results,omitempty"`
	RequiresScripting bool     `yaml:"requires_scripting,omitempty"`
	PageCap           int      `yaml:"page_cap,omitempty"`
	MinResults        int      `yaml:"min_results,omitempty"`
	Disabled          bool     `yaml:"disabled,omitempty"`
}

// urlParams is the data passed to a URL template.
type urlParams struct {
	Role     string
	Location string
	Page     int // zero-based
	PageNum  int // one-based
}

var templateFuncs = template.FuncMap{
	"q":    url.QueryEscape,
	"slug": slug,
	"mul":  func(a, b int) int { return a * b },
}

func slug(s string) string {
	return url.PathEscape(strings.Join(strings.Fields(strings.ToLower(s)), "-"))
}

// SelectorAdapter is the generic CSS-selector driven Adapter.
type SelectorAdapter struct {
	desc Descriptor
	tmpl *template.Template
	base *url.URL
}

// NewSelectorAdapter validates d and compiles its URL template.
func NewSelectorAdapter(d Descriptor) (*SelectorAdapter, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("source: name is required")
	}
	if d.URLTemplate == "" {
		return nil, fmt.Errorf("source %s: url is required", d.Name)
	}
	if d.LinkSelector == "" {
		return nil, fmt.Errorf("source %s: link_selector is required", d.Name)
	}

	tmpl, err := template.New(d.Name).Funcs(templateFuncs).Option("missingkey=error").Parse(d.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("source %s: parse url template: %w", d.Name, err)
	}

	a := &SelectorAdapter{desc: d, tmpl: tmpl}
	if d.BaseURL != "" {
		base, err := url.Parse(d.BaseURL)
		if err != nil || base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("source %s: invalid base_url %q", d.Name, d.BaseURL)
		}
		a.base = base
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, urlParams{Role: "probe", Location: "probe", PageNum: 1}); err != nil {
		return nil, fmt.Errorf("source %s: execute url template: %w", d.Name, err)
	}
	return a, nil
}

func (a *SelectorAdapter) Name() string { return a.desc.Name }

func (a *SelectorAdapter) RequiresScripting() bool { return a.desc.RequiresScripting }

func (a *SelectorAdapter) Limits() (pageCap, minResults int) {
	return a.desc.PageCap, a.desc.MinResults
}

// BuildURL renders the URL template. The template was probed at construction,
// so execution errors cannot occur for well-formed input.
func (a *SelectorAdapter) BuildURL(role, location string, page int) string {
	var buf bytes.Buffer
	_ = a.tmpl.Execute(&buf, urlParams{Role: role, Location: location, Page: page, PageNum: page + 1})
	return buf.String()
}

// Extract yields one listing per matched link, lazily, in document order.
func (a *SelectorAdapter) Extract(doc *goquery.Document) iter.Seq[model.RawListing] {
	return func(yield func(model.RawListing) bool) {
		if doc == nil {
			return
		}
		links := doc.Find(a.desc.LinkSelector)
		emitted := 0
		for i := range links.Nodes {
			if a.desc.MaxResults > 0 && emitted >= a.desc.MaxResults {
				return
			}
			sel := links.Eq(i)
			href, ok := sel.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				continue
			}
			link, ok := a.resolve(href)
			if !ok {
				continue
			}
			emitted++
			if !yield(model.RawListing{URL: link, Title: a.title(sel), Source: a.desc.Name}) {
				return
			}
		}
	}
}

func (a *SelectorAdapter) resolve(href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if a.base != nil {
		ref = a.base.ResolveReference(ref)
	}
	if a.desc.UnwrapParam != "" {
		if target := ref.Query().Get(a.desc.UnwrapParam); target != "" {
			if u, err := url.Parse(target); err == nil {
				ref = u
			}
		}
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}

	link := ref.String()
	if len(a.desc.URLKeywords) > 0 {
		lower := strings.ToLower(link)
		matched := false
		for _, kw := range a.desc.URLKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if !matched {
			return "", false
		}
	}
	return link, true
}

func (a *SelectorAdapter) title(sel *goquery.Selection) string {
	if a.desc.TitleSelector != "" {
		if t := collapse(sel.Find(a.desc.TitleSelector).First().Text()); t != "" {
			return t
		}
	}
	return collapse(sel.Text())
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }
