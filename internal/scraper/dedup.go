package scraper

import (
	"net/url"
	"strings"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/model"
)

// NormalizeURL returns the dedup key of a listing URL: scheme, host and path
// with userinfo, query string and fragment removed, lower-cased. Unparseable input
// falls back to cutting at the first '?' or '#'.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		u.User = nil
		u.RawQuery = ""
		u.ForceQuery = false
		u.Fragment = ""
		u.RawFragment = ""
		return strings.ToLower(u.String())
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(raw)
}

// Deduplicator drops listings whose normalized URL was already seen in the
// current search pass. The first occurrence wins. It is not safe for
// concurrent use; create one per pass.
type Deduplicator struct {
	policy config.DedupPolicy
	seen   map[string]struct{}
}

// NewDeduplicator returns an empty deduplicator for policy. An unknown
// policy behaves like DedupCrossSource.
func NewDeduplicator(policy config.DedupPolicy) *Deduplicator {
	return &Deduplicator{policy: policy, seen: make(map[string]struct{})}
}

// Keep records l and reports whether it is the first of its key.
func (d *Deduplicator) Keep(l model.CanonicalListing) bool {
	key := l.NormalizedURL
	if key == "" {
		key = NormalizeURL(l.URL)
	}
	if d.policy == config.DedupPerSource {
		key = l.Source + "\x00" + key
	}
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}
