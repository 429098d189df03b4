// Package model defines shared data structures for the aggregator service.
package model

import (
	"strings"
	"time"
)

// Experience is the seniority bucket attached to a search request.
type Experience string

const (
	ExperienceEntry  Experience = "Entry"
	ExperienceMid    Experience = "Mid"
	ExperienceSenior Experience = "Senior"
	ExperienceAll    Experience = "all"
)

// ParseExperience maps free-form labels ("Mid Level", "senior", "") onto an
// Experience. Only the first word is significant; unknown labels and the
// empty string map to ExperienceAll.
func ParseExperience(label string) Experience {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ExperienceAll
	}
	switch strings.ToLower(fields[0]) {
	case "entry", "junior":
		return ExperienceEntry
	case "mid", "middle", "intermediate":
		return ExperienceMid
	case "senior", "sr", "sr.":
		return ExperienceSenior
	}
	return ExperienceAll
}

// Label returns the human label used by the request producers.
func (e Experience) Label() string {
	if e == ExperienceAll || e == "" {
		return string(ExperienceAll)
	}
	return string(e) + " Level"
}

// SearchRequest is one unit of work on the link request queue.
type SearchRequest struct {
	ID          string    `json:"id,omitempty"`
	Role        string    `json:"role" validate:"required,max=200"`
	Experience  string    `json:"experience,omitempty" validate:"max=64"`
	Location    string    `json:"location,omitempty" validate:"max=128"`
	UserID      string    `json:"userId,omitempty"`
	RequestedAt time.Time `json:"requestedAt,omitempty"`
}

// Level returns the parsed experience bucket of the request.
func (r SearchRequest) Level() Experience { return ParseExperience(r.Experience) }

// RawListing is a listing candidate as extracted from one page of one source.
type RawListing struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observedAt"`
}

// CanonicalListing is a raw listing enriched with the request context.
// NormalizedURL is the dedup key; URL stays the persistence identity.
type CanonicalListing struct {
	RawListing
	NormalizedURL string     `json:"normalizedUrl"`
	Role          string     `json:"role"`
	Experience    Experience `json:"experience"`
	Country       string     `json:"country"`
}

// PersistedJob mirrors a row of the job_links table.
type PersistedJob struct {
	ApplyURL    string     `json:"applyUrl"`
	Title       string     `json:"title"`
	Role        string     `json:"role"`
	Experience  Experience `json:"experience"`
	Country     string     `json:"country"`
	Source      string     `json:"source"`
	ScrapedAt   time.Time  `json:"scrapedAt"`
	FirstSeenAt time.Time  `json:"firstSeenAt"`
}

// SourceStats describes what one source contributed to a search pass.
type SourceStats struct {
	Source   string        `json:"source"`
	Pages    int           `json:"pages"`
	Raw      int           `json:"raw"`
	Relevant int           `json:"relevant"`
	Blocked  bool          `json:"blocked,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SearchOutcome is the merged result of one search pass.
//
// PerSourceCount holds, per source, the number of listings that passed the
// relevance filter, counted before deduplication. TotalJobs is len(Jobs)
// after deduplication.
type SearchOutcome struct {
	Jobs           []CanonicalListing `json:"jobs"`
	PerSourceCount map[string]int     `json:"perSourceCount"`
	TotalJobs      int                `json:"totalJobs"`
	Sources        []SourceStats      `json:"sources,omitempty"`
}

// BatchResult summarizes one upsert call. Matched counts rows that hit an
// existing identity; every matched row is rewritten, so Updated == Matched.
type BatchResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Matched  int `json:"matched"`
	Failed   int `json:"failed"`
}

// Add accumulates another result into r.
func (r *BatchResult) Add(o BatchResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Matched += o.Matched
	r.Failed += o.Failed
}
