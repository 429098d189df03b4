// Package scraper runs one search request across every registered source:
// it paginates each board, tags and filters the listings, and merges them
// into a single deduplicated outcome.
package scraper

import (
	"strings"
	"unicode"
)

// stopWords never count towards a relevance match.
var stopWords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "in": {}, "at": {}, "for": {}, "a": {},
	"an": {}, "of": {}, "inc": {}, "corp": {}, "llc": {}, "company": {},
}

// Tokenize lower-cases s, drops every character that is neither a letter,
// a digit nor whitespace, and splits on whitespace. Stop words and
// single-character tokens are discarded.
func Tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)

	fields := strings.Fields(cleaned)
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsRelevant reports whether at least one token of role appears among the
// tokens of title. A title or role without tokens is never relevant.
func IsRelevant(title, role string) bool {
	return newRoleMatcher(role).match(title)
}

// roleMatcher caches the role token set for repeated checks in one pass.
type roleMatcher map[string]struct{}

func newRoleMatcher(role string) roleMatcher {
	m := roleMatcher{}
	for _, t := range Tokenize(role) {
		m[t] = struct{}{}
	}
	return m
}

func (m roleMatcher) match(title string) bool {
	if len(m) == 0 {
		return false
	}
	for _, t := range Tokenize(title) {
		if _, ok := m[t]; ok {
			return true
		}
	}
	return false
}
