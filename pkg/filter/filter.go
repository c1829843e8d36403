// Package filter evaluates search criteria against normalized localization
// rows. Matching is purely functional: rows are never mutated and the
// original relative order is preserved.
package filter

import (
	"regexp"
	"strings"

	"github.com/lolikgiovi/lockey/pkg/dataset"
)

// Mode selects which side of a row the query is matched against.
type Mode string

const (
	ModeKey     Mode = "key"
	ModeContent Mode = "content"
)

// Criteria is one immutable filter evaluation. Created per keystroke
// (debounced) by callers.
type Criteria struct {
	Mode      Mode   `json:"mode"`
	Query     string `json:"query"`
	WholeWord bool   `json:"wholeWord"`
	Language  string `json:"language,omitempty"` // optional single-language scope for content mode
}

// Filter returns the rows matching the criteria, order preserved.
func Filter(rows []dataset.Row, languages []string, criteria Criteria) []dataset.Row {
	query := strings.TrimSpace(criteria.Query)
	if query == "" {
		return rows
	}

	switch criteria.Mode {
	case ModeContent:
		return filterContent(rows, languages, query, criteria)
	default:
		return filterKeys(rows, query, criteria.WholeWord)
	}
}

// filterKeys matches the key column against comma-separated fragments.
func filterKeys(rows []dataset.Row, query string, wholeWord bool) []dataset.Row {
	var fragments []string
	var patterns []*regexp.Regexp
	for _, raw := range strings.Split(query, ",") {
		fragment := strings.TrimSpace(raw)
		if fragment == "" {
			continue
		}
		fragments = append(fragments, strings.ToLower(fragment))
		if wholeWord {
			patterns = append(patterns, wholeWordPattern(fragment))
		}
	}
	if len(fragments) == 0 {
		return rows
	}

	matched := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		if matchesAnyFragment(row.Key, fragments, patterns, wholeWord) {
			matched = append(matched, row)
		}
	}
	return matched
}

func matchesAnyFragment(key string, fragments []string, patterns []*regexp.Regexp, wholeWord bool) bool {
	if wholeWord {
		for _, p := range patterns {
			if p.MatchString(key) {
				return true
			}
		}
		return false
	}
	lowerKey := strings.ToLower(key)
	for _, fragment := range fragments {
		if strings.Contains(lowerKey, fragment) {
			return true
		}
	}
	return false
}

// filterContent matches translation values, across all languages or a single
// scoped language.
func filterContent(rows []dataset.Row, languages []string, query string, criteria Criteria) []dataset.Row {
	scope := languages
	if criteria.Language != "" {
		scope = []string{criteria.Language}
	}

	var pattern *regexp.Regexp
	lowerQuery := strings.ToLower(query)
	if criteria.WholeWord {
		pattern = wholeWordPattern(query)
	}

	matched := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		for _, lang := range scope {
			value := row.Value(lang)
			if value == "" {
				continue
			}
			if criteria.WholeWord {
				if pattern.MatchString(value) {
					matched = append(matched, row)
					break
				}
			} else if strings.Contains(strings.ToLower(value), lowerQuery) {
				matched = append(matched, row)
				break
			}
		}
	}
	return matched
}

// wholeWordPattern builds a case-insensitive pattern requiring word
// boundaries at both ends of the literal query. Multi-word queries match as
// a literal phrase. Regex-special characters in the query are escaped first.
func wholeWordPattern(query string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(query) + `\b`)
}
