// Package reconcile deduplicates extracted lockey candidates and marks each
// against the normalized remote dataset.
package reconcile

import (
	"github.com/lolikgiovi/lockey/pkg/dataset"
	"github.com/lolikgiovi/lockey/pkg/extract"
)

// Candidate is a reconciled lockey: deduplicated, with remote presence.
type Candidate struct {
	Key      string         `json:"key"`
	Status   extract.Status `json:"status"`
	InRemote bool           `json:"inRemote"`
}

// statusPriority ranks confidence: a directly-column-extracted occurrence
// always wins over a heuristically-inferred one.
func statusPriority(s extract.Status) int {
	switch s {
	case extract.StatusPlain:
		return 3
	case extract.StatusStriked:
		return 2
	case extract.StatusUncertain:
		return 1
	default:
		return 0
	}
}

// Reconcile deduplicates candidates by key, keeping the highest-confidence
// status per key (plain > striked > uncertain), and sets InRemote from the
// dataset. A nil dataset marks every candidate absent. Inputs are not
// mutated; first-seen key order is preserved.
func Reconcile(candidates []extract.Candidate, ds *dataset.Dataset) []Candidate {
	order := make([]string, 0, len(candidates))
	best := make(map[string]extract.Status, len(candidates))

	for _, c := range candidates {
		current, seen := best[c.Key]
		if !seen {
			order = append(order, c.Key)
			best[c.Key] = c.Status
			continue
		}
		if statusPriority(c.Status) > statusPriority(current) {
			best[c.Key] = c.Status
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, Candidate{
			Key:      key,
			Status:   best[key],
			InRemote: ds.HasKey(key),
		})
	}
	return out
}

// Summary aggregates reconciled candidates for reporting.
type Summary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`  // plain
	Struck    int `json:"struck"`  // striked
	Uncertain int `json:"uncertain"`
	Present   int `json:"present"` // in remote dataset
	Missing   int `json:"missing"`
}

// Summarize counts candidates per status and remote presence.
func Summarize(candidates []Candidate) Summary {
	var s Summary
	s.Total = len(candidates)
	for _, c := range candidates {
		switch c.Status {
		case extract.StatusPlain:
			s.Active++
		case extract.StatusStriked:
			s.Struck++
		case extract.StatusUncertain:
			s.Uncertain++
		}
		if c.InRemote {
			s.Present++
		} else {
			s.Missing++
		}
	}
	return s
}
