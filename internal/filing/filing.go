// Package filing defines the data model shared by discovery, manifests, and
// the download orchestrator.
package filing

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Form labels recognized by the pipeline.
const (
	Form8K          = "8-K"
	Form8KAmendment = "8-K/A"

	// ExhibitTypePrefix marks exhibit rows in a filing's document index.
	ExhibitTypePrefix = "EX-"

	// UnknownDate is the sentinel used when a source omits the filing date.
	// It sorts after every ISO date, which keeps undated rows at the tail.
	UnknownDate = "unknown-date"
)

// Reference identifies one filing discovered for download. It is immutable
// once produced; AccessionNo is the primary key for deduplication while
// FilingDate only orders and filters.
type Reference struct {
	CIK10       string
	AccessionNo string
	FilingDate  string
	Form        string
	// PrimaryDocument may be empty when the discovery source does not carry
	// it; consumers fall back to the filing's own index.
	PrimaryDocument string
}

// ParseDate parses a calendar date in YYYY-MM-DD form, also accepting the
// YYYY/MM/DD variant seen in user input.
func ParseDate(s string) (time.Time, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date (expected YYYY-MM-DD): %q", s)
	}
	return t, nil
}

// WantedForms returns the set of form labels to keep.
func WantedForms(includeAmendments bool) map[string]bool {
	forms := map[string]bool{Form8K: true}
	if includeAmendments {
		forms[Form8KAmendment] = true
	}
	return forms
}

// IsWantedType reports whether a declared document type from a filing index
// matches the base form or its amendment.
func IsWantedType(declared string) bool {
	return declared == Form8K || declared == Form8KAmendment
}

// DedupeSort removes duplicate accession numbers (first occurrence wins)
// and orders the result by (filing date, accession number) ascending, so a
// discovery result set is deterministic across runs and machines.
func DedupeSort(refs []Reference) []Reference {
	seen := make(map[string]bool, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if seen[r.AccessionNo] {
			continue
		}
		seen[r.AccessionNo] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilingDate != out[j].FilingDate {
			return out[i].FilingDate < out[j].FilingDate
		}
		return out[i].AccessionNo < out[j].AccessionNo
	})
	return out
}
