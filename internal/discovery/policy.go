package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

// Source labels which per-company strategy produced a target set.
const (
	SourceSubmissions = "submissions"
	SourceBrowse      = "browse-edgar"
)

// CompanyTargets resolves one company's filings using the cheaper
// submissions record when its declared history reaches the start-date
// floor, and the deeper paginated browse listing otherwise.
//
// The decision rule is deliberately exact: after filtering to the floor,
// the submissions result is trusted iff its earliest surviving filing date
// is on or before the floor. The upstream does not declare its own
// coverage, so this comparison is the only signal that the record is deep
// enough; do not loosen it. With no floor configured the browse walker is
// used directly, since only it is known to cover the full history. A
// submissions walk that fails outright also falls back to the browse
// walker.
func (s *Service) CompanyTargets(ctx context.Context, cik10 string, includeAmendments bool, floor time.Time) ([]filing.Reference, string, error) {
	if floor.IsZero() {
		refs, err := s.BrowseListing(ctx, cik10, includeAmendments, floor)
		return refs, SourceBrowse, err
	}

	subRefs, err := s.Submissions(ctx, cik10, includeAmendments)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		s.logger.Warn("submissions walk failed, falling back to browse listing",
			zap.String("cik", cik10),
			zap.Error(err))
		refs, berr := s.BrowseListing(ctx, cik10, includeAmendments, floor)
		return refs, SourceBrowse, berr
	}

	surviving := filterToFloor(subRefs, floor)
	if earliest, ok := earliestDate(surviving); ok && !earliest.After(floor) {
		s.logger.Debug("submissions record covers the requested range",
			zap.String("cik", cik10),
			zap.Time("earliest", earliest))
		return surviving, SourceSubmissions, nil
	}

	refs, err := s.BrowseListing(ctx, cik10, includeAmendments, floor)
	return refs, SourceBrowse, err
}

// filterToFloor keeps references dated on or after floor. References whose
// date cannot be parsed are kept; they are indistinguishable from in-range
// rows and dropping them would silently lose filings.
func filterToFloor(refs []filing.Reference, floor time.Time) []filing.Reference {
	out := make([]filing.Reference, 0, len(refs))
	for _, r := range refs {
		if dt, err := filing.ParseDate(r.FilingDate); err == nil && dt.Before(floor) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func earliestDate(refs []filing.Reference) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, r := range refs {
		dt, err := filing.ParseDate(r.FilingDate)
		if err != nil {
			continue
		}
		if !found || dt.Before(earliest) {
			earliest = dt
			found = true
		}
	}
	return earliest, found
}
