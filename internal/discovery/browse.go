package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/filing"
	"github.com/JakeFAU/edgar-mirror/internal/htmlindex"
)

// BrowseListing walks the paginated browse-edgar listing for one company,
// one wanted form type at a time, newest-first. It can reach further back
// in history than some submissions records, at the cost of one request per
// page. Paging stops when a page comes back short, and, when a start-date
// floor is set, as soon as the oldest row on a page predates the floor,
// since newest-first ordering guarantees every subsequent page is older
// still. The floor is zero when no date filtering is wanted.
func (s *Service) BrowseListing(ctx context.Context, cik10 string, includeAmendments bool, floor time.Time) ([]filing.Reference, error) {
	forms := []string{filing.Form8K}
	if includeAmendments {
		forms = append(forms, filing.Form8KAmendment)
	}

	var refs []filing.Reference
	for _, formType := range forms {
		formRefs, err := s.browseForm(ctx, cik10, formType, floor)
		if err != nil {
			return nil, err
		}
		refs = append(refs, formRefs...)
	}
	return filing.DedupeSort(refs), nil
}

func (s *Service) browseForm(ctx context.Context, cik10, formType string, floor time.Time) ([]filing.Reference, error) {
	bases := s.client.Bases()
	var refs []filing.Reference

	for start := 0; ; start += s.pageSize {
		url := bases.BrowseListingURL(cik10, formType, s.pageSize, start)
		page, err := s.client.GetText(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("browse listing page for %s at offset %d: %w", cik10, start, err)
		}
		rows, err := htmlindex.ParseListing(strings.NewReader(page))
		if err != nil {
			return nil, fmt.Errorf("browse listing page for %s at offset %d: %w", cik10, start, err)
		}
		if len(rows) == 0 {
			break
		}

		var oldest time.Time
		haveOldest := false
		for _, row := range rows {
			rowDate, derr := filing.ParseDate(row.FilingDate)
			if derr == nil && (!haveOldest || rowDate.Before(oldest)) {
				oldest = rowDate
				haveOldest = true
			}
			if !floor.IsZero() {
				if derr != nil {
					// A row with an unparsable date cannot be compared to
					// the floor, so it is skipped while a floor is active.
					continue
				}
				if rowDate.Before(floor) {
					continue
				}
			}
			form := row.Form
			if form == "" {
				form = formType
			}
			refs = append(refs, filing.Reference{
				CIK10:       cik10,
				AccessionNo: row.AccessionNo,
				FilingDate:  row.FilingDate,
				Form:        form,
			})
		}

		if !floor.IsZero() && haveOldest && oldest.Before(floor) {
			// Rows are newest-first, so everything past this page predates
			// the floor too.
			s.logger.Debug("browse walk reached the date floor",
				zap.String("cik", cik10),
				zap.String("form", formType),
				zap.Int("offset", start))
			break
		}
		if len(rows) < s.pageSize {
			break
		}
	}
	return refs, nil
}
