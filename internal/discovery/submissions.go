package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

// submissionsColumns mirrors the columnar arrays of a submissions record.
// Field arrays are parallel; rows beyond the shortest array are ignored.
type submissionsColumns struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

type submissionsRecord struct {
	Filings struct {
		Recent submissionsColumns `json:"recent"`
		Files  []struct {
			Name string `json:"name"`
		} `json:"files"`
	} `json:"filings"`
}

// Submissions walks a company's primary submissions record plus every paged
// continuation it references, filters to the wanted form types, and returns
// a deduplicated date-ordered reference list. This source carries the
// declared primary document, which the download step can use directly.
func (s *Service) Submissions(ctx context.Context, cik10 string, includeAmendments bool) ([]filing.Reference, error) {
	bases := s.client.Bases()
	var root submissionsRecord
	if err := s.client.GetJSON(ctx, bases.SubmissionsURL(cik10), &root); err != nil {
		return nil, fmt.Errorf("submissions record for %s: %w", cik10, err)
	}

	wanted := filing.WantedForms(includeAmendments)
	refs := collectColumns(cik10, root.Filings.Recent, wanted)

	for _, page := range root.Filings.Files {
		if page.Name == "" {
			continue
		}
		var cont submissionsRecord
		if err := s.client.GetJSON(ctx, bases.SubmissionsPageURL(page.Name), &cont); err != nil {
			return nil, fmt.Errorf("submissions page %s for %s: %w", page.Name, cik10, err)
		}
		refs = append(refs, collectColumns(cik10, cont.Filings.Recent, wanted)...)
	}

	s.logger.Debug("submissions walk complete",
		zap.String("cik", cik10),
		zap.Int("pages", len(root.Filings.Files)+1),
		zap.Int("matches", len(refs)))
	return filing.DedupeSort(refs), nil
}

func collectColumns(cik10 string, cols submissionsColumns, wanted map[string]bool) []filing.Reference {
	n := len(cols.Form)
	for _, l := range []int{len(cols.AccessionNumber), len(cols.FilingDate), len(cols.PrimaryDocument)} {
		if l < n {
			n = l
		}
	}
	var out []filing.Reference
	for i := 0; i < n; i++ {
		form := cols.Form[i]
		if !wanted[form] {
			continue
		}
		acc := cols.AccessionNumber[i]
		if acc == "" {
			continue
		}
		date := cols.FilingDate[i]
		if date == "" {
			date = filing.UnknownDate
		}
		out = append(out, filing.Reference{
			CIK10:           cik10,
			AccessionNo:     acc,
			FilingDate:      date,
			Form:            form,
			PrimaryDocument: cols.PrimaryDocument[i],
		})
	}
	return out
}
