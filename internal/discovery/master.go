package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/edgar"
	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

// masterHeaderPrefix is the pipe header that precedes data rows in a
// quarterly master listing.
const masterHeaderPrefix = "CIK|COMPANY NAME|FORM TYPE|DATE FILED|FILENAME"

// headerSearchLimit bounds how many leading lines are scanned for the
// header; the preamble is a short banner.
const headerSearchLimit = 200

var reMasterAccession = regexp.MustCompile(`(?i)\b(\d{10}-\d{2}-\d{6})\.txt\b`)

// MasterIndexOptions configures a bulk quarterly-index scan.
type MasterIndexOptions struct {
	// StartYear is the first year to scan.
	StartYear int
	// Floor drops filings dated before it; zero disables the filter.
	Floor time.Time
	// CIKFilter, when non-empty, keeps only these canonical CIKs.
	CIKFilter map[string]bool
	// IncludeAmendments also keeps the amendment form.
	IncludeAmendments bool
}

// MasterIndex scans every quarterly master listing from StartYear through
// the current quarter and returns the matching filings. A quarter whose
// listing cannot be fetched in either the plain or the gzip variant is
// skipped rather than failing the scan. References carry no primary
// document; download-time resolution derives the document list from each
// filing's own index.
func (s *Service) MasterIndex(ctx context.Context, opts MasterIndexOptions) ([]filing.Reference, error) {
	wanted := filing.WantedForms(opts.IncludeAmendments)
	quarters := quartersThrough(opts.StartYear, s.now())

	var refs []filing.Reference
	for _, yq := range quarters {
		data, err := s.fetchQuarter(ctx, yq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("master index scan: %w", ctx.Err())
			}
			s.logger.Warn("quarter listing unavailable, skipping",
				zap.Int("year", yq.Year),
				zap.Int("quarter", yq.Quarter),
				zap.Error(err))
			continue
		}
		refs = append(refs, parseMasterListing(data, wanted, opts)...)
	}
	return filing.DedupeSort(refs), nil
}

// fetchQuarter retrieves one quarter's master listing, preferring the plain
// text file and falling back to the compressed variant.
func (s *Service) fetchQuarter(ctx context.Context, yq yearQuarter) ([]byte, error) {
	bases := s.client.Bases()
	var lastErr error
	for _, name := range []string{"master.idx", "master.gz"} {
		data, err := s.client.GetBytes(ctx, bases.MasterIndexURL(yq.Year, yq.Quarter, name))
		if err != nil {
			lastErr = err
			continue
		}
		if strings.HasSuffix(name, ".gz") {
			data, err = gunzip(data)
			if err != nil {
				lastErr = err
				continue
			}
		}
		return data, nil
	}
	return nil, lastErr
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip listing: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress listing: %w", err)
	}
	return out, nil
}

func parseMasterListing(data []byte, wanted map[string]bool, opts MasterIndexOptions) []filing.Reference {
	lines := strings.Split(string(data), "\n")

	start := 0
	limit := len(lines)
	if limit > headerSearchLimit {
		limit = headerSearchLimit
	}
	for i := 0; i < limit; i++ {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(lines[i])), masterHeaderPrefix) {
			start = i + 1
			break
		}
	}

	var out []filing.Reference
	for _, line := range lines[start:] {
		if line == "" || !strings.Contains(line, "|") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			continue
		}
		form := strings.TrimSpace(parts[2])
		if !wanted[form] {
			continue
		}

		dateFiled := strings.TrimSpace(parts[3])
		dt, err := filing.ParseDate(dateFiled)
		if err != nil {
			continue
		}
		if !opts.Floor.IsZero() && dt.Before(opts.Floor) {
			continue
		}

		cik10, err := edgar.NormalizeCIK(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		if len(opts.CIKFilter) > 0 && !opts.CIKFilter[cik10] {
			continue
		}

		m := reMasterAccession.FindStringSubmatch(parts[4])
		if m == nil {
			continue
		}

		out = append(out, filing.Reference{
			CIK10:       cik10,
			AccessionNo: m[1],
			FilingDate:  dateFiled,
			Form:        form,
		})
	}
	return out
}
