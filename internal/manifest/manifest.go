// Package manifest persists discovered filing targets as line-delimited
// JSON so a long bulk run can be resumed or sharded without re-querying
// the upstream.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/edgar-mirror/internal/edgar"
	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

// record is the durable projection of a filing reference: the identity and
// ordering fields only. The primary document is re-derived at download time
// from the filing's own index, so it is deliberately not persisted.
type record struct {
	CIK10       string `json:"cik10"`
	AccessionNo string `json:"accession_no"`
	FilingDate  string `json:"filing_date"`
	Form        string `json:"form"`
}

// Write serializes targets to path, one JSON object per line.
func Write(path string, targets []filing.Reference) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, t := range targets {
		if err := enc.Encode(record{
			CIK10:       t.CIK10,
			AccessionNo: t.AccessionNo,
			FilingDate:  t.FilingDate,
			Form:        t.Form,
		}); err != nil {
			return fmt.Errorf("write manifest line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush manifest %s: %w", path, err)
	}
	return nil
}

// Read parses a manifest back into filing references. Blank, unparsable,
// and accession-less lines are skipped silently; the CIK is re-normalized
// and missing dates/forms fall back to sentinels. The result is re-sorted
// by (date, accession) so replay order matches a fresh discovery.
func Read(path string) ([]filing.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()

	var out []filing.Reference
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.AccessionNo == "" {
			continue
		}
		cik10, err := edgar.NormalizeCIK(rec.CIK10)
		if err != nil {
			continue
		}
		if rec.FilingDate == "" {
			rec.FilingDate = filing.UnknownDate
		}
		if rec.Form == "" {
			rec.Form = filing.Form8K
		}
		out = append(out, filing.Reference{
			CIK10:       cik10,
			AccessionNo: rec.AccessionNo,
			FilingDate:  rec.FilingDate,
			Form:        rec.Form,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return filing.DedupeSort(out), nil
}
