package pipeline

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/JakeFAU/edgar-mirror/internal/edgar"
)

// ParseCIKList splits a comma/space/newline separated string of company
// identifiers and normalizes each to its canonical ten-digit form.
func ParseCIKList(s string) ([]string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		cik10, err := edgar.NormalizeCIK(f)
		if err != nil {
			return nil, fmt.Errorf("company identifier %q: %w", f, err)
		}
		out = append(out, cik10)
	}
	return out, nil
}

// resolveCIKs merges the inline list with the optional identifier file and
// drops duplicates, preserving first-seen order.
func resolveCIKs(inline []string, file string) ([]string, error) {
	var raw []string
	for _, s := range inline {
		parsed, err := ParseCIKList(s)
		if err != nil {
			return nil, err
		}
		raw = append(raw, parsed...)
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read cik file: %w", err)
		}
		parsed, err := ParseCIKList(string(data))
		if err != nil {
			return nil, fmt.Errorf("cik file %s: %w", file, err)
		}
		raw = append(raw, parsed...)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, cik := range raw {
		if seen[cik] {
			continue
		}
		seen[cik] = true
		out = append(out, cik)
	}
	return out, nil
}
