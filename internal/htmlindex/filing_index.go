package htmlindex

import (
	"fmt"
	"io"
	"strings"
)

// DocumentRow is one document entry recovered from a filing's index page.
type DocumentRow struct {
	Filename     string
	DeclaredType string
}

// ParseFilingIndex scans the table marked with the tableFile class and
// returns (filename, declared type) rows. Column positions for "Document"
// and "Type" are taken from the header row because layouts vary across
// years and filers; when no header row is present a fixed 3-column layout
// (document first, type third) is assumed. Index pages sometimes render an
// inline annotation after the filename ("doc.htm iXBRL"), so filenames are
// truncated at the first whitespace.
func ParseFilingIndex(r io.Reader) ([]DocumentRow, error) {
	var rows []DocumentRow

	docCol, typeCol := -1, -1

	st := newTableScanner("tablefile")
	st.onHeaderRow = func(cells []string) {
		for i, c := range cells {
			switch strings.ToLower(strings.TrimSpace(c)) {
			case "document":
				docCol = i
			case "type":
				typeCol = i
			}
		}
	}
	st.onRow = func(cells []string, _ []string) {
		if len(cells) == 0 {
			return
		}
		var doc, typ string
		if docCol >= 0 && typeCol >= 0 {
			if docCol >= len(cells) || typeCol >= len(cells) {
				return
			}
			doc = cells[docCol]
			typ = cells[typeCol]
		} else {
			if len(cells) < 3 {
				return
			}
			doc = cells[0]
			typ = cells[2]
		}

		doc = firstToken(doc)
		if doc == "" || strings.EqualFold(doc, "document") {
			return
		}
		rows = append(rows, DocumentRow{Filename: doc, DeclaredType: strings.TrimSpace(typ)})
	}

	if err := st.scan(r); err != nil {
		return nil, fmt.Errorf("parse filing index page: %w", err)
	}
	return rows, nil
}

// firstToken returns the first whitespace-separated token of s.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
