// Package htmlindex contains streaming parsers for the two semi-structured
// HTML surfaces EDGAR serves: the browse-edgar company listing and the
// per-filing directory index. Both consume markup incrementally with
// x/net/html's tokenizer and never materialize a document tree, which keeps
// memory flat on pathological historical pages.
package htmlindex

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	reISODate = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	// browse-edgar links to "{accession}-index.htm" (occasionally .html).
	reAccessionIndexHref = regexp.MustCompile(`(?i)\b(\d{10}-\d{2}-\d{6})-index\.htm(l)?\b`)

	wsRun = regexp.MustCompile(`\s+`)
)

// ListingRow is one filing row recovered from a browse-edgar listing page.
type ListingRow struct {
	Form        string
	FilingDate  string
	AccessionNo string
}

// ParseListing scans the table marked with the tableFile2 class and returns
// one row per filing. Rows missing a form label, an ISO date, or an
// accession-index link are discarded, as are header rows.
func ParseListing(r io.Reader) ([]ListingRow, error) {
	var rows []ListingRow

	st := newTableScanner("tablefile2")
	st.onRow = func(cells []string, hrefs []string) {
		if len(cells) == 0 {
			return
		}
		form := strings.TrimSpace(cells[0])
		// The header row reads "Filings" in its first cell.
		if form == "" || strings.EqualFold(form, "filings") {
			return
		}

		var date string
		for _, c := range cells {
			if m := reISODate.FindString(c); m != "" {
				date = m
				break
			}
		}

		var accession string
		for _, h := range hrefs {
			if m := reAccessionIndexHref.FindStringSubmatch(h); m != nil {
				accession = m[1]
				break
			}
		}

		if date == "" || accession == "" {
			return
		}
		rows = append(rows, ListingRow{Form: form, FilingDate: date, AccessionNo: accession})
	}

	if err := st.scan(r); err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}
	return rows, nil
}

// tableScanner walks tokens and accumulates cell text and link targets for
// each row of a table whose class attribute contains classMarker.
type tableScanner struct {
	classMarker string
	onRow       func(cells []string, hrefs []string)
	// onHeaderRow, when set, receives rows that contained a th cell instead
	// of onRow.
	onHeaderRow func(cells []string)
}

func newTableScanner(classMarker string) *tableScanner {
	return &tableScanner{classMarker: classMarker}
}

func (s *tableScanner) scan(r io.Reader) error {
	z := html.NewTokenizer(r)

	var (
		inTable  bool
		inRow    bool
		inCell   bool
		rowHasTH bool
		cellText strings.Builder
		cells    []string
		hrefs    []string
	)

	endCell := func() {
		if !inCell {
			return
		}
		inCell = false
		cells = append(cells, strings.TrimSpace(wsRun.ReplaceAllString(cellText.String(), " ")))
	}
	endRow := func() {
		if !inRow {
			return
		}
		endCell()
		inRow = false
		if rowHasTH && s.onHeaderRow != nil {
			s.onHeaderRow(cells)
		} else {
			s.onRow(cells, hrefs)
		}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			endRow()
			return nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Table:
				if strings.Contains(strings.ToLower(attr(tok, "class")), s.classMarker) {
					inTable = true
				}
			case atom.Tr:
				if inTable {
					endRow()
					inRow = true
					rowHasTH = false
					cells = cells[:0]
					hrefs = hrefs[:0]
				}
			case atom.Td, atom.Th:
				if inRow {
					endCell()
					inCell = true
					cellText.Reset()
					if tok.DataAtom == atom.Th {
						rowHasTH = true
					}
				}
			case atom.A:
				if inCell {
					if href := attr(tok, "href"); href != "" {
						hrefs = append(hrefs, href)
					}
				}
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Table:
				if inTable {
					endRow()
					inTable = false
				}
			case atom.Tr:
				endRow()
			case atom.Td, atom.Th:
				endCell()
			}

		case html.TextToken:
			if inCell {
				cellText.Write(z.Text())
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
