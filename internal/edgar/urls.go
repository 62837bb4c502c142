package edgar

import "fmt"

// BaseURLs holds the three upstream surfaces the client talks to. Tests
// point all of them at an httptest server.
type BaseURLs struct {
	Data     string
	Archives string
	Browse   string
}

// DefaultBaseURLs returns the production EDGAR endpoints.
func DefaultBaseURLs() BaseURLs {
	return BaseURLs{
		Data:     "https://data.sec.gov",
		Archives: "https://www.sec.gov/Archives",
		Browse:   "https://www.sec.gov/cgi-bin/browse-edgar",
	}
}

// SubmissionsURL returns the primary submissions record for a company.
func (b BaseURLs) SubmissionsURL(cik10 string) string {
	return fmt.Sprintf("%s/submissions/CIK%s.json", b.Data, cik10)
}

// SubmissionsPageURL returns a paged continuation of a submissions record.
func (b BaseURLs) SubmissionsPageURL(name string) string {
	return fmt.Sprintf("%s/submissions/%s", b.Data, name)
}

// BrowseListingURL returns one page of the company filing listing, ordered
// newest-first, filtered to one form type.
func (b BaseURLs) BrowseListingURL(cik10, formType string, count, start int) string {
	return fmt.Sprintf(
		"%s?action=getcompany&CIK=%s&type=%s&owner=exclude&count=%d&start=%d",
		b.Browse, CIKDirSegment(cik10), formType, count, start,
	)
}

// FilingDirURL returns the document directory of one filing.
func (b BaseURLs) FilingDirURL(cik10, accessionNo string) string {
	return fmt.Sprintf(
		"%s/edgar/data/%s/%s",
		b.Archives, CIKDirSegment(cik10), AccessionCompact(accessionNo),
	)
}

// FilingIndexJSONURL returns the machine-readable directory index of one filing.
func (b BaseURLs) FilingIndexJSONURL(cik10, accessionNo string) string {
	return b.FilingDirURL(cik10, accessionNo) + "/index.json"
}

// DocumentURL returns the address of one document inside a filing directory.
func (b BaseURLs) DocumentURL(cik10, accessionNo, filename string) string {
	return b.FilingDirURL(cik10, accessionNo) + "/" + filename
}

// MasterIndexURL returns a quarterly bulk listing file (master.idx or
// master.gz) under the full-index tree.
func (b BaseURLs) MasterIndexURL(year, quarter int, name string) string {
	return fmt.Sprintf("%s/edgar/full-index/%d/QTR%d/%s", b.Archives, year, quarter, name)
}
