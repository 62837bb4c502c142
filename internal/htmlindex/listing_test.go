package htmlindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const listingPage = `
<html><body>
<table class="tableFile2" summary="Results">
 <tr>
  <th>Filings</th><th>Format</th><th>Description</th><th>Filing Date</th><th>File/Film Number</th>
 </tr>
 <tr>
  <td nowrap="nowrap">8-K</td>
  <td nowrap="nowrap"><a href="/Archives/edgar/data/320193/000032019323000106/0000320193-23-000106-index.htm">Documents</a></td>
  <td>Current report</td>
  <td>2023-11-03</td>
  <td>001-36743</td>
 </tr>
 <tr>
  <td nowrap="nowrap">8-K/A</td>
  <td nowrap="nowrap"><a href="/Archives/edgar/data/320193/000032019322000059/0000320193-22-000059-index.html">Documents</a></td>
  <td>Amended current report</td>
  <td>2022-05-02</td>
  <td>001-36743</td>
 </tr>
 <tr>
  <td>8-K</td>
  <td><a href="/cgi-bin/browse-edgar?action=getcompany">Documents</a></td>
  <td>Row without an accession link is discarded</td>
  <td>2021-01-01</td>
 </tr>
</table>
<table class="other"><tr><td>8-K</td><td><a href="/x/0000000000-00-000000-index.htm">no</a></td><td>2020-01-01</td></tr></table>
</body></html>`

func TestParseListing(t *testing.T) {
	t.Parallel()

	rows, err := ParseListing(strings.NewReader(listingPage))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, ListingRow{
		Form:        "8-K",
		FilingDate:  "2023-11-03",
		AccessionNo: "0000320193-23-000106",
	}, rows[0])
	require.Equal(t, ListingRow{
		Form:        "8-K/A",
		FilingDate:  "2022-05-02",
		AccessionNo: "0000320193-22-000059",
	}, rows[1])
}

func TestParseListing_MalformedMarkup(t *testing.T) {
	t.Parallel()

	// Truncated rows and stray tags must not abort the scan.
	page := `<table class="tableFile2">
	<tr><td>8-K<td><a href="/a/0000000001-20-000001-index.htm">d</a><td>2020-03-04
	<tr><td></td></tr>
	<tr><td>8-K</td></tr>`
	rows, err := ParseListing(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "0000000001-20-000001", rows[0].AccessionNo)
	require.Equal(t, "2020-03-04", rows[0].FilingDate)
}

func TestParseListing_EmptyPage(t *testing.T) {
	t.Parallel()

	rows, err := ParseListing(strings.NewReader("<html><body>No matching filings.</body></html>"))
	require.NoError(t, err)
	require.Empty(t, rows)
}
