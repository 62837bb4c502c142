package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	targets := []filing.Reference{
		{CIK10: "0000320193", AccessionNo: "0000320193-23-000106", FilingDate: "2023-11-03", Form: "8-K", PrimaryDocument: "aapl.htm"},
		{CIK10: "0001652044", AccessionNo: "0001652044-22-000012", FilingDate: "2022-02-02", Form: "8-K/A"},
	}

	path := filepath.Join(t.TempDir(), "targets.jsonl")
	require.NoError(t, Write(path, targets))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Sorted by (date, accession); identity fields survive, the primary
	// document intentionally does not.
	require.Equal(t, "0001652044-22-000012", got[0].AccessionNo)
	require.Equal(t, "0000320193-23-000106", got[1].AccessionNo)
	require.Equal(t, "0000320193", got[1].CIK10)
	require.Equal(t, "2023-11-03", got[1].FilingDate)
	require.Equal(t, "8-K", got[1].Form)
	require.Empty(t, got[1].PrimaryDocument)
}

func TestRead_SkipsBadLinesAndDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "targets.jsonl")
	content := `{"cik10":"320193","accession_no":"0000320193-23-000106"}
not json at all

{"cik10":"1652044","filing_date":"2022-02-02","form":"8-K"}
{"cik10":"","accession_no":"0000000000-00-000001"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "0000320193", got[0].CIK10)
	require.Equal(t, filing.UnknownDate, got[0].FilingDate)
	require.Equal(t, filing.Form8K, got[0].Form)
}
