package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/edgar-mirror/internal/config"
	"github.com/JakeFAU/edgar-mirror/internal/download"
	"github.com/JakeFAU/edgar-mirror/internal/edgar"
	"github.com/JakeFAU/edgar-mirror/internal/filing"
	"github.com/JakeFAU/edgar-mirror/internal/manifest"
)

// lineCollector captures progress lines for assertions.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *lineCollector) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

func baseOptions(srvURL, outDir string) Options {
	return Options{
		Contact:      "Mirror Test test@example.com",
		Mode:         config.ModeCIK,
		OutputDir:    outDir,
		DownloadMode: download.ModeAll,
		Workers:      2,
		MaxAttempts:  2,
		Bases: edgar.BaseURLs{
			Data:     srvURL,
			Archives: srvURL,
			Browse:   srvURL,
		},
	}
}

func submissionsDoc(accessions, dates, forms, primaries []string) string {
	payload, _ := json.Marshal(map[string]any{
		"cik": "320193",
		"filings": map[string]any{
			"recent": map[string]any{
				"accessionNumber": accessions,
				"filingDate":      dates,
				"form":            forms,
				"primaryDocument": primaries,
			},
		},
	})
	return string(payload)
}

// serveFilingDir answers index.json and document fetches for one filing.
func serveFilingDir(mux *http.ServeMux, cik10, accessionNo string, docs ...string) {
	dir := fmt.Sprintf("/edgar/data/%s/%s/",
		edgar.CIKDirSegment(cik10), edgar.AccessionCompact(accessionNo))
	type item struct {
		Name string `json:"name"`
	}
	items := make([]item, 0, len(docs))
	for _, d := range docs {
		items = append(items, item{Name: d})
	}
	indexJSON, _ := json.Marshal(map[string]any{
		"directory": map[string]any{"item": items},
	})
	mux.HandleFunc(dir, func(w http.ResponseWriter, r *http.Request) {
		if filepath.Base(r.URL.Path) == "index.json" {
			w.Write(indexJSON)
			return
		}
		fmt.Fprintf(w, "body of %s", filepath.Base(r.URL.Path))
	})
}

func TestRun_CompanyModeDownloadsTargets(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submissionsDoc(
			[]string{"0000320193-23-000106", "0000320193-23-000077", "0000320193-23-000064"},
			[]string{"2023-11-03", "2023-08-04", "2023-07-01"},
			[]string{"8-K", "8-K", "10-Q"},
			[]string{"a.htm", "b.htm", "q.htm"},
		))
	})
	serveFilingDir(mux, "0000320193", "0000320193-23-000106", "a.htm", "ex1.htm")
	serveFilingDir(mux, "0000320193", "0000320193-23-000077", "b.htm")

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out := t.TempDir()
	opts := baseOptions(srv.URL, out)
	opts.CIKs = []string{"320193"}
	// The earliest surviving submissions row sits exactly on the floor, so
	// the cheap submissions walk is trusted and browse is never consulted.
	opts.StartDate = "2023-08-04"

	collector := &lineCollector{}
	sum, err := Run(context.Background(), opts, collector.add)
	require.NoError(t, err)

	require.Equal(t, 2, sum.OK)
	require.Zero(t, sum.Failed)
	require.Equal(t, 2, sum.TotalTargets)
	require.Equal(t, 1, sum.CompaniesTotal)
	require.Equal(t, 1, sum.CompaniesDone)
	require.Zero(t, sum.CompaniesFailed)
	require.Equal(t, out, sum.OutputDir)

	require.FileExists(t, filepath.Join(out,
		"0000320193", "2023-11-03_0000320193-23-000106", "a.htm"))
	require.FileExists(t, filepath.Join(out,
		"0000320193", "2023-11-03_0000320193-23-000106", "ex1.htm"))
	require.FileExists(t, filepath.Join(out,
		"0000320193", "2023-08-04_0000320193-23-000077", "b.htm"))

	lines := collector.joined()
	require.Contains(t, lines, "[1/1] 0000320193 SCAN start")
	require.Contains(t, lines, "targets=2 source=submissions")
	require.Contains(t, lines, "COMPANY_DONE ok=2 failed=0")
}

func TestRun_CompanyModeScanFailureIsIsolated(t *testing.T) {
	t.Parallel()

	// First company 404s on both discovery surfaces; the second serves one
	// clean filing through the browse listing (no date floor is set).
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "getcompany" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("CIK") != "789019" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<table class="tableFile2">
<tr><th>Filings</th><th>Format</th><th>Date</th></tr>
<tr><td>8-K</td><td><a href="/Archives/edgar/data/789019/000078901923000001/0000789019-23-000001-index.htm">Documents</a></td><td>2023-05-01</td></tr>
</table>`)
	})
	serveFilingDir(mux, "0000789019", "0000789019-23-000001", "msft8k.htm")

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out := t.TempDir()
	opts := baseOptions(srv.URL, out)
	opts.CIKs = []string{"320193, 789019"}

	collector := &lineCollector{}
	sum, err := Run(context.Background(), opts, collector.add)
	require.NoError(t, err)

	require.Equal(t, 1, sum.OK)
	require.Zero(t, sum.Failed)
	require.Equal(t, 2, sum.CompaniesTotal)
	require.Equal(t, 1, sum.CompaniesDone)
	require.Equal(t, 1, sum.CompaniesFailed)
	require.Contains(t, collector.joined(), "scan failed for 0000320193")
}

func TestRun_CompanyModeDownloadFailureMarksCompanyFailed(t *testing.T) {
	t.Parallel()

	// Discovery succeeds through the browse listing, but the filing's
	// directory never answers, so every download attempt exhausts retries.
	// The company still counts as done, and as failed.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "getcompany" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<table class="tableFile2">
<tr><th>Filings</th><th>Format</th><th>Date</th></tr>
<tr><td>8-K</td><td><a href="/Archives/edgar/data/320193/000032019323000106/0000320193-23-000106-index.htm">Documents</a></td><td>2023-11-03</td></tr>
</table>`)
	})
	mux.HandleFunc("/edgar/data/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out := t.TempDir()
	opts := baseOptions(srv.URL, out)
	opts.CIKs = []string{"320193"}

	sum, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	require.Zero(t, sum.OK)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, sum.TotalTargets)
	require.Equal(t, 1, sum.CompaniesTotal)
	require.Equal(t, 1, sum.CompaniesDone)
	require.Equal(t, 1, sum.CompaniesFailed)
}

const masterListing = `Description: Master Index of EDGAR Dissemination Feed
Last Data Received: March 31, 2025

CIK|COMPANY NAME|FORM TYPE|DATE FILED|FILENAME
--------------------------------------------------
320193|Apple Inc.|8-K|2025-02-01|edgar/data/320193/0000320193-25-000010.txt
320193|Apple Inc.|10-K|2025-02-02|edgar/data/320193/0000320193-25-000011.txt
789019|Microsoft Corp|8-K|2025-03-01|edgar/data/789019/0000789019-25-000020.txt
`

func TestRun_MasterIndexManifestOnly(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/edgar/full-index/2025/QTR1/master.idx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, masterListing)
	})
	mux.HandleFunc("/edgar/data/", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out := t.TempDir()
	manifestPath := filepath.Join(out, "targets.jsonl")
	opts := baseOptions(srv.URL, out)
	opts.Mode = config.ModeMasterIndex
	opts.MasterStartYear = 2025
	opts.ManifestPath = manifestPath
	opts.ManifestOnly = true

	collector := &lineCollector{}
	sum, err := Run(context.Background(), opts, collector.add)
	require.NoError(t, err)

	require.Zero(t, sum.OK)
	require.Zero(t, sum.Failed)
	require.Equal(t, 2, sum.TotalTargets)
	require.Zero(t, downloads.Load(), "manifest-only run must not touch filing directories")

	refs, err := manifest.Read(manifestPath)
	require.NoError(t, err)
	require.Equal(t, []string{"0000320193-25-000010", "0000789019-25-000020"},
		[]string{refs[0].AccessionNo, refs[1].AccessionNo})
	require.Contains(t, collector.joined(), "manifest only")
}

func TestRun_MasterIndexReusesManifest(t *testing.T) {
	t.Parallel()

	var indexFetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/edgar/full-index/", func(w http.ResponseWriter, r *http.Request) {
		indexFetches.Add(1)
		http.NotFound(w, r)
	})
	serveFilingDir(mux, "0000320193", "0000320193-25-000010", "doc.htm")

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out := t.TempDir()
	manifestPath := filepath.Join(out, "targets.jsonl")
	require.NoError(t, manifest.Write(manifestPath, []filing.Reference{{
		CIK10:       "0000320193",
		AccessionNo: "0000320193-25-000010",
		FilingDate:  "2025-02-01",
		Form:        filing.Form8K,
	}}))

	opts := baseOptions(srv.URL, out)
	opts.Mode = config.ModeMasterIndex
	opts.MasterStartYear = 2025
	opts.ManifestPath = manifestPath
	opts.ReuseManifest = true

	sum, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	require.Equal(t, 1, sum.OK)
	require.Zero(t, sum.Failed)
	require.Equal(t, 1, sum.TotalTargets)
	require.Zero(t, indexFetches.Load(), "reused manifest must skip the quarterly scan")
	require.FileExists(t, filepath.Join(out,
		"0000320193", "2025-02-01_0000320193-25-000010", "doc.htm"))
}

func TestDefaultManifestPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, filepath.Join("out", "master_index_8k_targets_all_all.jsonl"),
		defaultManifestPath("out", "", ""))
	require.Equal(t, filepath.Join("out", "master_index_8k_targets_2015-01-01_2_8.jsonl"),
		defaultManifestPath("out", "2015/01/01", "2/8"))
}

func TestParseCIKList(t *testing.T) {
	t.Parallel()

	ciks, err := ParseCIKList("320193, 0000789019\nAAPL-1018724;  ")
	require.NoError(t, err)
	require.Equal(t, []string{"0000320193", "0000789019", "0001018724"}, ciks)

	_, err = ParseCIKList("no-digits-here")
	require.Error(t, err)
}

func TestResolveCIKsMergesFileAndDedupes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "ciks.txt")
	require.NoError(t, os.WriteFile(file, []byte("789019\n320193 1018724"), 0o600))

	ciks, err := resolveCIKs([]string{"320193"}, file)
	require.NoError(t, err)
	require.Equal(t, []string{"0000320193", "0000789019", "0001018724"}, ciks)
}
