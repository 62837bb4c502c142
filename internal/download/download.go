// Package download mirrors each filing's document set to local storage: it
// resolves the per-filing document list according to the configured
// selection mode, fetches every selected document through the shared
// resilient client, and fans filings out across a bounded worker pool.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/edgar"
	"github.com/JakeFAU/edgar-mirror/internal/filing"
	"github.com/JakeFAU/edgar-mirror/internal/htmlindex"
	"github.com/JakeFAU/edgar-mirror/internal/metrics"
)

// Mode selects which documents of a filing are mirrored.
type Mode string

// Supported selection modes.
const (
	// ModeAll mirrors every entry of the filing's directory index.
	ModeAll Mode = "all"
	// ModePrimaryExhibitsHTM mirrors the primary document plus HTML
	// exhibits, HTML files only.
	ModePrimaryExhibitsHTM Mode = "primary_ex_htm"
	// ModeFormExhibits mirrors the form document(s) and every exhibit,
	// regardless of extension.
	ModeFormExhibits Mode = "8k_ex"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAll, ModePrimaryExhibitsHTM, ModeFormExhibits:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown download mode %q", s)
}

// Config controls Downloader behavior.
type Config struct {
	OutputDir    string
	Mode         Mode
	SaveManifest bool
}

// Downloader mirrors filings into the output tree.
type Downloader struct {
	client *edgar.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Downloader.
func New(client *edgar.Client, cfg Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{client: client, cfg: cfg, logger: logger}
}

// directoryIndex mirrors the filing's machine-readable index.json.
type directoryIndex struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

// Filing mirrors one filing's selected documents into
// {out}/{cik}/{date}_{accession}/ and returns the number of files
// attempted. Individual documents already on disk are skipped inside the
// client; a 404 on one document never fails the filing.
func (d *Downloader) Filing(ctx context.Context, ref filing.Reference) (int, error) {
	start := time.Now()
	baseDir := filepath.Join(d.cfg.OutputDir, ref.CIK10, ref.FilingDate+"_"+ref.AccessionNo)
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return 0, fmt.Errorf("create filing dir: %w", err)
	}

	if d.cfg.SaveManifest && d.cfg.Mode == ModeAll {
		if err := d.writeFilingManifest(baseDir, ref); err != nil {
			return 0, err
		}
	}

	names, err := d.selectDocuments(ctx, ref)
	if err != nil {
		return 0, err
	}

	bases := d.client.Bases()
	count := 0
	for _, name := range names {
		url := bases.DocumentURL(ref.CIK10, ref.AccessionNo, name)
		if _, err := d.client.DownloadFile(ctx, url, filepath.Join(baseDir, name)); err != nil {
			return count, fmt.Errorf("document %s: %w", name, err)
		}
		count++
		metrics.ObserveDocumentDownloaded()
	}

	metrics.ObserveFilingDuration(time.Since(start))
	return count, nil
}

func (d *Downloader) selectDocuments(ctx context.Context, ref filing.Reference) ([]string, error) {
	switch d.cfg.Mode {
	case ModePrimaryExhibitsHTM:
		return d.listPrimaryAndHTMLExhibits(ctx, ref)
	case ModeFormExhibits:
		return d.listFormAndExhibits(ctx, ref)
	default:
		return d.listAll(ctx, ref)
	}
}

// listAll returns every entry of the filing's directory index.
func (d *Downloader) listAll(ctx context.Context, ref filing.Reference) ([]string, error) {
	items, err := d.indexItems(ctx, ref)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, it := range items {
		if name := safeFilename(it); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// listPrimaryAndHTMLExhibits returns the declared primary document when it
// is an HTML file, plus every HTML exhibit row. Older filings lack the
// declaration, in which case the first index row typed as the form with an
// HTML name stands in.
func (d *Downloader) listPrimaryAndHTMLExhibits(ctx context.Context, ref filing.Reference) ([]string, error) {
	rows, err := d.filingIndexRows(ctx, ref)
	if err != nil {
		return nil, err
	}

	var wanted []string
	primary := safeFilename(ref.PrimaryDocument)
	if primary != "" && isHTM(primary) {
		wanted = append(wanted, primary)
	} else {
		for _, row := range rows {
			name := safeFilename(row.Filename)
			if filing.IsWantedType(declaredType(row)) && isHTM(name) {
				wanted = append(wanted, name)
				break
			}
		}
	}

	for _, row := range rows {
		name := safeFilename(row.Filename)
		if !isHTM(name) {
			continue
		}
		if strings.HasPrefix(declaredType(row), filing.ExhibitTypePrefix) {
			wanted = append(wanted, name)
		}
	}
	return dedupeNames(wanted), nil
}

// listFormAndExhibits returns every index row typed as the form or as an
// exhibit, with no extension restriction.
func (d *Downloader) listFormAndExhibits(ctx context.Context, ref filing.Reference) ([]string, error) {
	rows, err := d.filingIndexRows(ctx, ref)
	if err != nil {
		return nil, err
	}
	var wanted []string
	for _, row := range rows {
		name := safeFilename(row.Filename)
		if name == "" {
			continue
		}
		typ := declaredType(row)
		if filing.IsWantedType(typ) || strings.HasPrefix(typ, filing.ExhibitTypePrefix) {
			wanted = append(wanted, name)
		}
	}
	return dedupeNames(wanted), nil
}

// filingIndexRows fetches and parses the filing's human-oriented index
// page, located via the machine-readable directory listing.
func (d *Downloader) filingIndexRows(ctx context.Context, ref filing.Reference) ([]htmlindex.DocumentRow, error) {
	items, err := d.indexItems(ctx, ref)
	if err != nil {
		return nil, err
	}
	indexName := chooseIndexHTMLName(items, ref.AccessionNo)
	if indexName == "" {
		return nil, fmt.Errorf("cannot locate filing index HTML for accession %s", ref.AccessionNo)
	}

	page, err := d.client.GetText(ctx, d.client.Bases().DocumentURL(ref.CIK10, ref.AccessionNo, indexName))
	if err != nil {
		return nil, fmt.Errorf("filing index page: %w", err)
	}
	rows, err := htmlindex.ParseFilingIndex(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Downloader) indexItems(ctx context.Context, ref filing.Reference) ([]string, error) {
	var idx directoryIndex
	url := d.client.Bases().FilingIndexJSONURL(ref.CIK10, ref.AccessionNo)
	if err := d.client.GetJSON(ctx, url, &idx); err != nil {
		return nil, fmt.Errorf("directory index: %w", err)
	}
	names := make([]string, 0, len(idx.Directory.Item))
	for _, it := range idx.Directory.Item {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	return names, nil
}

// writeFilingManifest drops an identity manifest into the filing directory
// once; an existing manifest is never rewritten.
func (d *Downloader) writeFilingManifest(baseDir string, ref filing.Reference) error {
	path := filepath.Join(baseDir, "manifest.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	payload, err := json.MarshalIndent(map[string]string{
		"cik":             ref.CIK10,
		"accessionNumber": ref.AccessionNo,
		"filingDate":      ref.FilingDate,
		"form":            ref.Form,
		"primaryDocument": ref.PrimaryDocument,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal filing manifest: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write filing manifest: %w", err)
	}
	return nil
}

// chooseIndexHTMLName picks the filing's index page from the directory
// listing, preferring the canonical accession-named variants.
func chooseIndexHTMLName(items []string, accessionNo string) string {
	candidates := []string{
		accessionNo + "-index.html",
		accessionNo + "-index.htm",
		"index.html",
		"index.htm",
	}
	for _, c := range candidates {
		for _, name := range items {
			if name == c {
				return c
			}
		}
	}
	for _, name := range items {
		if strings.HasSuffix(name, "-index.html") || strings.HasSuffix(name, "-index.htm") {
			return name
		}
	}
	return ""
}

// safeFilename guards against path traversal and the inline annotations
// some index pages append after the filename.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func declaredType(row htmlindex.DocumentRow) string {
	return strings.ToUpper(strings.TrimSpace(row.DeclaredType))
}

func isHTM(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".htm")
}

func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
