// Package pipeline runs a complete mirror pass: it assembles the shared
// client, resolves targets through discovery, and drives the download pool,
// reporting milestones through progress and returning an aggregate Summary.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/config"
	"github.com/JakeFAU/edgar-mirror/internal/discovery"
	"github.com/JakeFAU/edgar-mirror/internal/download"
	"github.com/JakeFAU/edgar-mirror/internal/edgar"
	"github.com/JakeFAU/edgar-mirror/internal/filing"
	"github.com/JakeFAU/edgar-mirror/internal/manifest"
	"github.com/JakeFAU/edgar-mirror/internal/progress"
	"github.com/JakeFAU/edgar-mirror/internal/ratelimit"
)

// Options holds everything one run needs. Mode takes the config package's
// source-mode values.
type Options struct {
	Contact string
	Mode    string

	// CIKs are raw company identifiers in any format; CIKFile points at a
	// comma/space/newline separated list on disk.
	CIKs    []string
	CIKFile string

	IncludeAmendments bool
	// StartDate, when set, drops filings dated before it (YYYY-MM-DD).
	StartDate string

	OutputDir    string
	DownloadMode download.Mode
	SaveManifest bool
	Workers      int

	MinInterval time.Duration
	MaxAttempts int

	MasterStartYear int
	ShardSpec       string
	ManifestPath    string
	ReuseManifest   bool
	ManifestOnly    bool

	// Bases overrides the upstream endpoints; zero means production.
	Bases edgar.BaseURLs
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// FromConfig maps a validated Config onto run Options.
func FromConfig(cfg config.Config) Options {
	return Options{
		Contact:           cfg.Contact,
		Mode:              cfg.Mode,
		CIKs:              []string{cfg.Companies.CIKs},
		CIKFile:           cfg.Companies.CIKFile,
		IncludeAmendments: cfg.Companies.IncludeAmendments,
		StartDate:         cfg.Companies.StartDate,
		OutputDir:         cfg.Download.OutputDir,
		DownloadMode:      download.Mode(cfg.Download.Mode),
		SaveManifest:      cfg.Download.SaveManifest,
		Workers:           cfg.Download.Workers,
		MinInterval:       cfg.MinInterval(),
		MaxAttempts:       cfg.HTTP.MaxAttempts,
		MasterStartYear:   cfg.Master.StartYear,
		ShardSpec:         cfg.Master.Shard,
		ManifestPath:      cfg.Master.ManifestPath,
		ReuseManifest:     cfg.Master.ReuseManifest,
		ManifestOnly:      cfg.Master.ManifestOnly,
	}
}

// Summary aggregates the outcome of one run.
type Summary struct {
	RunID           uuid.UUID
	OK              int
	Failed          int
	TotalTargets    int
	CompaniesTotal  int
	CompaniesDone   int
	CompaniesFailed int
	OutputDir       string
}

// Run executes one mirror pass and blocks until it finishes. progressFn,
// when non-nil, receives one human-readable line per milestone; the same
// events are mirrored to the logger. The returned error covers setup
// failures and cancellation; individual filing failures only show up in
// Summary.Failed.
func Run(ctx context.Context, opts Options, progressFn func(line string)) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var floor time.Time
	if opts.StartDate != "" {
		var err error
		floor, err = filing.ParseDate(opts.StartDate)
		if err != nil {
			return Summary{}, fmt.Errorf("start date: %w", err)
		}
	}

	client, err := edgar.NewClient(edgar.Config{
		Contact:     opts.Contact,
		Bases:       opts.Bases,
		MaxAttempts: opts.MaxAttempts,
		Limiter:     ratelimit.New(opts.MinInterval),
	}, logger)
	if err != nil {
		return Summary{}, err
	}

	svc := discovery.New(client, logger)
	dl := download.New(client, download.Config{
		OutputDir:    opts.OutputDir,
		Mode:         opts.DownloadMode,
		SaveManifest: opts.SaveManifest,
	}, logger)

	sinks := []progress.Sink{progress.NewLogSink(logger)}
	if progressFn != nil {
		sinks = append(sinks, progress.FuncSink(progressFn))
	}
	rep := progress.NewReporter(sinks...)

	sum := Summary{RunID: rep.RunID(), OutputDir: opts.OutputDir}
	rep.Emit(progress.Event{
		Stage: progress.StageRunStart,
		Note:  fmt.Sprintf("run %s mode=%s out=%s", rep.RunID(), opts.Mode, opts.OutputDir),
	})

	switch opts.Mode {
	case config.ModeMasterIndex:
		err = runMasterIndex(ctx, opts, floor, svc, dl, rep, &sum)
	default:
		err = runCompanies(ctx, opts, floor, svc, dl, rep, &sum)
	}
	if err != nil {
		return sum, err
	}

	rep.Emit(progress.Event{
		Stage: progress.StageRunDone,
		Note: fmt.Sprintf("run %s done: targets=%d ok=%d failed=%d companies=%d/%d",
			rep.RunID(), sum.TotalTargets, sum.OK, sum.Failed, sum.CompaniesDone, sum.CompaniesTotal),
	})
	return sum, nil
}

// runCompanies walks the named companies sequentially; each company's
// filings download through the shared pool before the next scan starts.
func runCompanies(
	ctx context.Context,
	opts Options,
	floor time.Time,
	svc *discovery.Service,
	dl *download.Downloader,
	rep *progress.Reporter,
	sum *Summary,
) error {
	ciks, err := resolveCIKs(opts.CIKs, opts.CIKFile)
	if err != nil {
		return err
	}
	if len(ciks) == 0 {
		return fmt.Errorf("no company identifiers given")
	}
	sum.CompaniesTotal = len(ciks)

	for i, cik10 := range ciks {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Emit(progress.Event{
			Stage:        progress.StageScanStart,
			CIK10:        cik10,
			CompanyIndex: i + 1,
			CompanyTotal: len(ciks),
		})

		refs, source, err := svc.CompanyTargets(ctx, cik10, opts.IncludeAmendments, floor)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sum.CompaniesFailed++
			rep.Emit(progress.Event{
				Stage: progress.StageNote,
				CIK10: cik10,
				Note:  fmt.Sprintf("scan failed for %s: %v", cik10, err),
			})
			continue
		}

		rep.Emit(progress.Event{
			Stage:        progress.StageScanDone,
			CIK10:        cik10,
			CompanyIndex: i + 1,
			CompanyTotal: len(ciks),
			Files:        len(refs),
			Note:         source,
		})

		res := dl.Batch(ctx, refs, opts.Workers, rep)
		sum.OK += res.OK
		sum.Failed += res.Failed
		sum.TotalTargets += len(refs)
		sum.CompaniesDone++
		// A company counts as done even when some of its filings failed;
		// CompaniesFailed flags it either way.
		if res.Failed > 0 {
			sum.CompaniesFailed++
		}

		rep.Emit(progress.Event{
			Stage:        progress.StageCompanyDone,
			CIK10:        cik10,
			CompanyIndex: i + 1,
			CompanyTotal: len(ciks),
			Note:         fmt.Sprintf("ok=%d failed=%d", res.OK, res.Failed),
		})
	}
	return nil
}

// runMasterIndex sweeps the quarterly bulk indexes, persists the target
// manifest, and downloads the surviving shard in one pool.
func runMasterIndex(
	ctx context.Context,
	opts Options,
	floor time.Time,
	svc *discovery.Service,
	dl *download.Downloader,
	rep *progress.Reporter,
	sum *Summary,
) error {
	var shard discovery.Shard
	hasShard := opts.ShardSpec != ""
	if hasShard {
		var err error
		shard, err = discovery.ParseShard(opts.ShardSpec)
		if err != nil {
			return err
		}
	}

	ciks, err := resolveCIKs(opts.CIKs, opts.CIKFile)
	if err != nil {
		return err
	}

	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = defaultManifestPath(opts.OutputDir, opts.StartDate, opts.ShardSpec)
	}

	var refs []filing.Reference
	if opts.ReuseManifest && fileExists(manifestPath) {
		refs, err = manifest.Read(manifestPath)
		if err != nil {
			return fmt.Errorf("reuse manifest: %w", err)
		}
		rep.Emit(progress.Event{
			Stage: progress.StageNote,
			Note:  fmt.Sprintf("reusing manifest %s (%d targets)", manifestPath, len(refs)),
		})
	} else {
		var cikFilter map[string]bool
		if len(ciks) > 0 {
			cikFilter = make(map[string]bool, len(ciks))
			for _, c := range ciks {
				cikFilter[c] = true
			}
		}

		refs, err = svc.MasterIndex(ctx, discovery.MasterIndexOptions{
			StartYear:         opts.MasterStartYear,
			Floor:             floor,
			CIKFilter:         cikFilter,
			IncludeAmendments: opts.IncludeAmendments,
		})
		if err != nil {
			return err
		}
	}

	if hasShard {
		before := len(refs)
		refs = shard.Filter(refs)
		rep.Emit(progress.Event{
			Stage: progress.StageNote,
			Note:  fmt.Sprintf("shard %s keeps %d of %d targets", opts.ShardSpec, len(refs), before),
		})
	}

	// The manifest always reflects the sharded target set so a resumed run
	// picks up exactly where this one left off. A write failure costs only
	// resumability, never the run.
	if err := manifest.Write(manifestPath, refs); err != nil {
		rep.Emit(progress.Event{
			Stage: progress.StageNote,
			Note:  fmt.Sprintf("manifest write failed: %v", err),
		})
	} else {
		rep.Emit(progress.Event{
			Stage: progress.StageNote,
			Note:  fmt.Sprintf("wrote manifest %s (%d targets)", manifestPath, len(refs)),
		})
	}

	sum.CompaniesTotal = len(ciks)
	sum.CompaniesDone = len(ciks)
	sum.TotalTargets = len(refs)

	if opts.ManifestOnly {
		rep.Emit(progress.Event{
			Stage: progress.StageNote,
			Note:  fmt.Sprintf("manifest only: %d targets, skipping downloads", len(refs)),
		})
		return nil
	}

	res := dl.Batch(ctx, refs, opts.Workers, rep)
	if err := ctx.Err(); err != nil {
		return err
	}
	sum.OK = res.OK
	sum.Failed = res.Failed
	return nil
}

// defaultManifestPath names the target manifest after the start-date floor
// and shard, e.g. master_index_8k_targets_2015-01-01_2_8.jsonl.
func defaultManifestPath(outDir, startDate, shardSpec string) string {
	dateTag := "all"
	if startDate != "" {
		dateTag = strings.ReplaceAll(startDate, "/", "-")
	}
	shardTag := "all"
	if shardSpec != "" {
		shardTag = strings.ReplaceAll(strings.ReplaceAll(shardSpec, " ", ""), "/", "_")
	}
	name := fmt.Sprintf("master_index_8k_targets_%s_%s.jsonl", dateTag, shardTag)
	return filepath.Join(outDir, name)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
