package download

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/edgar-mirror/internal/filing"
	"github.com/JakeFAU/edgar-mirror/internal/metrics"
	"github.com/JakeFAU/edgar-mirror/internal/progress"
)

// BatchResult tallies a batch of filings.
type BatchResult struct {
	OK     int
	Failed int
}

// Batch mirrors a slice of filings through a bounded pool. Each filing is
// reported to the reporter as it finishes, in completion order. A failed
// filing is counted and logged but never aborts its siblings; only context
// cancellation stops the batch early.
func (d *Downloader) Batch(
	ctx context.Context,
	refs []filing.Reference,
	workers int,
	rep *progress.Reporter,
) BatchResult {
	if workers < 1 {
		workers = 1
	}

	var ok, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failed.Add(1)
				return err
			}
			files, err := d.Filing(ctx, ref)
			if err != nil {
				failed.Add(1)
				metrics.ObserveFiling("failed")
				d.logger.Warn("filing download failed",
					zap.String("cik", ref.CIK10),
					zap.String("accession", ref.AccessionNo),
					zap.Error(err),
				)
				rep.Emit(progress.Event{
					Stage:       progress.StageFilingFail,
					CIK10:       ref.CIK10,
					AccessionNo: ref.AccessionNo,
					FilingDate:  ref.FilingDate,
					Note:        err.Error(),
				})
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			ok.Add(1)
			metrics.ObserveFiling("ok")
			rep.Emit(progress.Event{
				Stage:       progress.StageFilingOK,
				CIK10:       ref.CIK10,
				AccessionNo: ref.AccessionNo,
				FilingDate:  ref.FilingDate,
				Files:       files,
			})
			return nil
		})
	}

	// The only error workers propagate is cancellation, which the caller
	// observes through its own context.
	_ = g.Wait()

	return BatchResult{OK: int(ok.Load()), Failed: int(failed.Load())}
}
