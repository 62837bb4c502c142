package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/config"
	"github.com/JakeFAU/edgar-mirror/internal/logging"
	"github.com/JakeFAU/edgar-mirror/internal/metrics"
	"github.com/JakeFAU/edgar-mirror/internal/pipeline"
)

// newMirrorCmd creates and configures the 'mirror' subcommand, which runs
// one complete discovery and download pass.
func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Runs one discovery and download pass",
		Long: `Resolves the Form 8-K filings matching the configured companies, date
floor, and source mode, then downloads each filing's documents into the
output tree. The exit status is non-zero when any filing fails.`,

		RunE: runMirrorCommand,
	}

	flags := cmd.Flags()
	flags.String("contact", "", "contact string with an email address, sent as the User-Agent (required)")
	flags.String("mode", "", "target source: cik or master_index")
	flags.String("ciks", "", "comma/space separated company identifiers")
	flags.String("cik-file", "", "file of company identifiers, comma/space/newline separated")
	flags.Bool("include-amendments", true, "also mirror 8-K/A filings")
	flags.String("start-date", "", "drop filings dated before YYYY-MM-DD")
	flags.String("download-mode", "", "documents to mirror per filing: all, primary_ex_htm, or 8k_ex")
	flags.Int("workers", 0, "concurrent filing downloads")
	flags.String("out", "", "output directory root")
	flags.Bool("save-manifest", true, "write a manifest.json into each filing directory (all mode)")
	flags.Int("min-interval-ms", 0, "minimum milliseconds between upstream requests")
	flags.Int("max-attempts", 0, "retry ceiling per request")
	flags.Int("master-start-year", 0, "first year of the master_index sweep")
	flags.String("shard", "", "N/K shard of the master_index target set, e.g. 1/3")
	flags.String("targets-manifest", "", "path of the master_index target manifest")
	flags.Bool("reuse-targets-manifest", false, "load targets from an existing manifest instead of scanning")
	flags.Bool("manifest-only", false, "write the target manifest and skip downloads")
	flags.Bool("dev-logging", true, "human-readable colored log output")

	return cmd
}

func runMirrorCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	opts := pipeline.FromConfig(cfg)
	opts.Logger = logger

	sum, err := pipeline.Run(cmd.Context(), opts, func(line string) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	})
	if err != nil {
		return err
	}

	logger.Info("mirror pass finished",
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Failed),
		zap.Int("targets", sum.TotalTargets),
		zap.String("out", sum.OutputDir),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Done. ok=%d failed=%d targets=%d out=%s\n",
		sum.OK, sum.Failed, sum.TotalTargets, sum.OutputDir)

	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d filings failed", sum.Failed, sum.TotalTargets)
	}
	return nil
}
