// Package cmd defines and implements the CLI commands for the edgar-mirror
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edgar-mirror",
		Short: "Discovers and mirrors SEC EDGAR Form 8-K filings.",
		Long: `edgar-mirror discovers Form 8-K filings on SEC EDGAR, either for a
named set of companies or from the quarterly bulk indexes, and mirrors each
filing's documents into a local directory tree. It paces and retries every
request within EDGAR's fair-access limits, so interrupted runs can simply be
restarted: files already on disk are never fetched twice.`,

		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; flags and EDGAR_* env override it)")

	cmd.AddCommand(newMirrorCmd())

	return cmd
}

// Execute is the main entry point. SIGINT/SIGTERM cancel the run context so
// in-flight downloads stop at the next network boundary.
func Execute() {
	// A .env file is a development convenience; absence is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
