package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/balance-sync-recon/internal/cli"
	"github.com/Veraticus/balance-sync-recon/internal/config"
	"github.com/Veraticus/balance-sync-recon/internal/pipeline"
	"github.com/Veraticus/balance-sync-recon/internal/storage"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [filenames...]",
		Short: "Extract transactions from stored raw logs",
		Long: `Extract transaction records from raw logs and store them.

Each file's previous records are replaced, so reprocessing never duplicates.
With no arguments every loaded log is processed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cfg, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runner, err := newProgressRunner(cmd, store, cfg, args)
			if err != nil {
				return err
			}

			summary, err := runner.Process(ctx, args)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute reconcile events from stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cfg, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runner, err := newRunner(cfg, store, nil)
			if err != nil {
				return err
			}

			stats, err := runner.Reconcile(ctx)
			if err != nil {
				return err
			}
			printReconcileStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var (
		loadDir      string
		noCheckpoint bool
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "run [filenames...]",
		Short: "Load, extract and reconcile in one pass",
		Long: `Run the whole pipeline: optionally load new logs, extract transactions from
the selected raw logs, then recompute every reconcile event.

When stored transactions would be replaced an automatic checkpoint is taken
first, unless --no-checkpoint is given.`,
		Example: `  # Process everything already loaded
  recon run

  # Pick up new exports and process them
  recon run --load ~/exports/balance-sync

  # Reprocess two files after a parser fix
  recon run 2023-12-12 2023-12-13 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, cfg, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if loadDir != "" {
				stats, err := runLoad(cmd, store, loadDir)
				if err != nil {
					return err
				}
				writeLine(out, cli.FormatInfo(fmt.Sprintf("Loaded %d new logs", len(stats.Loaded))))
				printUnreadable(out, stats)
			}

			existing, err := store.GetTransactionCount(ctx)
			if err != nil {
				return err
			}
			if existing > 0 {
				if !yes {
					prompter := cli.NewPrompter(cmd.InOrStdin(), out)
					ok, err := prompter.Confirm(ctx, fmt.Sprintf("%d stored transactions may be replaced. Continue?", existing), true)
					if err != nil {
						return err
					}
					if !ok {
						writeLine(out, cli.SubtleStyle.Render("Run cancelled."))
						return nil
					}
				}
				if !noCheckpoint {
					if err := autoCheckpoint(cmd, store); err != nil {
						return err
					}
				}
			}

			runner, err := newProgressRunner(cmd, store, cfg, args)
			if err != nil {
				return err
			}

			summary, stats, err := runner.Run(ctx, args)
			if summary != nil {
				printSummary(out, summary)
			}
			if err != nil {
				return err
			}
			printReconcileStats(out, stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&loadDir, "load", "", "load new .gz logs from this directory first")
	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "skip the automatic checkpoint before replacing transactions")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask before replacing stored transactions")

	return cmd
}

func autoCheckpoint(cmd *cobra.Command, store *storage.SQLiteStorage) error {
	manager, err := store.NewCheckpointManager()
	if err != nil {
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	meta, err := manager.AutoCheckpoint(cmd.Context(), "run")
	if err != nil {
		return err
	}
	slog.Info("Created checkpoint", "id", meta.ID, "size", formatFileSize(meta.FileSize))
	return nil
}

// newProgressRunner builds a runner whose progress bar is sized to the files
// the run will cover.
func newProgressRunner(cmd *cobra.Command, store *storage.SQLiteStorage, cfg *config.Pipeline, names []string) (*pipeline.Runner, error) {
	var bar *progressbar.ProgressBar
	runner, err := newRunner(cfg, store, func(string) { cli.Advance(bar) })
	if err != nil {
		return nil, err
	}

	targets, err := runner.Targets(cmd.Context(), names)
	if err != nil {
		return nil, err
	}
	bar = cli.NewProgressBar(cmd.ErrOrStderr(), len(targets), "Processing logs...")
	return runner, nil
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	writeLine(w, cli.FormatSuccess(fmt.Sprintf("Processed %d files: %d transactions stored, %d replaced",
		s.Files, s.Records, s.Deleted)))
	if s.Failures > 0 {
		writeLine(w, cli.FormatWarning(fmt.Sprintf("%d failure events recorded (%d files without transactions, %d insert conflicts)",
			s.Failures, s.Empty, s.Conflicts)))
	}
	if len(s.SkippedFiles) > 0 {
		writeLine(w, cli.FormatError(fmt.Sprintf("%d files skipped: %v", len(s.SkippedFiles), s.SkippedFiles)))
	}
}

func printReconcileStats(w io.Writer, s *pipeline.ReconcileStats) {
	writeLine(w, cli.FormatSuccess(fmt.Sprintf("Reconciled %d events (%d overdrafts)", s.Events, s.Overdrafts)))
	for _, m := range mismatchTypes {
		if n := s.ByMismatch[m]; n > 0 {
			writeLine(w, fmt.Sprintf("  %-30s %d", m, n))
		}
	}
}
