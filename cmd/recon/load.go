package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/balance-sync-recon/internal/cli"
	"github.com/Veraticus/balance-sync-recon/internal/common"
	"github.com/Veraticus/balance-sync-recon/internal/ingest"
)

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <export-dir>",
		Short: "Store raw .gz log exports",
		Long: `Walk an export directory and store every .gz log it contains as a raw log.

Each log is named after the folder holding it. Logs already loaded are
skipped, so the command can be rerun safely on a growing export.`,
		Example: `  recon load ~/exports/balance-sync`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, _, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := runLoad(cmd, store, args[0])
			if err != nil {
				return err
			}

			writeLine(out, cli.FormatSuccess(fmt.Sprintf("Loaded %d logs (%d already present)", len(stats.Loaded), len(stats.Skipped))))
			printUnreadable(out, stats)
			return nil
		},
	}
}

func runLoad(cmd *cobra.Command, store ingest.Store, dir string) (*ingest.Stats, error) {
	paths, err := ingest.Discover(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NewUserError("export directory "+dir+" does not exist", err)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Loading raw logs", "dir", dir, "files", len(paths))

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(paths), "Loading logs...")
	loader := ingest.NewLoader(store, ingest.WithProgress(func(string) { cli.Advance(bar) }))

	stats, err := loader.LoadDir(cmd.Context(), dir)
	if err != nil {
		return stats, fmt.Errorf("load failed: %w", err)
	}
	return stats, nil
}

func printUnreadable(out io.Writer, stats *ingest.Stats) {
	if len(stats.Unreadable) == 0 {
		return
	}
	writeLine(out, cli.FormatWarning(fmt.Sprintf("%d logs could not be decompressed and were skipped:", len(stats.Unreadable))))
	for _, name := range stats.Unreadable {
		writeLine(out, cli.SubtleStyle.Render("  "+name))
	}
}
