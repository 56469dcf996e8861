package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/balance-sync-recon/internal/cli"
	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/report"
)

func failuresCmd() *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List recorded extraction and insert failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			k := model.FailureKind(kind)
			switch k {
			case "", model.FailureParse, model.FailureNoTransactions, model.FailureInsert:
			default:
				return fmt.Errorf("unknown failure kind %q (want %s, %s or %s)",
					kind, model.FailureParse, model.FailureNoTransactions, model.FailureInsert)
			}

			store, _, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := store.GetFailures(ctx, k)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				writeLine(out, cli.SubtleStyle.Render("No failures recorded."))
				return nil
			}

			total := len(events)
			if limit > 0 && total > limit {
				events = events[len(events)-limit:]
			}

			rows := make([][]string, len(events))
			for i, f := range events {
				rows[i] = []string{
					f.RecordedAt.Format("2006-01-02 15:04:05"),
					string(f.Kind),
					f.Filename,
					snippet(f.Snippet, 60),
				}
			}
			writeLine(out, report.Table([]string{"Recorded", "Kind", "File", "Snippet"}, rows))
			writeLine(out, cli.SubtleStyle.Render(fmt.Sprintf("%d of %d failures", len(events), total)))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only this kind (failed_parse, no_transactions, insert_error)")
	cmd.Flags().IntVar(&limit, "limit", 50, "show only the most recent failures (0 for all)")

	return cmd
}

func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
