package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/balance-sync-recon/internal/cli"
	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/report"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

var mismatchTypes = []model.MismatchType{
	model.MismatchCalculationAndBalanceSync,
	model.MismatchCalculation,
	model.MismatchBalanceSync,
	model.MismatchNone,
}

type reportFlags struct {
	user     string
	country  string
	currency string
	from     string
	to       string
	csvPath  string
	mismatch []string
	limit    int
	top      int
	rows     int
}

func reportCmd() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show reconciliation results",
		Long: `Summarize reconcile events: users with calculation mismatches, the total
mismatch value, overdrafts, the last sync time, per-user anomalies and a daily
trend. Filters combine; dates are inclusive calendar days.`,
		Example: `  # Everything
  recon report

  # Calculation problems in Bahrain during December, exported
  recon report --country Bahrain --mismatch CALCULATION --from 2023-12-01 --to 2023-12-31 --csv dec.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			filter, err := flags.filter()
			if err != nil {
				return err
			}

			store, _, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r, err := report.Build(ctx, store, filter, flags.top)
			if err != nil {
				return err
			}

			if err := report.Render(out, r, flags.rows); err != nil {
				return err
			}

			if flags.csvPath != "" {
				if err := report.WriteCSVFile(flags.csvPath, r.Events); err != nil {
					return err
				}
				writeLine(out, cli.FormatSuccess(fmt.Sprintf("Exported %d events to %s", len(r.Events), flags.csvPath)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.user, "user", "", "only this user id")
	cmd.Flags().StringVar(&flags.country, "country", "", "only this country (e.g. Bahrain)")
	cmd.Flags().StringVar(&flags.currency, "currency", "", "only this currency code")
	cmd.Flags().StringSliceVar(&flags.mismatch, "mismatch", nil, "only these mismatch types (repeatable)")
	cmd.Flags().StringVar(&flags.from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&flags.to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "maximum events to read (0 for all)")
	cmd.Flags().IntVar(&flags.top, "top", 10, "users listed in the anomaly table")
	cmd.Flags().IntVar(&flags.rows, "rows", 20, "events listed in the terminal view")
	cmd.Flags().StringVar(&flags.csvPath, "csv", "", "also export the filtered events to this CSV file")

	return cmd
}

func (f reportFlags) filter() (service.ReconcileFilter, error) {
	filter := service.ReconcileFilter{
		UserID:   f.user,
		Country:  f.country,
		Currency: f.currency,
		Limit:    f.limit,
	}

	for _, raw := range f.mismatch {
		m := model.MismatchType(strings.ToUpper(strings.TrimSpace(raw)))
		if !m.IsValid() {
			return filter, fmt.Errorf("unknown mismatch type %q (want one of %v)", raw, mismatchTypes)
		}
		filter.MismatchTypes = append(filter.MismatchTypes, m)
	}

	var err error
	if filter.StartDate, err = parseDay(f.from); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parseDay(f.to); err != nil {
		return filter, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return filter, fmt.Errorf("--to %s is before --from %s", f.to, f.from)
	}
	return filter, nil
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return &day, nil
}
