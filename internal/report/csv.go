package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// CSVHeader lists the exported columns in order.
var CSVHeader = []string{
	"filename",
	"request_id",
	"transaction_id",
	"user_id",
	"timestamp",
	"currency",
	"country",
	"type",
	"amount",
	"vat",
	"old_balance",
	"new_balance",
	"expected_new_balance",
	"payment_balance",
	"subscription_balance",
	"mismatch_type",
	"is_overdraft",
	"sync_status",
	"error_message",
	"source",
	"action",
}

// WriteCSVFile exports events to a new CSV file at path.
func WriteCSVFile(path string, events []model.ReconcileEvent) error {
	// #nosec G304 - path is the user's chosen export destination
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file %q: %w", path, err)
	}
	if err := WriteCSV(f, events); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a header row followed by one row per event.
func WriteCSV(out io.Writer, events []model.ReconcileEvent) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, ev := range events {
		row := []string{
			ev.Filename,
			ev.RequestID,
			ev.TransactionID,
			ev.UserID,
			ev.Timestamp,
			ev.Currency,
			ev.Country,
			string(ev.EventType),
			formatMoney(ev.Amount),
			formatMoney(ev.VAT),
			formatMoney(ev.OldBalance),
			formatMoney(ev.NewBalance),
			formatMoney(ev.ExpectedNewBalance),
			formatMoney(ev.PaymentBalance),
			formatMoney(ev.SubscriptionBalance),
			string(ev.MismatchType),
			strconv.FormatBool(ev.IsOverdraft),
			string(ev.SyncStatus),
			ev.ErrorMessage,
			ev.Source,
			ev.Action,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
