package failures

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// CSV file names, one per failure kind.
const (
	FailedParsesFile   = "failed_parses.csv"
	NoTransactionsFile = "no_transactions.csv"
	InsertErrorsFile   = "db_insert_errors.csv"
)

type csvLayout struct {
	file   string
	header []string
}

var csvLayouts = map[model.FailureKind]csvLayout{
	model.FailureParse:          {file: FailedParsesFile, header: []string{"filename", "raw_snippet"}},
	model.FailureNoTransactions: {file: NoTransactionsFile, header: []string{"filename"}},
	model.FailureInsert:         {file: InsertErrorsFile, header: []string{"filename", "raw_snippet"}},
}

// CSVRecorder appends failures to per-kind CSV files in a directory. A header
// row is written when a file is created. It is safe for concurrent use.
type CSVRecorder struct {
	dir string
	mu  sync.Mutex
}

// NewCSVRecorder creates a recorder writing under dir, creating it if needed.
func NewCSVRecorder(dir string) (*CSVRecorder, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create failures directory: %w", err)
	}
	return &CSVRecorder{dir: dir}, nil
}

// Record implements service.FailureRecorder.
func (r *CSVRecorder) Record(_ context.Context, failures []model.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range failures {
		layout, ok := csvLayouts[f.Kind]
		if !ok {
			return fmt.Errorf("unknown failure kind %q", f.Kind)
		}

		row := []string{f.Filename}
		if len(layout.header) > 1 {
			row = append(row, f.Snippet)
		}
		if err := r.appendRow(layout, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *CSVRecorder) appendRow(layout csvLayout, row []string) error {
	path := filepath.Join(r.dir, layout.file)

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	// #nosec G304 - path is built from a fixed file name under the configured directory
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", layout.file, err)
	}

	writer := csv.NewWriter(f)
	if isNew {
		if err := writer.Write(layout.header); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	if err := writer.Write(row); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush %s: %w", layout.file, err)
	}
	return f.Close()
}
