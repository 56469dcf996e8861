package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// SaveFailures appends failure events to the side channel.
func (s *SQLiteStorage) SaveFailures(ctx context.Context, failures []model.Failure) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFailures(failures); err != nil {
		return err
	}
	if len(failures) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveFailuresTx(ctx, tx, failures); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) saveFailuresTx(ctx context.Context, q queryable, failures []model.Failure) error {
	for _, f := range failures {
		recordedAt := f.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = timeNow().UTC()
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO failures (kind, filename, snippet, recorded_at) VALUES (?, ?, ?, ?)
		`, string(f.Kind), f.Filename, f.Snippet, recordedAt); err != nil {
			return fmt.Errorf("failed to record %s failure for %s: %w", f.Kind, f.Filename, err)
		}
	}
	return nil
}

// GetFailures retrieves recorded failures, oldest first. An empty kind
// returns every kind.
func (s *SQLiteStorage) GetFailures(ctx context.Context, kind model.FailureKind) ([]model.Failure, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getFailuresTx(ctx, s.db, kind)
}

func (s *SQLiteStorage) getFailuresTx(ctx context.Context, q queryable, kind model.FailureKind) ([]model.Failure, error) {
	query := `SELECT kind, filename, snippet, recorded_at FROM failures`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failures []model.Failure
	for rows.Next() {
		var (
			f        model.Failure
			kindText string
		)
		if err := rows.Scan(&kindText, &f.Filename, &f.Snippet, &f.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Kind = model.FailureKind(kindText)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
