package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/balance-sync-recon/internal/common"
	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

// SaveRawLog stores a raw log unless one with the same filename exists. It
// reports whether a row was inserted; an existing raw log is never modified.
func (s *SQLiteStorage) SaveRawLog(ctx context.Context, raw *model.RawLog) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateRawLog(raw); err != nil {
		return false, err
	}
	return s.saveRawLogTx(ctx, s.db, raw)
}

func (s *SQLiteStorage) saveRawLogTx(ctx context.Context, q queryable, raw *model.RawLog) (bool, error) {
	loadedAt := raw.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = timeNow().UTC()
	}

	result, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO raw_logs (filename, raw_text, loaded_at)
		VALUES (?, ?, ?)
	`, raw.Filename, raw.RawText, loadedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert raw log %s: %w", raw.Filename, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		raw.ID = id
	}
	raw.LoadedAt = loadedAt
	return true, nil
}

// GetRawLog retrieves a raw log by filename.
func (s *SQLiteStorage) GetRawLog(ctx context.Context, filename string) (*model.RawLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filename, "filename"); err != nil {
		return nil, err
	}
	return s.getRawLogTx(ctx, s.db, filename)
}

func (s *SQLiteStorage) getRawLogTx(ctx context.Context, q queryable, filename string) (*model.RawLog, error) {
	var raw model.RawLog
	err := q.QueryRowContext(ctx, `
		SELECT id, filename, raw_text, loaded_at FROM raw_logs WHERE filename = ?
	`, filename).Scan(&raw.ID, &raw.Filename, &raw.RawText, &raw.LoadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("raw log %s: %w", filename, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw log %s: %w", filename, err)
	}
	return &raw, nil
}

// GetRawLogs retrieves raw logs in filename order.
func (s *SQLiteStorage) GetRawLogs(ctx context.Context, filter service.RawLogFilter) ([]model.RawLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRawLogsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getRawLogsTx(ctx context.Context, q queryable, filter service.RawLogFilter) ([]model.RawLog, error) {
	query := `SELECT id, filename, raw_text, loaded_at FROM raw_logs`
	var args []any

	if len(filter.Filenames) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Filenames)), ",")
		query += " WHERE filename IN (" + placeholders + ")"
		for _, f := range filter.Filenames {
			args = append(args, f)
		}
	}
	query += " ORDER BY filename ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []model.RawLog
	for rows.Next() {
		var raw model.RawLog
		if err := rows.Scan(&raw.ID, &raw.Filename, &raw.RawText, &raw.LoadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw log: %w", err)
		}
		logs = append(logs, raw)
	}
	return logs, rows.Err()
}

// GetRawLogFilenames lists the filenames of all stored raw logs.
func (s *SQLiteStorage) GetRawLogFilenames(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRawLogFilenamesTx(ctx, s.db)
}

func (s *SQLiteStorage) getRawLogFilenamesTx(ctx context.Context, q queryable) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT filename FROM raw_logs ORDER BY filename ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw log filenames: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan filename: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
