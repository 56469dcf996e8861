package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

var timeNow = time.Now

const transactionColumns = `filename, hash, request_id, transaction_id, user_id, currency,
	amount, vat, old_balance, new_balance, payment_balance, subscription_balance,
	event_type, source, action, timestamp, error_message, sync_status, extra`

// ReplaceFileTransactions deletes every stored record of filename and inserts
// records in their place, in one transaction. Records rejected by the
// uniqueness constraint are returned as conflicts; the rest still commit.
func (s *SQLiteStorage) ReplaceFileTransactions(ctx context.Context, filename string, records []model.TransactionRecord) (*service.ReplaceResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRecords(filename, records); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := s.replaceFileTransactionsTx(ctx, tx, filename, records)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit replace of %s: %w", filename, err)
	}
	return result, nil
}

func (s *SQLiteStorage) replaceFileTransactionsTx(ctx context.Context, q queryable, filename string, records []model.TransactionRecord) (*service.ReplaceResult, error) {
	deleted, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE filename = ?`, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to delete transactions for %s: %w", filename, err)
	}

	result := &service.ReplaceResult{}
	if n, affErr := deleted.RowsAffected(); affErr == nil {
		result.Deleted = int(n)
	}

	for _, rec := range records {
		extra, encErr := encodeExtra(rec.Extra)
		if encErr != nil {
			return nil, fmt.Errorf("failed to encode extra fields for %s: %w", rec.Hash, encErr)
		}

		_, err = q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Filename,
			rec.Hash,
			rec.RequestID,
			rec.TransactionID,
			rec.UserID,
			rec.Currency,
			rec.Amount,
			rec.VAT,
			rec.OldBalance,
			rec.NewBalance,
			rec.PaymentBalance,
			rec.SubscriptionBalance,
			string(rec.EventType),
			rec.Source,
			rec.Action,
			rec.Timestamp,
			rec.ErrorMessage,
			string(rec.SyncStatus),
			extra,
		)
		if isUniqueViolation(err) {
			slog.Debug("duplicate transaction record", "filename", filename, "hash", rec.Hash)
			result.Conflicts = append(result.Conflicts, rec)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert transaction %s: %w", rec.Hash, err)
		}
		result.Inserted++
	}

	return result, nil
}

// GetTransactions retrieves stored records in insertion order.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, filter service.TransactionFilter) ([]model.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any

	if filter.Filename != "" {
		query += " AND filename = ?"
		args = append(args, filter.Filename)
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.TransactionRecord
	for rows.Next() {
		var (
			rec                   model.TransactionRecord
			eventType, syncStatus string
			extra                 string
		)
		if err := rows.Scan(
			&rec.Filename,
			&rec.Hash,
			&rec.RequestID,
			&rec.TransactionID,
			&rec.UserID,
			&rec.Currency,
			&rec.Amount,
			&rec.VAT,
			&rec.OldBalance,
			&rec.NewBalance,
			&rec.PaymentBalance,
			&rec.SubscriptionBalance,
			&eventType,
			&rec.Source,
			&rec.Action,
			&rec.Timestamp,
			&rec.ErrorMessage,
			&syncStatus,
			&extra,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		rec.EventType = model.EventType(eventType)
		rec.SyncStatus = model.SyncStatus(syncStatus)
		if rec.Extra, err = decodeExtra(extra); err != nil {
			return nil, fmt.Errorf("failed to decode extra fields for %s: %w", rec.Hash, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetTransactionCount returns the number of stored transaction records.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return countRows(ctx, s.db, "transactions")
}

// encodeExtra serializes overflow fields. encoding/json sorts map keys, so
// the same fields always encode to the same text.
func encodeExtra(extra map[string]string) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeExtra(text string) (map[string]string, error) {
	if text == "" {
		return nil, nil
	}
	var extra map[string]string
	if err := json.Unmarshal([]byte(text), &extra); err != nil {
		return nil, err
	}
	return extra, nil
}
