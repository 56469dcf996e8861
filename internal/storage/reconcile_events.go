package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

const reconcileColumns = `filename, hash, request_id, transaction_id, user_id, currency, country,
	amount, vat, old_balance, new_balance, payment_balance, subscription_balance,
	expected_new_balance, event_type, source, action, timestamp, error_message,
	sync_status, mismatch_type, is_overdraft, extra`

// logTimeLayouts are the timestamp shapes seen in balance-sync logs.
var logTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// ReplaceReconcileEvents swaps the whole reconcile_events table for events in
// one transaction.
func (s *SQLiteStorage) ReplaceReconcileEvents(ctx context.Context, events []model.ReconcileEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEvents(events); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.replaceReconcileEventsTx(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) replaceReconcileEventsTx(ctx context.Context, q queryable, events []model.ReconcileEvent) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM reconcile_events`); err != nil {
		return fmt.Errorf("failed to clear reconcile events: %w", err)
	}

	for _, ev := range events {
		extra, err := encodeExtra(ev.Extra)
		if err != nil {
			return fmt.Errorf("failed to encode extra fields for %s: %w", ev.Hash, err)
		}

		_, err = q.ExecContext(ctx, `INSERT INTO reconcile_events (`+reconcileColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.Filename,
			ev.Hash,
			ev.RequestID,
			ev.TransactionID,
			ev.UserID,
			ev.Currency,
			ev.Country,
			ev.Amount,
			ev.VAT,
			ev.OldBalance,
			ev.NewBalance,
			ev.PaymentBalance,
			ev.SubscriptionBalance,
			ev.ExpectedNewBalance,
			string(ev.EventType),
			ev.Source,
			ev.Action,
			ev.Timestamp,
			ev.ErrorMessage,
			string(ev.SyncStatus),
			string(ev.MismatchType),
			ev.IsOverdraft,
			extra,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reconcile event %s: %w", ev.Hash, err)
		}
	}
	return nil
}

// GetReconcileEvents retrieves reconcile events matching filter, oldest first.
func (s *SQLiteStorage) GetReconcileEvents(ctx context.Context, filter service.ReconcileFilter) ([]model.ReconcileEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateReconcileFilter(filter); err != nil {
		return nil, err
	}
	return s.getReconcileEventsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getReconcileEventsTx(ctx context.Context, q queryable, filter service.ReconcileFilter) ([]model.ReconcileEvent, error) {
	where, args := reconcileWhere(filter)
	query := `SELECT ` + reconcileColumns + ` FROM reconcile_events` + where + ` ORDER BY timestamp ASC, id ASC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconcile events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.ReconcileEvent
	for rows.Next() {
		var (
			ev                                  model.ReconcileEvent
			eventType, syncStatus, mismatchType string
			extra                               string
		)
		if err := rows.Scan(
			&ev.Filename,
			&ev.Hash,
			&ev.RequestID,
			&ev.TransactionID,
			&ev.UserID,
			&ev.Currency,
			&ev.Country,
			&ev.Amount,
			&ev.VAT,
			&ev.OldBalance,
			&ev.NewBalance,
			&ev.PaymentBalance,
			&ev.SubscriptionBalance,
			&ev.ExpectedNewBalance,
			&eventType,
			&ev.Source,
			&ev.Action,
			&ev.Timestamp,
			&ev.ErrorMessage,
			&syncStatus,
			&mismatchType,
			&ev.IsOverdraft,
			&extra,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconcile event: %w", err)
		}
		ev.EventType = model.EventType(eventType)
		ev.SyncStatus = model.SyncStatus(syncStatus)
		ev.MismatchType = model.MismatchType(mismatchType)
		if ev.Extra, err = decodeExtra(extra); err != nil {
			return nil, fmt.Errorf("failed to decode extra fields for %s: %w", ev.Hash, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetReconcileSummary computes headline metrics over the events matching
// filter. The mismatch value is the sum of logged minus expected balance over
// events with a calculation mismatch.
func (s *SQLiteStorage) GetReconcileSummary(ctx context.Context, filter service.ReconcileFilter) (*service.ReconcileSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateReconcileFilter(filter); err != nil {
		return nil, err
	}
	return s.getReconcileSummaryTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getReconcileSummaryTx(ctx context.Context, q queryable, filter service.ReconcileFilter) (*service.ReconcileSummary, error) {
	where, args := reconcileWhere(filter)
	calcClause := `mismatch_type IN ('` + string(model.MismatchCalculation) + `', '` + string(model.MismatchCalculationAndBalanceSync) + `')`

	summary := &service.ReconcileSummary{ByMismatch: make(map[model.MismatchType]int)}
	var lastSync string

	// #nosec G202 - the where clause only carries placeholders
	err := q.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT CASE WHEN `+calcClause+` THEN user_id END),
			COALESCE(SUM(CASE WHEN `+calcClause+` THEN new_balance - expected_new_balance ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_overdraft THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(timestamp), '')
		FROM reconcile_events`+where, args...).Scan(
		&summary.TotalEvents,
		&summary.UsersWithMismatch,
		&summary.TotalMismatchValue,
		&summary.Overdrafts,
		&lastSync,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reconcile events: %w", err)
	}
	summary.LastSync = parseLogTime(lastSync)

	rows, err := q.QueryContext(ctx, `SELECT mismatch_type, COUNT(*) FROM reconcile_events`+where+` GROUP BY mismatch_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count mismatch types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			mismatch string
			count    int
		)
		if err := rows.Scan(&mismatch, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mismatch count: %w", err)
		}
		summary.ByMismatch[model.MismatchType(mismatch)] = count
	}
	return summary, rows.Err()
}

// reconcileWhere builds a WHERE clause and its arguments from filter.
func reconcileWhere(filter service.ReconcileFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Country != "" {
		conds = append(conds, "country = ?")
		args = append(args, filter.Country)
	}
	if filter.Currency != "" {
		conds = append(conds, "currency = ?")
		args = append(args, strings.ToUpper(filter.Currency))
	}
	if filter.StartDate != nil {
		conds = append(conds, "substr(timestamp, 1, 10) >= ?")
		args = append(args, filter.StartDate.Format("2006-01-02"))
	}
	if filter.EndDate != nil {
		conds = append(conds, "substr(timestamp, 1, 10) <= ?")
		args = append(args, filter.EndDate.Format("2006-01-02"))
	}
	if len(filter.MismatchTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.MismatchTypes)), ",")
		conds = append(conds, "mismatch_type IN ("+placeholders+")")
		for _, m := range filter.MismatchTypes {
			args = append(args, string(m))
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// parseLogTime parses a logged timestamp, returning the zero time when none
// of the known layouts match.
func parseLogTime(s string) time.Time {
	for _, layout := range logTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
