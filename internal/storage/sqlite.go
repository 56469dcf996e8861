package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers from the worker pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// NewCheckpointManager creates a new checkpoint manager for this storage instance.
func (s *SQLiteStorage) NewCheckpointManager() (*CheckpointManager, error) {
	return NewCheckpointManager(s.db, s.dbPath)
}

// IsBusy reports whether err is SQLite refusing work because another writer
// holds the lock. Such errors are worth retrying.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveRawLog(ctx context.Context, raw *model.RawLog) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateRawLog(raw); err != nil {
		return false, err
	}
	return t.storage.saveRawLogTx(ctx, t.tx, raw)
}

func (t *sqliteTransaction) GetRawLog(ctx context.Context, filename string) (*model.RawLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filename, "filename"); err != nil {
		return nil, err
	}
	return t.storage.getRawLogTx(ctx, t.tx, filename)
}

func (t *sqliteTransaction) GetRawLogs(ctx context.Context, filter service.RawLogFilter) ([]model.RawLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRawLogsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetRawLogFilenames(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRawLogFilenamesTx(ctx, t.tx)
}

func (t *sqliteTransaction) ReplaceFileTransactions(ctx context.Context, filename string, records []model.TransactionRecord) (*service.ReplaceResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRecords(filename, records); err != nil {
		return nil, err
	}
	return t.storage.replaceFileTransactionsTx(ctx, t.tx, filename, records)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return countRows(ctx, t.tx, "transactions")
}

func (t *sqliteTransaction) ReplaceReconcileEvents(ctx context.Context, events []model.ReconcileEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEvents(events); err != nil {
		return err
	}
	return t.storage.replaceReconcileEventsTx(ctx, t.tx, events)
}

func (t *sqliteTransaction) GetReconcileEvents(ctx context.Context, filter service.ReconcileFilter) ([]model.ReconcileEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateReconcileFilter(filter); err != nil {
		return nil, err
	}
	return t.storage.getReconcileEventsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetReconcileSummary(ctx context.Context, filter service.ReconcileFilter) (*service.ReconcileSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateReconcileFilter(filter); err != nil {
		return nil, err
	}
	return t.storage.getReconcileSummaryTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) SaveFailures(ctx context.Context, failures []model.Failure) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFailures(failures); err != nil {
		return err
	}
	return t.storage.saveFailuresTx(ctx, t.tx, failures)
}

func (t *sqliteTransaction) GetFailures(ctx context.Context, kind model.FailureKind) ([]model.Failure, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getFailuresTx(ctx, t.tx, kind)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

func countRows(ctx context.Context, q queryable, table string) (int, error) {
	var count int
	// #nosec G201 - table names come from a fixed internal list
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}
