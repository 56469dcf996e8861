package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build reads and writes.
// Opening a database that cannot be brought to it is fatal.
const ExpectedSchemaVersion = 4

// Migration is one forward-only schema step. Its statements run in a single
// transaction together with the user_version bump.
type Migration struct {
	Description string
	Statements  []string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Raw logs and per-file transactions",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS raw_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				filename TEXT UNIQUE NOT NULL,
				raw_text TEXT NOT NULL,
				loaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS transactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				filename TEXT NOT NULL,
				hash TEXT NOT NULL,
				request_id TEXT,
				transaction_id TEXT,
				user_id TEXT,
				currency TEXT,
				amount REAL NOT NULL DEFAULT 0,
				vat REAL NOT NULL DEFAULT 0,
				old_balance REAL NOT NULL DEFAULT 0,
				new_balance REAL NOT NULL DEFAULT 0,
				payment_balance REAL NOT NULL DEFAULT 0,
				subscription_balance REAL NOT NULL DEFAULT 0,
				event_type TEXT,
				source TEXT,
				action TEXT,
				timestamp TEXT,
				error_message TEXT,
				sync_status TEXT,
				extra TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (filename, hash)
			)`,
			`CREATE INDEX idx_transactions_filename ON transactions(filename)`,
			`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
		},
	},
	{
		Version:     2,
		Description: "Failure side channel",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS failures (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				filename TEXT NOT NULL,
				snippet TEXT,
				recorded_at DATETIME NOT NULL
			)`,
			`CREATE INDEX idx_failures_kind ON failures(kind)`,
		},
	},
	{
		Version:     3,
		Description: "Reconcile events",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS reconcile_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				filename TEXT NOT NULL,
				hash TEXT NOT NULL,
				request_id TEXT,
				transaction_id TEXT,
				user_id TEXT,
				currency TEXT,
				country TEXT NOT NULL,
				amount REAL NOT NULL DEFAULT 0,
				vat REAL NOT NULL DEFAULT 0,
				old_balance REAL NOT NULL DEFAULT 0,
				new_balance REAL NOT NULL DEFAULT 0,
				payment_balance REAL NOT NULL DEFAULT 0,
				subscription_balance REAL NOT NULL DEFAULT 0,
				expected_new_balance REAL NOT NULL DEFAULT 0,
				event_type TEXT,
				source TEXT,
				action TEXT,
				timestamp TEXT,
				error_message TEXT,
				sync_status TEXT,
				mismatch_type TEXT NOT NULL,
				is_overdraft BOOLEAN NOT NULL DEFAULT 0,
				extra TEXT
			)`,
			`CREATE INDEX idx_reconcile_events_user ON reconcile_events(user_id)`,
			`CREATE INDEX idx_reconcile_events_mismatch ON reconcile_events(mismatch_type)`,
			`CREATE INDEX idx_reconcile_events_country ON reconcile_events(country)`,
		},
	},
	{
		Version:     4,
		Description: "Checkpoint metadata",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS checkpoint_metadata (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				description TEXT,
				file_size INTEGER NOT NULL DEFAULT 0,
				row_counts TEXT NOT NULL,
				schema_version INTEGER NOT NULL,
				is_auto BOOLEAN NOT NULL DEFAULT 0
			)`,
		},
	},
}

// Migrate applies every migration newer than the database's user_version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	final, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, final)
	}
	return nil
}

func (s *SQLiteStorage) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
