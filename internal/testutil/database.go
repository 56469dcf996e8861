// Package testutil provides shared fixtures for tests that need a real store
// or realistic balance-sync logs.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
	"github.com/Veraticus/balance-sync-recon/internal/storage"
)

// TestDB represents a migrated test database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated database in a temporary directory. It is
// closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedRawLogs stores one raw log per filename.
func (db *TestDB) SeedRawLogs(logs map[string]string) *TestDB {
	db.t.Helper()
	for name, text := range logs {
		if _, err := db.Storage.SaveRawLog(context.Background(), &model.RawLog{Filename: name, RawText: text}); err != nil {
			db.t.Fatalf("failed to seed raw log %q: %v", name, err)
		}
	}
	return db
}

// SeedTransactions replaces the records of filename.
func (db *TestDB) SeedTransactions(filename string, records []model.TransactionRecord) *TestDB {
	db.t.Helper()
	if _, err := db.Storage.ReplaceFileTransactions(context.Background(), filename, records); err != nil {
		db.t.Fatalf("failed to seed transactions of %q: %v", filename, err)
	}
	return db
}

// WithTransaction executes the given function within a database transaction.
// The transaction is always rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
