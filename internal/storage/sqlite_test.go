package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// createTestRecords builds count distinct records belonging to filename.
func createTestRecords(filename string, count int) []model.TransactionRecord {
	records := make([]model.TransactionRecord, count)
	for i := range records {
		rec := model.TransactionRecord{
			Filename:            filename,
			TransactionID:       fmt.Sprintf("tx-%d", i),
			UserID:              fmt.Sprintf("user-%d", i%2),
			Currency:            "SAR",
			EventType:           model.EventCredit,
			Amount:              50,
			VAT:                 5,
			OldBalance:          100,
			NewBalance:          145,
			PaymentBalance:      200,
			SubscriptionBalance: 200,
			Timestamp:           fmt.Sprintf("2023-12-%02dT11:28:13.367Z", 10+i),
			SyncStatus:          model.SyncSuccess,
		}
		rec.Hash = rec.GenerateHash()
		records[i] = rec
	}
	return records
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")
	ctx := context.Background()

	store1, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Migrate(ctx))
	_ = store1.Close()

	// Running migrations again must not error
	store2, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store2.Close() }()
	require.NoError(t, store2.Migrate(ctx))

	version, err := store2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	_, err = store2.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 1))
	assert.NoError(t, err, "database not functional after migration")
}

func TestSQLiteStorage_Transaction(t *testing.T) {
	tests := []struct {
		txFunc    func(context.Context, *SQLiteStorage) error
		name      string
		wantErr   bool
		wantCount int
	}{
		{
			name: "successful transaction",
			txFunc: func(ctx context.Context, s *SQLiteStorage) error {
				tx, err := s.BeginTx(ctx)
				if err != nil {
					return err
				}
				if _, err := tx.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 2)); err != nil {
					_ = tx.Rollback()
					return err
				}
				if err := tx.SaveFailures(ctx, []model.Failure{{Kind: model.FailureParse, Filename: "f1"}}); err != nil {
					_ = tx.Rollback()
					return err
				}
				return tx.Commit()
			},
			wantCount: 2,
		},
		{
			name: "rollback discards writes",
			txFunc: func(ctx context.Context, s *SQLiteStorage) error {
				tx, err := s.BeginTx(ctx)
				if err != nil {
					return err
				}
				if _, err := tx.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 2)); err != nil {
					_ = tx.Rollback()
					return err
				}
				return tx.Rollback()
			},
			wantCount: 0,
		},
		{
			name: "invalid records rejected",
			txFunc: func(ctx context.Context, s *SQLiteStorage) error {
				tx, err := s.BeginTx(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = tx.Rollback() }()
				_, err = tx.ReplaceFileTransactions(ctx, "f1", createTestRecords("other", 1))
				return err
			},
			wantErr: true,
		},
		{
			name: "nested transactions unsupported",
			txFunc: func(ctx context.Context, s *SQLiteStorage) error {
				tx, err := s.BeginTx(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = tx.Rollback() }()
				_, err = tx.BeginTx(ctx)
				return err
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			err := tt.txFunc(ctx, store)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			count, err := store.GetTransactionCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestSQLiteStorage_TransactionReadsOwnWrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 3))
	require.NoError(t, err)

	count, err := tx.GetTransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	records, err := tx.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
