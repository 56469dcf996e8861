package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

func TestSQLiteStorage_ReplaceFileTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Equal(t, 0, first.Deleted)
	assert.Empty(t, first.Conflicts)

	_, err = store.ReplaceFileTransactions(ctx, "f2", createTestRecords("f2", 2))
	require.NoError(t, err)

	// Reprocessing f1 with fewer records replaces rather than accumulates
	second, err := store.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 1))
	require.NoError(t, err)
	assert.Equal(t, 3, second.Deleted)
	assert.Equal(t, 1, second.Inserted)

	f1, err := store.GetTransactions(ctx, service.TransactionFilter{Filename: "f1"})
	require.NoError(t, err)
	assert.Len(t, f1, 1)

	f2, err := store.GetTransactions(ctx, service.TransactionFilter{Filename: "f2"})
	require.NoError(t, err)
	assert.Len(t, f2, 2, "other files are untouched")

	count, err := store.GetTransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteStorage_ReplaceIsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	records := createTestRecords("f1", 4)
	for i := 0; i < 3; i++ {
		_, err := store.ReplaceFileTransactions(ctx, "f1", records)
		require.NoError(t, err)
	}

	got, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestSQLiteStorage_ReplaceWithNoRecordsClearsFile(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 2))
	require.NoError(t, err)

	result, err := store.ReplaceFileTransactions(ctx, "f1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)

	count, err := store.GetTransactionCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStorage_ReplaceReportsConflicts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	records := createTestRecords("f1", 2)
	records = append(records, records[0])

	result, err := store.ReplaceFileTransactions(ctx, "f1", records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, records[0].Hash, result.Conflicts[0].Hash)

	count, err := store.GetTransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "non-conflicting rows still commit")
}

func TestSQLiteStorage_ExtraFieldsRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rec := createTestRecords("f1", 1)[0]
	rec.Extra = map[string]string{
		"transaction_metadata_orderId": "o1",
		"items_count":                  "3",
	}
	rec.ErrorMessage = "Balances not in sync"
	rec.SyncStatus = model.SyncFailed

	_, err := store.ReplaceFileTransactions(ctx, "f1", []model.TransactionRecord{rec})
	require.NoError(t, err)

	got, err := store.GetTransactions(ctx, service.TransactionFilter{Filename: "f1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestSQLiteStorage_GetTransactionsFilter(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.ReplaceFileTransactions(ctx, "f1", createTestRecords("f1", 4))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter service.TransactionFilter
		want   int
	}{
		{name: "all", filter: service.TransactionFilter{}, want: 4},
		{name: "by user", filter: service.TransactionFilter{UserID: "user-1"}, want: 2},
		{name: "limit", filter: service.TransactionFilter{Limit: 3}, want: 3},
		{name: "unknown file", filter: service.TransactionFilter{Filename: "nope"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetTransactions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestValidateRecords(t *testing.T) {
	good := createTestRecords("f1", 1)

	assert.NoError(t, validateRecords("f1", good))
	assert.NoError(t, validateRecords("f1", nil))
	assert.ErrorIs(t, validateRecords("", good), ErrEmptyString)
	assert.ErrorIs(t, validateRecords("f2", good), ErrFilenameMismatch)

	noHash := good[0]
	noHash.Hash = ""
	assert.ErrorIs(t, validateRecords("f1", []model.TransactionRecord{noHash}), ErrInvalidRecord)
}
