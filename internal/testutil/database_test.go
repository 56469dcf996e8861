package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t).SeedRawLogs(map[string]string{"a": SyncLog, "b": EmptyLog})

	names, err := db.Storage.GetRawLogFilenames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestWithTransactionRollsBack(t *testing.T) {
	db := SetupTestDB(t)

	rec := model.TransactionRecord{Filename: "f1", UserID: "u1"}
	rec.Hash = rec.GenerateHash()

	errStop := errors.New("stop")
	err := db.WithTransaction(func(tx service.Transaction) error {
		_, err := tx.ReplaceFileTransactions(context.Background(), "f1", []model.TransactionRecord{rec})
		require.NoError(t, err)
		return errStop
	})
	assert.ErrorIs(t, err, errStop)

	count, err := db.Storage.GetTransactionCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWriteExport(t *testing.T) {
	root := WriteExport(t, t.TempDir(), "2023-12-12", SyncLog)
	info, err := os.Stat(filepath.Join(root, "2023-12-12", "000000.gz"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
