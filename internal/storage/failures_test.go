package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

func TestSQLiteStorage_Failures(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	failures := []model.Failure{
		{Kind: model.FailureParse, Filename: "f1", Snippet: "{ broken", RecordedAt: at},
		{Kind: model.FailureNoTransactions, Filename: "f2", RecordedAt: at},
		{Kind: model.FailureParse, Filename: "f3", Snippet: "{ also broken", RecordedAt: at},
	}
	require.NoError(t, store.SaveFailures(ctx, failures))

	// Appending never replaces earlier events
	require.NoError(t, store.SaveFailures(ctx, failures[:1]))

	all, err := store.GetFailures(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	parses, err := store.GetFailures(ctx, model.FailureParse)
	require.NoError(t, err)
	require.Len(t, parses, 3)
	assert.Equal(t, "f1", parses[0].Filename)
	assert.Equal(t, "{ broken", parses[0].Snippet)
	assert.True(t, at.Equal(parses[0].RecordedAt))

	inserts, err := store.GetFailures(ctx, model.FailureInsert)
	require.NoError(t, err)
	assert.Empty(t, inserts)
}

func TestSQLiteStorage_SaveFailuresValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name    string
		failure model.Failure
	}{
		{name: "unknown kind", failure: model.Failure{Kind: "exploded", Filename: "f1"}},
		{name: "missing filename", failure: model.Failure{Kind: model.FailureParse}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.SaveFailures(ctx, []model.Failure{tt.failure})
			assert.ErrorIs(t, err, ErrInvalidFailure)
		})
	}

	assert.NoError(t, store.SaveFailures(ctx, nil))
}
