package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

func createTestEvents() []model.ReconcileEvent {
	records := createTestRecords("f1", 4)
	events := make([]model.ReconcileEvent, len(records))
	for i, rec := range records {
		events[i] = model.ReconcileEvent{
			TransactionRecord:  rec,
			Country:            "Saudi Arabia",
			ExpectedNewBalance: 145,
			MismatchType:       model.MismatchNone,
		}
	}
	// user-1 on 2023-12-11: logged 140 against an expected 145
	events[1].NewBalance = 140
	events[1].MismatchType = model.MismatchCalculation
	// user-1 on 2023-12-13: balances diverge and the account is overdrawn
	events[3].NewBalance = -10
	events[3].SubscriptionBalance = 180
	events[3].MismatchType = model.MismatchCalculationAndBalanceSync
	events[3].IsOverdraft = true
	events[3].Currency = "AED"
	events[3].Country = "United Arab Emirates"
	return events
}

func TestSQLiteStorage_ReplaceReconcileEvents(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	events := createTestEvents()
	require.NoError(t, store.ReplaceReconcileEvents(ctx, events))

	got, err := store.GetReconcileEvents(ctx, service.ReconcileFilter{})
	require.NoError(t, err)
	assert.Equal(t, events, got)

	// A recompute replaces the whole table
	require.NoError(t, store.ReplaceReconcileEvents(ctx, events[:1]))
	got, err = store.GetReconcileEvents(ctx, service.ReconcileFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStorage_ReplaceReconcileEventsRejectsInvalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	events := createTestEvents()
	events[0].MismatchType = "SOMETHING_ELSE"
	assert.ErrorIs(t, store.ReplaceReconcileEvents(ctx, events), ErrInvalidMismatch)
}

func TestSQLiteStorage_GetReconcileEventsFilter(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, store.ReplaceReconcileEvents(ctx, createTestEvents()))

	day := func(d int) *time.Time {
		t := time.Date(2023, 12, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name   string
		filter service.ReconcileFilter
		want   int
	}{
		{name: "all", filter: service.ReconcileFilter{}, want: 4},
		{name: "user", filter: service.ReconcileFilter{UserID: "user-1"}, want: 2},
		{name: "country", filter: service.ReconcileFilter{Country: "United Arab Emirates"}, want: 1},
		{name: "currency is case insensitive", filter: service.ReconcileFilter{Currency: "sar"}, want: 3},
		{name: "date range inclusive", filter: service.ReconcileFilter{StartDate: day(11), EndDate: day(12)}, want: 2},
		{name: "start only", filter: service.ReconcileFilter{StartDate: day(13)}, want: 1},
		{
			name:   "mismatch types",
			filter: service.ReconcileFilter{MismatchTypes: []model.MismatchType{model.MismatchCalculation, model.MismatchCalculationAndBalanceSync}},
			want:   2,
		},
		{name: "limit", filter: service.ReconcileFilter{Limit: 1}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetReconcileEvents(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestSQLiteStorage_GetReconcileEventsInvalidFilter(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2023, 12, 12, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := store.GetReconcileEvents(ctx, service.ReconcileFilter{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = store.GetReconcileEvents(ctx, service.ReconcileFilter{MismatchTypes: []model.MismatchType{"NOPE"}})
	assert.ErrorIs(t, err, ErrInvalidMismatch)
}

func TestSQLiteStorage_GetReconcileSummary(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, store.ReplaceReconcileEvents(ctx, createTestEvents()))

	summary, err := store.GetReconcileSummary(ctx, service.ReconcileFilter{})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalEvents)
	assert.Equal(t, 1, summary.UsersWithMismatch)
	// (140 - 145) + (-10 - 145)
	assert.InDelta(t, -160, summary.TotalMismatchValue, 0.001)
	assert.Equal(t, 1, summary.Overdrafts)
	assert.True(t, time.Date(2023, 12, 13, 11, 28, 13, 367000000, time.UTC).Equal(summary.LastSync))
	assert.Equal(t, map[model.MismatchType]int{
		model.MismatchNone:                      2,
		model.MismatchCalculation:               1,
		model.MismatchCalculationAndBalanceSync: 1,
	}, summary.ByMismatch)
}

func TestSQLiteStorage_GetReconcileSummaryEmpty(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	summary, err := store.GetReconcileSummary(context.Background(), service.ReconcileFilter{})
	require.NoError(t, err)
	assert.Zero(t, summary.TotalEvents)
	assert.True(t, summary.LastSync.IsZero())
	assert.Empty(t, summary.ByMismatch)
}

func TestParseLogTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2023-12-12T11:28:13.367Z", time.Date(2023, 12, 12, 11, 28, 13, 367000000, time.UTC)},
		{"2023-12-12 11:28:13", time.Date(2023, 12, 12, 11, 28, 13, 0, time.UTC)},
		{"2023-12-12T11:28:13", time.Date(2023, 12, 12, 11, 28, 13, 0, time.UTC)},
		{"yesterday", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseLogTime(tt.in)), "got %v", parseLogTime(tt.in))
		})
	}
}
