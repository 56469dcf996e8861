package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

const reqA = "2d79cb3e-8a76-4a7e-be51-1af6e51c3f65"

var fixedNow = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

const segmentLog = "2023-12-12T11:28:13.300Z\t" + reqA + "\tINFO\tStart syncing the balance " +
	`{"userId":"daa2bf74-cf31-4552-9e85-acb48a7c3f90","currency":"BHD","amount":22,"vat":2,"oldBalance":433,"newBalance":453,"type":"CREDIT","time":"2023-12-12T11:28:13.312Z","source":"payment","action":"topup","transaction":{"id":"01HHEWH0NAQKZ4ZMFW6PM7K046","amount":22,"metadata":{"orderId":"o1"}},"items":[1,2]}` + "\n" +
	"2023-12-12T11:28:13.367Z\t" + reqA + "\tERROR\tBalances not in sync " +
	`{'userId': 'daa2bf74-cf31-4552-9e85-acb48a7c3f90', 'subscriptionBalance': 433, 'paymentBalance': 850, '_aws': {'Timestamp': 1}}` + "\n" +
	"2023-12-12T11:29:00.000Z\t" + reqA + "\tINFO\tStart syncing the balance " +
	`{userId: 'u2', amount: 10, vat: 0, oldBalance: 5, newBalance: 15, type: None, time: '2023-12-12T11:29:00.000Z'}` + "\n" +
	"2023-12-12T11:30:00.000Z\t" + reqA + "\tINFO\tStart syncing the balance { not a json object }\n"

func TestExtractor_SegmentStrategy(t *testing.T) {
	ex := New(Options{Now: fixedNow})

	res := ex.Extract(model.RawLog{Filename: "2023-12-12-file", RawText: segmentLog})

	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, "01HHEWH0NAQKZ4ZMFW6PM7K046", first.TransactionID)
	assert.Equal(t, "daa2bf74-cf31-4552-9e85-acb48a7c3f90", first.UserID)
	assert.Equal(t, "BHD", first.Currency)
	assert.InDelta(t, 22.0, first.Amount, 0.0001)
	assert.InDelta(t, 2.0, first.VAT, 0.0001)
	assert.InDelta(t, 433.0, first.OldBalance, 0.0001)
	assert.InDelta(t, 453.0, first.NewBalance, 0.0001)
	assert.InDelta(t, 850.0, first.PaymentBalance, 0.0001)
	assert.InDelta(t, 433.0, first.SubscriptionBalance, 0.0001)
	assert.Equal(t, model.EventCredit, first.EventType)
	assert.Equal(t, "payment", first.Source)
	assert.Equal(t, "topup", first.Action)
	assert.Equal(t, "2023-12-12T11:28:13.312Z", first.Timestamp)
	assert.Equal(t, "Balances not in sync", first.ErrorMessage)
	assert.Equal(t, model.SyncFailed, first.SyncStatus)
	assert.Equal(t, "2023-12-12-file", first.Filename)
	assert.NotEmpty(t, first.Hash)

	assert.Equal(t, "22", first.Extra["transaction_amount"])
	assert.Equal(t, "o1", first.Extra["transaction_metadata_orderId"])
	assert.NotContains(t, first.Extra, "items")
	assert.NotContains(t, first.Extra, "_aws_Timestamp")

	second := res.Records[1]
	assert.Equal(t, "u2", second.UserID)
	assert.Empty(t, second.EventType)
	assert.Equal(t, model.SyncSuccess, second.SyncStatus)
	assert.Empty(t, second.ErrorMessage)
	assert.Zero(t, second.PaymentBalance)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.FailureParse, res.Failures[0].Kind)
	assert.Equal(t, "{ not a json object }", res.Failures[0].Snippet)
	assert.Equal(t, fixedNow(), res.Failures[0].RecordedAt)
}

func TestExtractor_Deterministic(t *testing.T) {
	ex := New(Options{Now: fixedNow})
	raw := model.RawLog{Filename: "f", RawText: segmentLog}

	assert.Equal(t, ex.Extract(raw), ex.Extract(raw))
}

func TestExtractor_DistinctCyclesKeepDistinctHashes(t *testing.T) {
	raw := "2023-12-12T11:28:13.300Z\t" + reqA + "\tINFO\tStart syncing the balance " +
		`{userId: 'u1', amount: 10, oldBalance: 5, newBalance: 15, source: 'payment', action: 'topup', orderId: 'A'}` + "\n" +
		"2023-12-12T11:28:14.300Z\t" + reqA + "\tINFO\tStart syncing the balance " +
		`{userId: 'u1', amount: 10, oldBalance: 5, newBalance: 15, source: 'subscription', action: 'renew', orderId: 'B'}` + "\n"

	res := New(Options{Now: fixedNow}).Extract(model.RawLog{Filename: "f", RawText: raw})

	require.Len(t, res.Records, 2)
	assert.Equal(t, "payment", res.Records[0].Source)
	assert.Equal(t, "subscription", res.Records[1].Source)
	assert.NotEqual(t, res.Records[0].Hash, res.Records[1].Hash)
}

func TestExtractor_RequestStrategy(t *testing.T) {
	raw := "2023-12-12T11:28:13.100Z START RequestId: " + reqA + " Version: $LATEST\n" +
		"2023-12-12T11:28:13.200Z " + reqA + ` INFO Begin balance sync {"transaction": {"id": "tx-1", "userId": "u1"}, "amount": 5}` + "\n" +
		"2023-12-12T11:28:13.250Z " + reqA + ` INFO noise {"currency": "SAR"}` + "\n" +
		"2023-12-12T11:28:13.300Z " + reqA + ` WARN Balances not in sync {"paymentBalance": 10, "subscriptionBalance": 12}` + "\n"

	ex := New(Options{Strategy: StrategyRequest, Now: fixedNow})
	res := ex.Extract(model.RawLog{Filename: "req-file", RawText: raw})

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, reqA, rec.RequestID)
	assert.Equal(t, "tx-1", rec.TransactionID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Empty(t, rec.Currency, "noise entries are filtered out")
	assert.InDelta(t, 5.0, rec.Amount, 0.0001)
	assert.Equal(t, model.SyncFailed, rec.SyncStatus)
	assert.Empty(t, res.Failures)
}

func TestExtractor_NoTransactions(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		raw      string
	}{
		{
			name:     "segment strategy without cycle marker",
			strategy: StrategySegment,
			raw:      "2023-12-12T11:28:13.300Z INFO hello {\"userId\": \"u1\"}\n",
		},
		{
			name:     "segment without transaction signal",
			strategy: StrategySegment,
			raw:      "2023-12-12T11:28:13.300Z INFO Start syncing the balance {\"currency\": \"SAR\"}\n",
		},
		{
			name:     "request strategy without identifiers",
			strategy: StrategyRequest,
			raw:      "2023-12-12T11:28:13.300Z INFO Begin balance sync {\"userId\": \"u1\"}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := New(Options{Strategy: tt.strategy, Now: fixedNow})
			res := ex.Extract(model.RawLog{Filename: "empty", RawText: tt.raw})

			assert.Empty(t, res.Records)
			require.Len(t, res.Failures, 1)
			assert.Equal(t, model.FailureNoTransactions, res.Failures[0].Kind)
			assert.Equal(t, "empty", res.Failures[0].Filename)
		})
	}
}

func TestExtractor_SnippetTruncation(t *testing.T) {
	junk := "{ " + strings.Repeat("é", 400) + " }"
	raw := "2023-12-12T11:28:13.300Z INFO Start syncing the balance " + junk + "\n"

	res := New(Options{Now: fixedNow}).Extract(model.RawLog{Filename: "f", RawText: raw})

	require.NotEmpty(t, res.Failures)
	snippet := res.Failures[0].Snippet
	assert.LessOrEqual(t, len(snippet), DefaultSnippetLimit)
	assert.True(t, strings.HasPrefix(junk, snippet))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Request")
	require.NoError(t, err)
	assert.Equal(t, StrategyRequest, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategySegment, s)

	_, err = ParseStrategy("regex")
	assert.Error(t, err)
}
