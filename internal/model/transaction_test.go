package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionRecord_GenerateHash(t *testing.T) {
	base := TransactionRecord{
		Filename:   "2023-12-12",
		UserID:     "u1",
		Amount:     10,
		OldBalance: 5,
		NewBalance: 15,
		Source:     "payment",
		Action:     "topup",
		SyncStatus: SyncSuccess,
		Extra:      map[string]string{"orderId": "A", "channel": "app"},
	}

	tests := []struct {
		name   string
		mutate func(r *TransactionRecord)
	}{
		{name: "source", mutate: func(r *TransactionRecord) { r.Source = "subscription" }},
		{name: "action", mutate: func(r *TransactionRecord) { r.Action = "renew" }},
		{name: "error message", mutate: func(r *TransactionRecord) { r.ErrorMessage = "Balances not in sync" }},
		{name: "sync status", mutate: func(r *TransactionRecord) { r.SyncStatus = SyncFailed }},
		{name: "currency", mutate: func(r *TransactionRecord) { r.Currency = "SAR" }},
		{name: "extra value", mutate: func(r *TransactionRecord) { r.Extra = map[string]string{"orderId": "B", "channel": "app"} }},
		{name: "extra key", mutate: func(r *TransactionRecord) { r.Extra = map[string]string{"orderId": "A"} }},
		{name: "amount", mutate: func(r *TransactionRecord) { r.Amount = 10.01 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			assert.NotEqual(t, base.GenerateHash(), other.GenerateHash())
		})
	}
}

func TestTransactionRecord_GenerateHashStable(t *testing.T) {
	a := TransactionRecord{UserID: "u1", Extra: map[string]string{"a": "1", "b": "2", "c": "3"}}
	b := TransactionRecord{UserID: "u1", Extra: map[string]string{"c": "3", "a": "1", "b": "2"}}

	assert.Equal(t, a.GenerateHash(), b.GenerateHash(), "map order does not matter")
	assert.Len(t, a.GenerateHash(), 64)

	// Amounts are compared at cent precision
	a.Amount, b.Amount = 1.001, 1.004
	assert.Equal(t, a.GenerateHash(), b.GenerateHash())
}
