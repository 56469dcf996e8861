// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"
)

// EventType is the direction of a balance movement as reported by the sync service.
type EventType string

// Event type constants.
const (
	EventCredit  EventType = "CREDIT"
	EventDebit   EventType = "DEBIT"
	EventUnknown EventType = "UNKNOWN"
)

// SyncStatus is the legacy per-segment sync signal recorded by the extractor.
type SyncStatus string

// Sync status constants.
const (
	SyncSuccess SyncStatus = "SUCCESS"
	SyncFailed  SyncStatus = "FAILED"
)

// RawLog is one ingested source file. It is never modified after loading.
type RawLog struct {
	LoadedAt time.Time
	Filename string
	RawText  string
	ID       int64
}

// TransactionRecord is a single balance-sync transaction recovered from a log file.
type TransactionRecord struct {
	Extra               map[string]string // unrecognized keys, stored serialized
	TransactionID       string
	UserID              string
	Currency            string
	EventType           EventType
	Source              string
	Action              string
	Timestamp           string
	Filename            string
	RequestID           string
	ErrorMessage        string
	SyncStatus          SyncStatus
	Hash                string
	Amount              float64 // literal magnitude; sign is applied during reconciliation
	VAT                 float64
	OldBalance          float64
	NewBalance          float64
	PaymentBalance      float64
	SubscriptionBalance float64
}

// GenerateHash creates a stable content hash used for duplicate detection
// within a single file's output. Every persisted field takes part, Extra in
// key order, so only records identical in content collide.
func (t *TransactionRecord) GenerateHash() string {
	h := sha256.New()
	field := func(s string) {
		_, _ = io.WriteString(h, s)
		_, _ = h.Write([]byte{0x1f})
	}

	for _, s := range []string{
		t.Filename, t.RequestID, t.TransactionID, t.UserID, t.Currency,
		string(t.EventType), t.Source, t.Action, t.Timestamp,
		t.ErrorMessage, string(t.SyncStatus),
	} {
		field(s)
	}
	for _, v := range []float64{t.Amount, t.VAT, t.OldBalance, t.NewBalance, t.PaymentBalance, t.SubscriptionBalance} {
		field(strconv.FormatFloat(v, 'f', 2, 64))
	}
	for _, k := range slices.Sorted(maps.Keys(t.Extra)) {
		field(k + "=" + t.Extra[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
