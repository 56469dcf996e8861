package model

import "time"

// FailureKind identifies which side-channel log a failure belongs to.
type FailureKind string

// Failure kinds.
const (
	FailureParse          FailureKind = "failed_parse"
	FailureNoTransactions FailureKind = "no_transactions"
	FailureInsert         FailureKind = "insert_error"
)

// Failure is one append-only side-channel event.
type Failure struct {
	RecordedAt time.Time
	Kind       FailureKind
	Filename   string
	Snippet    string
}
