// Package service defines the interfaces between the pipeline and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// RawLogFilter defines filtering options for raw log queries.
type RawLogFilter struct {
	Filenames []string
	Limit     int
}

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	Filename string
	UserID   string
	Limit    int
}

// ReconcileFilter defines filtering options for reconcile event queries.
// Dates compare against the calendar day of the logged timestamp.
type ReconcileFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	UserID        string
	Country       string
	Currency      string
	MismatchTypes []model.MismatchType
	Limit         int
}

// ReplaceResult reports the outcome of a per-file replace.
type ReplaceResult struct {
	// Conflicts are records rejected by the uniqueness constraint. The rest
	// of the file's records are committed regardless.
	Conflicts []model.TransactionRecord
	Deleted   int
	Inserted  int
}

// ReconcileSummary holds the headline metrics over reconcile events.
type ReconcileSummary struct {
	LastSync           time.Time
	ByMismatch         map[model.MismatchType]int
	TotalEvents        int
	UsersWithMismatch  int
	TotalMismatchValue float64
	Overdrafts         int
}

// Storage defines the contract for the persistence gateway.
type Storage interface {
	// Raw log operations
	SaveRawLog(ctx context.Context, raw *model.RawLog) (bool, error)
	GetRawLog(ctx context.Context, filename string) (*model.RawLog, error)
	GetRawLogs(ctx context.Context, filter RawLogFilter) ([]model.RawLog, error)
	GetRawLogFilenames(ctx context.Context) ([]string, error)

	// Transaction operations
	ReplaceFileTransactions(ctx context.Context, filename string, records []model.TransactionRecord) (*ReplaceResult, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionRecord, error)
	GetTransactionCount(ctx context.Context) (int, error)

	// Reconcile operations
	ReplaceReconcileEvents(ctx context.Context, events []model.ReconcileEvent) error
	GetReconcileEvents(ctx context.Context, filter ReconcileFilter) ([]model.ReconcileEvent, error)
	GetReconcileSummary(ctx context.Context, filter ReconcileFilter) (*ReconcileSummary, error)

	// Failure side channel
	SaveFailures(ctx context.Context, failures []model.Failure) error
	GetFailures(ctx context.Context, kind model.FailureKind) ([]model.Failure, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// FailureRecorder receives side-channel failure events. Implementations are
// append-only.
type FailureRecorder interface {
	Record(ctx context.Context, failures []model.Failure) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
