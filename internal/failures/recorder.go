// Package failures records side-channel failure events: fragments that could
// not be parsed, files that yielded no transactions, and rejected inserts.
package failures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

// Saver is the part of the store the StoreRecorder needs.
type Saver interface {
	SaveFailures(ctx context.Context, failures []model.Failure) error
}

// StoreRecorder appends failures to the failures table.
type StoreRecorder struct {
	store Saver
}

// NewStoreRecorder creates a recorder backed by store.
func NewStoreRecorder(store Saver) *StoreRecorder {
	return &StoreRecorder{store: store}
}

// Record implements service.FailureRecorder.
func (r *StoreRecorder) Record(ctx context.Context, failures []model.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	if err := r.store.SaveFailures(ctx, failures); err != nil {
		return fmt.Errorf("failed to store %d failures: %w", len(failures), err)
	}
	return nil
}

// Multi fans failures out to several recorders. Every recorder is tried; the
// errors are joined.
type Multi []service.FailureRecorder

// Record implements service.FailureRecorder.
func (m Multi) Record(ctx context.Context, failures []model.Failure) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, failures); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConflict builds the insert-error failure for a record the store
// rejected. The snippet is a JSON snapshot of the record.
func FromConflict(rec model.TransactionRecord, at time.Time) model.Failure {
	snapshot, err := json.Marshal(rec)
	if err != nil {
		snapshot = []byte(rec.Hash)
	}
	return model.Failure{
		RecordedAt: at,
		Kind:       model.FailureInsert,
		Filename:   rec.Filename,
		Snippet:    string(snapshot),
	}
}
