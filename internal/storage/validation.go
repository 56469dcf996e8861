// Package storage provides the SQLite persistence gateway for raw logs,
// transaction records, reconcile events and failures.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidRawLog    = errors.New("invalid raw log")
	ErrInvalidRecord    = errors.New("invalid transaction record")
	ErrInvalidEvent     = errors.New("invalid reconcile event")
	ErrInvalidFailure   = errors.New("invalid failure")
	ErrInvalidMismatch  = errors.New("invalid mismatch type")
	ErrFilenameMismatch = errors.New("record filename does not match")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRawLog(raw *model.RawLog) error {
	if raw == nil {
		return fmt.Errorf("%w: raw log", ErrNilParameter)
	}
	if strings.TrimSpace(raw.Filename) == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidRawLog)
	}
	return nil
}

// validateRecords checks that every record belongs to filename. An empty
// slice is valid: it clears the file's prior output.
func validateRecords(filename string, records []model.TransactionRecord) error {
	if err := validateString(filename, "filename"); err != nil {
		return err
	}
	for i, rec := range records {
		if rec.Filename != filename {
			return fmt.Errorf("record at index %d: %w: %q != %q", i, ErrFilenameMismatch, rec.Filename, filename)
		}
		if rec.Hash == "" {
			return fmt.Errorf("record at index %d: %w: missing hash", i, ErrInvalidRecord)
		}
	}
	return nil
}

func validateEvents(events []model.ReconcileEvent) error {
	for i, ev := range events {
		if !ev.MismatchType.IsValid() {
			return fmt.Errorf("event at index %d: %w: %q", i, ErrInvalidMismatch, ev.MismatchType)
		}
		if ev.Filename == "" {
			return fmt.Errorf("event at index %d: %w: missing filename", i, ErrInvalidEvent)
		}
	}
	return nil
}

func validateFailures(failures []model.Failure) error {
	for i, f := range failures {
		switch f.Kind {
		case model.FailureParse, model.FailureNoTransactions, model.FailureInsert:
		default:
			return fmt.Errorf("failure at index %d: %w: unknown kind %q", i, ErrInvalidFailure, f.Kind)
		}
		if f.Filename == "" {
			return fmt.Errorf("failure at index %d: %w: missing filename", i, ErrInvalidFailure)
		}
	}
	return nil
}

func validateReconcileFilter(filter service.ReconcileFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}
	for _, m := range filter.MismatchTypes {
		if !m.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidMismatch, m)
		}
	}
	return nil
}
