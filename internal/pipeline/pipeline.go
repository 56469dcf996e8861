// Package pipeline drives raw logs through extraction, persistence and
// reconciliation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/balance-sync-recon/internal/common"
	"github.com/Veraticus/balance-sync-recon/internal/extract"
	"github.com/Veraticus/balance-sync-recon/internal/failures"
	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/reconcile"
	"github.com/Veraticus/balance-sync-recon/internal/service"
	"github.com/Veraticus/balance-sync-recon/internal/storage"
)

// Options configures a Runner.
type Options struct {
	// Progress is called once per finished file, from worker goroutines.
	Progress func(filename string)
	Now      func() time.Time
	Retry    service.RetryOptions
	Workers  int
}

// Summary reports the outcome of a processing run.
type Summary struct {
	SkippedFiles []string // files abandoned after an unexpected extraction fault
	Files        int
	Records      int
	Deleted      int
	Conflicts    int
	Failures     int
	Empty        int // files that yielded no transactions
}

// ReconcileStats reports the outcome of a reconcile recompute.
type ReconcileStats struct {
	ByMismatch map[model.MismatchType]int
	Events     int
	Overdrafts int
}

// Extractor recovers transaction records from one raw log.
type Extractor interface {
	Extract(raw model.RawLog) extract.Result
}

// Runner processes raw logs. A Runner is safe to reuse across runs but not
// for concurrent runs.
type Runner struct {
	store      service.Storage
	extractor  Extractor
	calculator *reconcile.Calculator
	recorder   service.FailureRecorder
	opts       Options
}

// New creates a Runner.
func New(store service.Storage, extractor Extractor, calculator *reconcile.Calculator, recorder service.FailureRecorder, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Progress == nil {
		opts.Progress = func(string) {}
	}
	if recorder == nil {
		recorder = failures.NewStoreRecorder(store)
	}
	return &Runner{
		store:      store,
		extractor:  extractor,
		calculator: calculator,
		recorder:   recorder,
		opts:       opts,
	}
}

// Targets resolves which raw logs a run covers: the named ones, or every
// loaded log when names is empty.
func (r *Runner) Targets(ctx context.Context, names []string) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	all, err := r.store.GetRawLogFilenames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list raw logs: %w", common.ErrPersistence, err)
	}
	return all, nil
}

// Process extracts and stores the transactions of each named raw log. Files
// are independent: each replaces its own transactions in one transaction, so
// reprocessing is idempotent. A storage failure stops the whole run.
func (r *Runner) Process(ctx context.Context, names []string) (*Summary, error) {
	targets, err := r.Targets(ctx, names)
	if err != nil {
		return nil, err
	}

	slog.Info("Processing raw logs", "files", len(targets), "workers", r.opts.Workers)

	var (
		mu      sync.Mutex
		summary = &Summary{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, name := range targets {
		g.Go(func() error {
			res, err := r.processFile(gctx, name)
			if err != nil {
				return err
			}

			mu.Lock()
			summary.add(name, res)
			mu.Unlock()

			r.opts.Progress(name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	slog.Info("Processing complete",
		"files", summary.Files,
		"records", summary.Records,
		"failures", summary.Failures,
		"skipped", len(summary.SkippedFiles))
	return summary, nil
}

type fileResult struct {
	replace  *service.ReplaceResult
	failures int
	records  int
	empty    bool
	skipped  bool
}

func (s *Summary) add(name string, res fileResult) {
	s.Files++
	if res.skipped {
		s.SkippedFiles = append(s.SkippedFiles, name)
		return
	}
	s.Records += res.records
	s.Failures += res.failures
	if res.empty {
		s.Empty++
	}
	if res.replace != nil {
		s.Deleted += res.replace.Deleted
		s.Conflicts += len(res.replace.Conflicts)
	}
}

func (r *Runner) processFile(ctx context.Context, name string) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}

	raw, err := r.store.GetRawLog(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		slog.Warn("Raw log not found, skipping", "filename", name)
		return fileResult{skipped: true}, nil
	}
	if err != nil {
		return fileResult{}, fmt.Errorf("%w: failed to load %s: %w", common.ErrPersistence, name, err)
	}

	res, err := r.extract(*raw)
	if err != nil {
		common.LogError(err, "Skipping file after extraction fault", common.Fields{"filename": name})
		return fileResult{skipped: true}, nil
	}

	var replace *service.ReplaceResult
	err = common.WithRetry(ctx, func() error {
		out, err := r.store.ReplaceFileTransactions(ctx, name, res.Records)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: storage.IsBusy(err)}
		}
		replace = out
		return nil
	}, r.opts.Retry)
	if err != nil {
		return fileResult{}, fmt.Errorf("%w: failed to store transactions of %s: %w", common.ErrPersistence, name, err)
	}

	events := res.Failures
	at := r.opts.Now().UTC()
	for _, rec := range replace.Conflicts {
		events = append(events, failures.FromConflict(rec, at))
	}
	if err := r.recorder.Record(ctx, events); err != nil {
		return fileResult{}, fmt.Errorf("%w: failed to record failures of %s: %w", common.ErrPersistence, name, err)
	}

	slog.Debug("Processed raw log",
		"filename", name,
		"records", len(res.Records),
		"replaced", replace.Deleted,
		"conflicts", len(replace.Conflicts),
		"failures", len(events))

	return fileResult{
		replace:  replace,
		records:  replace.Inserted,
		failures: len(events),
		empty:    len(res.Records) == 0,
	}, nil
}

// extract runs the extractor, turning a panic on malformed input into an
// error so that one file cannot take down the run.
func (r *Runner) extract(raw model.RawLog) (res extract.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction panicked: %v", p)
		}
	}()
	return r.extractor.Extract(raw), nil
}

// Reconcile recomputes every reconcile event from the stored transactions.
// The read and the replace share one transaction so readers never observe a
// partial recompute.
func (r *Runner) Reconcile(ctx context.Context) (*ReconcileStats, error) {
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", common.ErrPersistence, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("Failed to rollback reconcile", "error", rbErr)
			}
		}
	}()

	records, err := tx.GetTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read transactions: %w", common.ErrPersistence, err)
	}

	events := r.calculator.CalculateAll(records)
	if err := tx.ReplaceReconcileEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("%w: failed to store reconcile events: %w", common.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit reconcile events: %w", common.ErrPersistence, err)
	}
	committed = true

	stats := &ReconcileStats{Events: len(events), ByMismatch: make(map[model.MismatchType]int)}
	for _, ev := range events {
		stats.ByMismatch[ev.MismatchType]++
		if ev.IsOverdraft {
			stats.Overdrafts++
		}
	}

	slog.Info("Reconcile complete", "events", stats.Events, "overdrafts", stats.Overdrafts)
	return stats, nil
}

// Run processes the named raw logs and then recomputes reconcile events.
func (r *Runner) Run(ctx context.Context, names []string) (*Summary, *ReconcileStats, error) {
	summary, err := r.Process(ctx, names)
	if err != nil {
		return summary, nil, err
	}
	stats, err := r.Reconcile(ctx)
	if err != nil {
		return summary, nil, err
	}
	return summary, stats, nil
}
