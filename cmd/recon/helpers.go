package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/balance-sync-recon/internal/config"
	"github.com/Veraticus/balance-sync-recon/internal/extract"
	"github.com/Veraticus/balance-sync-recon/internal/failures"
	"github.com/Veraticus/balance-sync-recon/internal/pipeline"
	"github.com/Veraticus/balance-sync-recon/internal/reconcile"
	"github.com/Veraticus/balance-sync-recon/internal/segment"
	"github.com/Veraticus/balance-sync-recon/internal/service"
	"github.com/Veraticus/balance-sync-recon/internal/storage"
)

// initStorage loads the pipeline configuration and opens the migrated store.
// Migrations always run before any worker starts.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, *config.Pipeline, error) {
	cfg, err := config.LoadPipeline(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// newRecorder builds the failure side channel: always the failures table,
// plus CSV files when a directory is configured.
func newRecorder(cfg *config.Pipeline, store service.Storage) (service.FailureRecorder, error) {
	recorders := failures.Multi{failures.NewStoreRecorder(store)}
	if cfg.FailureCSVDir != "" {
		csvRecorder, err := failures.NewCSVRecorder(cfg.FailureCSVDir)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, csvRecorder)
	}
	return recorders, nil
}

// newRunner wires the extraction and reconcile stages from configuration.
func newRunner(cfg *config.Pipeline, store service.Storage, progress func(string)) (*pipeline.Runner, error) {
	recorder, err := newRecorder(cfg, store)
	if err != nil {
		return nil, err
	}

	extractor := extract.New(extract.Options{
		Segmenter:    segment.New(segment.Options{Policy: cfg.RequestIDPolicy, Markers: cfg.Markers}),
		CycleMarker:  cfg.CycleMarker,
		Strategy:     cfg.Strategy,
		SnippetLimit: cfg.SnippetLimit,
	})

	return pipeline.New(store, extractor, reconcile.NewCalculator(cfg.Tolerance), recorder, pipeline.Options{
		Workers:  cfg.Workers,
		Retry:    cfg.Retry,
		Progress: progress,
	}), nil
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func writeLine(w io.Writer, s string) {
	_, _ = fmt.Fprintln(w, s)
}
