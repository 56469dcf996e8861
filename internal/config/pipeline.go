package config

import (
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/balance-sync-recon/internal/common"
	"github.com/Veraticus/balance-sync-recon/internal/extract"
	"github.com/Veraticus/balance-sync-recon/internal/segment"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

// Configuration keys.
const (
	KeyDatabasePath    = "database.path"
	KeyStrategy        = "extract.strategy"
	KeyCycleMarker     = "extract.cycle_marker"
	KeySnippetLimit    = "extract.snippet_limit"
	KeyRequestIDPolicy = "segment.request_id_policy"
	KeyMarkers         = "segment.markers"
	KeyWorkers         = "pipeline.workers"
	KeyTolerance       = "reconcile.tolerance"
	KeyFailureCSVDir   = "failures.csv_dir"
	KeyRetryAttempts   = "retry.max_attempts"
	KeyRetryDelay      = "retry.initial_delay"
)

// DefaultDatabasePath is where the SQLite store lives unless configured.
const DefaultDatabasePath = "~/.local/share/recon/recon.db"

// Pipeline is the typed configuration of a processing run.
type Pipeline struct {
	CycleMarker     *regexp.Regexp
	DatabasePath    string
	FailureCSVDir   string
	Strategy        extract.Strategy
	RequestIDPolicy segment.RequestIDPolicy
	Markers         []string
	Retry           service.RetryOptions
	SnippetLimit    int
	Workers         int
	Tolerance       float64
}

// SetDefaults registers default values for every pipeline key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath)
	v.SetDefault(KeyStrategy, string(extract.StrategySegment))
	v.SetDefault(KeyCycleMarker, segment.DefaultCycleMarker.String())
	v.SetDefault(KeySnippetLimit, extract.DefaultSnippetLimit)
	v.SetDefault(KeyRequestIDPolicy, string(segment.PolicyExplicitThenInline))
	v.SetDefault(KeyMarkers, segment.DefaultMarkers)
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	v.SetDefault(KeyTolerance, 0.0)
	v.SetDefault(KeyFailureCSVDir, "")
	v.SetDefault(KeyRetryAttempts, 5)
	v.SetDefault(KeyRetryDelay, 50*time.Millisecond)
}

// LoadPipeline reads and validates the pipeline configuration from v.
func LoadPipeline(v *viper.Viper) (*Pipeline, error) {
	strategy, err := extract.ParseStrategy(v.GetString(KeyStrategy))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	policy := segment.RequestIDPolicy(v.GetString(KeyRequestIDPolicy))
	switch policy {
	case segment.PolicyExplicit, segment.PolicyExplicitThenInline:
	default:
		return nil, fmt.Errorf("%w: %s must be %q or %q, got %q", common.ErrInvalidConfig,
			KeyRequestIDPolicy, segment.PolicyExplicit, segment.PolicyExplicitThenInline, policy)
	}

	marker, err := common.CompilePattern(KeyCycleMarker, v.GetString(KeyCycleMarker))
	if err != nil {
		return nil, err
	}

	cfg := &Pipeline{
		CycleMarker:     marker,
		DatabasePath:    ExpandPath(v.GetString(KeyDatabasePath)),
		FailureCSVDir:   ExpandPath(v.GetString(KeyFailureCSVDir)),
		Strategy:        strategy,
		RequestIDPolicy: policy,
		Markers:         v.GetStringSlice(KeyMarkers),
		SnippetLimit:    v.GetInt(KeySnippetLimit),
		Workers:         v.GetInt(KeyWorkers),
		Tolerance:       v.GetFloat64(KeyTolerance),
		Retry: service.RetryOptions{
			MaxAttempts:  v.GetInt(KeyRetryAttempts),
			InitialDelay: v.GetDuration(KeyRetryDelay),
		},
	}

	switch {
	case cfg.DatabasePath == "":
		return nil, fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyDatabasePath)
	case cfg.SnippetLimit <= 0:
		return nil, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeySnippetLimit)
	case cfg.Workers <= 0:
		return nil, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyWorkers)
	case cfg.Tolerance < 0:
		return nil, fmt.Errorf("%w: %s cannot be negative", common.ErrInvalidConfig, KeyTolerance)
	}

	return cfg, nil
}
