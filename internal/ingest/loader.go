// Package ingest loads gzip-compressed balance-sync log exports into the raw
// log table.
package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// Store is the part of the persistence gateway the loader writes to.
type Store interface {
	SaveRawLog(ctx context.Context, raw *model.RawLog) (bool, error)
	GetRawLogFilenames(ctx context.Context) ([]string, error)
}

// Stats summarizes one load. Unreadable logs failed to decompress and were
// not stored, so a later run retries them.
type Stats struct {
	Loaded     []string
	Skipped    []string
	Unreadable []string
}

// Loader walks an export directory and stores each log it finds once.
type Loader struct {
	store    Store
	now      func() time.Time
	progress func(name string)
}

// Option configures a Loader.
type Option func(*Loader)

// WithProgress registers a callback invoked after each file is handled.
func WithProgress(fn func(name string)) Option {
	return func(l *Loader) { l.progress = fn }
}

// WithClock overrides the load timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// NewLoader creates a loader writing to store.
func NewLoader(store Store, opts ...Option) *Loader {
	l := &Loader{store: store, now: time.Now, progress: func(string) {}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discover lists the .gz files under root in walk order.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == ".DS_Store" || !strings.HasSuffix(d.Name(), ".gz") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}

// LogName derives the stored filename of a log: exports keep one object per
// folder, so the parent folder names it. Files directly under root fall back
// to their own name without the .gz suffix.
func LogName(root, path string) string {
	dir := filepath.Dir(path)
	if filepath.Clean(dir) == filepath.Clean(root) {
		return strings.TrimSuffix(filepath.Base(path), ".gz")
	}
	return filepath.Base(dir)
}

// LoadDir stores every not-yet-loaded log under root. Logs are never
// replaced: a name already present is skipped without being read.
func (l *Loader) LoadDir(ctx context.Context, root string) (*Stats, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}

	existing, err := l.store.GetRawLogFilenames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list loaded logs: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, name := range existing {
		seen[name] = true
	}

	stats := &Stats{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		name := LogName(root, path)
		if seen[name] {
			slog.Debug("Skipping already loaded log", "filename", name, "path", path)
			stats.Skipped = append(stats.Skipped, name)
			l.progress(name)
			continue
		}

		text, err := ReadGzip(path)
		if err != nil {
			slog.Warn("Skipping unreadable log", "filename", name, "path", path, "error", err)
			stats.Unreadable = append(stats.Unreadable, name)
			l.progress(name)
			continue
		}

		inserted, err := l.store.SaveRawLog(ctx, &model.RawLog{
			Filename: name,
			RawText:  text,
			LoadedAt: l.now().UTC(),
		})
		if err != nil {
			return stats, fmt.Errorf("failed to store %s: %w", name, err)
		}
		seen[name] = true
		if inserted {
			slog.Info("Loaded log", "filename", name, "bytes", len(text))
			stats.Loaded = append(stats.Loaded, name)
		} else {
			stats.Skipped = append(stats.Skipped, name)
		}
		l.progress(name)
	}

	return stats, nil
}

// ReadGzip decompresses a log file. Invalid UTF-8 is replaced rather than
// rejected.
func ReadGzip(path string) (string, error) {
	// #nosec G304 - path comes from walking the user-supplied export directory
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to read gzip header of %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	data, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
