package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpoint errors.
var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCheckpointExists   = errors.New("checkpoint already exists")
	ErrInvalidCheckpoint  = errors.New("invalid checkpoint tag")
)

// maxAutoCheckpoints bounds how many automatic snapshots are kept.
const maxAutoCheckpoints = 5

// checkpointTables are counted into every checkpoint's metadata.
var checkpointTables = []string{"raw_logs", "transactions", "reconcile_events", "failures"}

// CheckpointMetadata describes one snapshot. The checkpoint_metadata table of
// the live database is the index; the snapshot file itself is <ID>.db.
type CheckpointMetadata struct {
	CreatedAt     time.Time
	RowCounts     map[string]int
	ID            string
	Description   string
	FileSize      int64
	SchemaVersion int
	IsAuto        bool
}

// CheckpointManager snapshots the database next to it so a reprocessing run
// can be undone by hand.
type CheckpointManager struct {
	db             *sql.DB
	now            func() time.Time
	checkpointsDir string
}

// NewCheckpointManager stores snapshots in a checkpoints directory beside dbPath.
func NewCheckpointManager(db *sql.DB, dbPath string) (*CheckpointManager, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	dir := filepath.Join(filepath.Dir(absPath), "checkpoints")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &CheckpointManager{db: db, checkpointsDir: dir, now: time.Now}, nil
}

// Create snapshots the database under tag. An empty tag is replaced by a
// timestamped one.
func (cm *CheckpointManager) Create(ctx context.Context, tag, description string) (*CheckpointMetadata, error) {
	if tag == "" {
		tag = "checkpoint-" + cm.now().Format("2006-01-02-150405")
	}
	return cm.create(ctx, tag, description, false)
}

// AutoCheckpoint snapshots the database before operation runs and prunes
// automatic snapshots beyond the newest few.
func (cm *CheckpointManager) AutoCheckpoint(ctx context.Context, operation string) (*CheckpointMetadata, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, cm.now().Format("2006-01-02-150405"))
	meta, err := cm.create(ctx, tag, "Automatic checkpoint before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create auto-checkpoint: %w", err)
	}
	if err := cm.pruneAuto(ctx); err != nil {
		slog.Warn("Failed to prune auto-checkpoints", "error", err)
	}
	return meta, nil
}

func (cm *CheckpointManager) create(ctx context.Context, tag, description string, isAuto bool) (*CheckpointMetadata, error) {
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	path := cm.snapshotPath(tag)
	if _, err := os.Stat(path); err == nil {
		return nil, ErrCheckpointExists
	}
	if _, err := cm.lookup(ctx, tag); err == nil {
		return nil, ErrCheckpointExists
	}

	meta := CheckpointMetadata{
		ID:          tag,
		CreatedAt:   cm.now().UTC(),
		Description: description,
		RowCounts:   make(map[string]int, len(checkpointTables)),
		IsAuto:      isAuto,
	}
	if err := cm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&meta.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	for _, table := range checkpointTables {
		n, err := countRows(ctx, cm.db, table)
		if err != nil {
			return nil, err
		}
		meta.RowCounts[table] = n
	}

	if err := cm.vacuumInto(ctx, path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	meta.FileSize = info.Size()

	if err := cm.index(ctx, meta); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Error("Failed to remove unindexed checkpoint", "path", path, "error", rmErr)
		}
		return nil, err
	}
	return &meta, nil
}

// List returns all checkpoints, newest first.
func (cm *CheckpointManager) List(ctx context.Context) ([]CheckpointMetadata, error) {
	rows, err := cm.db.QueryContext(ctx, `
		SELECT id, created_at, description, file_size, row_counts, schema_version, is_auto
		FROM checkpoint_metadata
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []CheckpointMetadata
	for rows.Next() {
		meta, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *meta)
	}
	return list, rows.Err()
}

// Delete removes a checkpoint's snapshot and index entry.
func (cm *CheckpointManager) Delete(ctx context.Context, tag string) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	if _, err := cm.lookup(ctx, tag); err != nil {
		return err
	}

	if err := os.Remove(cm.snapshotPath(tag)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}
	if _, err := cm.db.ExecContext(ctx, "DELETE FROM checkpoint_metadata WHERE id = ?", tag); err != nil {
		return fmt.Errorf("failed to remove checkpoint %s from index: %w", tag, err)
	}
	return nil
}

func (cm *CheckpointManager) pruneAuto(ctx context.Context) error {
	rows, err := cm.db.QueryContext(ctx, `
		SELECT id FROM checkpoint_metadata
		WHERE is_auto = 1
		ORDER BY created_at DESC, id DESC
		LIMIT -1 OFFSET ?`, maxAutoCheckpoints)
	if err != nil {
		return fmt.Errorf("failed to find stale auto-checkpoints: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		stale = append(stale, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var errs []error
	for _, id := range stale {
		errs = append(errs, cm.Delete(ctx, id))
	}
	return errors.Join(errs...)
}

func (cm *CheckpointManager) lookup(ctx context.Context, tag string) (*CheckpointMetadata, error) {
	row := cm.db.QueryRowContext(ctx, `
		SELECT id, created_at, description, file_size, row_counts, schema_version, is_auto
		FROM checkpoint_metadata WHERE id = ?`, tag)
	meta, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckpointNotFound
	}
	return meta, err
}

func (cm *CheckpointManager) index(ctx context.Context, meta CheckpointMetadata) error {
	counts, err := json.Marshal(meta.RowCounts)
	if err != nil {
		return fmt.Errorf("failed to encode row counts: %w", err)
	}
	_, err = cm.db.ExecContext(ctx, `
		INSERT INTO checkpoint_metadata
		(id, created_at, description, file_size, row_counts, schema_version, is_auto)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.CreatedAt, meta.Description, meta.FileSize, string(counts), meta.SchemaVersion, meta.IsAuto)
	if err != nil {
		return fmt.Errorf("failed to index checkpoint %s: %w", meta.ID, err)
	}
	return nil
}

// vacuumInto writes a consistent, compacted copy of the live database.
func (cm *CheckpointManager) vacuumInto(ctx context.Context, dest string) error {
	if _, err := cm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if strings.ContainsAny(dest, `'";`) || !filepath.IsAbs(dest) {
		return fmt.Errorf("%w: unsafe snapshot path %q", ErrInvalidCheckpoint, dest)
	}
	// #nosec G201 - dest is absolute and free of quoting characters
	if _, err := cm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}

func (cm *CheckpointManager) snapshotPath(tag string) string {
	return filepath.Join(cm.checkpointsDir, tag+".db")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*CheckpointMetadata, error) {
	var (
		meta        CheckpointMetadata
		description sql.NullString
		counts      string
	)
	err := row.Scan(&meta.ID, &meta.CreatedAt, &description, &meta.FileSize, &counts, &meta.SchemaVersion, &meta.IsAuto)
	if err != nil {
		return nil, err
	}
	meta.Description = description.String
	if err := json.Unmarshal([]byte(counts), &meta.RowCounts); err != nil {
		return nil, fmt.Errorf("corrupt row counts for checkpoint %s: %w", meta.ID, err)
	}
	return &meta, nil
}

func validateTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidCheckpoint, tag)
	}
	return nil
}
