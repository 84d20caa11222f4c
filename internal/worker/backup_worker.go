// Package worker turns ledger change notifications into dated backup files.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"rentbook/internal/amqp"
	"rentbook/internal/blob"
	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
)

// BackupWorker snapshots the blob store into BackupDir. One file per day
// is kept up to date; later snapshots of the same day overwrite it.
type BackupWorker struct {
	blobs  blob.Store
	dir    string
	keep   int
	now    func() time.Time
	logger *log.Logger
}

// NewBackupWorker creates the worker. keep limits how many daily files are
// retained; zero keeps all of them.
func NewBackupWorker(blobs blob.Store, dir string, keep int, logger *log.Logger) *BackupWorker {
	if logger == nil {
		logger = log.FromSlog(nil, log.ComponentWorker)
	}
	return &BackupWorker{
		blobs:  blobs,
		dir:    dir,
		keep:   keep,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange processes a single change message from AMQP
func (w *BackupWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldMessageID, msg.ID,
		log.FieldOperation, msg.Operation)

	if _, err := w.Snapshot(ctx); err != nil {
		return fmt.Errorf("snapshot after %s: %w", msg.Operation, err)
	}
	return nil
}

// Snapshot writes the current state to backup_<date>.json and returns the
// file path.
func (w *BackupWorker) Snapshot(ctx context.Context) (string, error) {
	store := ledger.New(ctx, w.blobs, ledger.WithClock(w.now), ledger.WithLogger(w.logger))
	backup := store.Export()

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	path := filepath.Join(w.dir, core.BackupFileName(backup.ExportDate))
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "Backup written",
		log.FieldFile, path,
		"properties", len(backup.Properties),
		"expenses", len(backup.Expenses))

	if err := w.prune(); err != nil {
		w.logger.WarnContext(ctx, "Failed to prune old backups", log.FieldError, err)
	}
	return path, nil
}

// RunPeriodic takes a snapshot every interval until ctx is done, so days
// without any change still get a backup.
func (w *BackupWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Snapshot(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic backup failed", log.FieldError, err)
			}
		}
	}
}

// Backups lists backup files in the directory, newest first.
func (w *BackupWorker) Backups() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(w.dir, "backup_*.json"))
	if err != nil {
		return nil, err
	}
	// The date layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

func (w *BackupWorker) prune() error {
	if w.keep <= 0 {
		return nil
	}
	files, err := w.Backups()
	if err != nil {
		return err
	}
	for _, f := range files[min(w.keep, len(files)):] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename backup: %w", err)
	}
	return nil
}
