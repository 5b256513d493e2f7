// internal/workspace/applier.go
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// Applier writes proposed fixes to disk and restores them from backups. It is
// the only component in the pipeline that mutates workspace files.
type Applier struct {
	logger *zap.Logger
}

var _ schemas.FixApplier = (*Applier)(nil)

// NewApplier creates a new workspace applier.
func NewApplier(logger *zap.Logger) *Applier {
	return &Applier{logger: logger.Named("workspace.applier")}
}

// Apply writes each change's ModifiedContent to disk, recording the prior
// content (or its absence) before every write. The returned BackupSet is
// always non-nil: when a read or write fails mid-set, it holds the entries
// captured so far, and the caller must roll those back. Backup capture always
// precedes the write of the same path.
func (a *Applier) Apply(fix *schemas.FixResult) (*schemas.BackupSet, error) {
	backup := &schemas.BackupSet{Timestamp: time.Now()}

	for _, change := range fix.Changes {
		entry := schemas.BackupEntry{Path: change.Path}
		prior, err := os.ReadFile(change.Path)
		switch {
		case err == nil:
			entry.OriginalContent = string(prior)
			entry.Existed = true
		case os.IsNotExist(err):
			// Absence sentinel: rollback deletes the file.
		default:
			return backup, &schemas.ApplyError{Path: change.Path, Err: fmt.Errorf("reading prior content: %w", err)}
		}
		backup.Files = append(backup.Files, entry)

		if err := os.MkdirAll(filepath.Dir(change.Path), 0o755); err != nil {
			return backup, &schemas.ApplyError{Path: change.Path, Err: fmt.Errorf("creating parent directory: %w", err)}
		}
		if err := os.WriteFile(change.Path, []byte(change.ModifiedContent), 0o644); err != nil {
			return backup, &schemas.ApplyError{Path: change.Path, Err: err}
		}

		a.logger.Debug("Applied change.",
			zap.String("path", change.Path),
			zap.Bool("existed", entry.Existed),
			zap.Int("bytes", len(change.ModifiedContent)))
	}

	a.logger.Info("Fix applied.", zap.Int("files", len(fix.Changes)))
	return backup, nil
}

// Rollback restores a backup set exactly: sentinel entries are deleted
// (already-absent files are fine), everything else is overwritten with its
// original content. Rollback is idempotent. Restore failures are collected
// and surfaced; they mean the workspace may be left mutated, so the caller
// must halt further attempts.
func (a *Applier) Rollback(backup *schemas.BackupSet) error {
	if backup == nil {
		return nil
	}

	var failures []error
	for _, entry := range backup.Files {
		if !entry.Existed {
			if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
				failures = append(failures, &schemas.RollbackError{Path: entry.Path, Err: err})
			}
			continue
		}
		if err := os.WriteFile(entry.Path, []byte(entry.OriginalContent), 0o644); err != nil {
			failures = append(failures, &schemas.RollbackError{Path: entry.Path, Err: err})
		}
	}

	if len(failures) > 0 {
		a.logger.Error("Rollback left the workspace mutated.", zap.Int("failed_entries", len(failures)))
		return errors.Join(failures...)
	}

	a.logger.Info("Workspace restored.", zap.Int("files", len(backup.Files)))
	return nil
}
