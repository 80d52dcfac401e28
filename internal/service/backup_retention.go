package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/enplerp/backoffice/internal/models"
	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

// BackupRetention keeps the N most recent archives and deletes the rest
type BackupRetention struct {
	guard   *PathGuard
	cleanMu sync.Mutex // Prevents concurrent retention passes
}

// NewBackupRetention creates a retention enforcer for the guard's directory
func NewBackupRetention(guard *PathGuard) *BackupRetention {
	return &BackupRetention{guard: guard}
}

// ClampKeepCount bounds a retention count to [1, MaxRetainedFiles]
func ClampKeepCount(keep int) int {
	if keep < 1 {
		return 1
	}
	if keep > config.MaxRetainedFiles {
		return config.MaxRetainedFiles
	}
	return keep
}

// Enforce deletes every archive outside the keepCount newest ones. A file
// that is already gone counts as handled. Other delete failures do not stop
// the pass; they are joined into the returned error.
func (r *BackupRetention) Enforce(keepCount int) (*models.RetentionResult, error) {
	r.cleanMu.Lock()
	defer r.cleanMu.Unlock()

	keep := ClampKeepCount(keepCount)
	result := &models.RetentionResult{DeletedNames: []string{}}

	archives, err := scanArchives(r.guard.Dir())
	if err != nil {
		return result, fmt.Errorf("failed to list backups: %w", err)
	}
	if len(archives) <= keep {
		return result, nil
	}

	var errs []error
	for _, archive := range archives[keep:] {
		path, err := r.guard.Resolve(archive.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", archive.Name, err))
			continue
		}

		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logger.Warn("BACKUP-RETENTION: Failed to delete old backup", map[string]interface{}{
				"file":  archive.Name,
				"error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", archive.Name, err))
			continue
		}

		result.DeletedNames = append(result.DeletedNames, archive.Name)
	}

	if len(result.DeletedNames) > 0 {
		logger.Info("BACKUP-RETENTION: Old backups deleted", map[string]interface{}{
			"keep":    keep,
			"deleted": result.DeletedNames,
		})
	}

	return result, errors.Join(errs...)
}

// scanArchives lists safe archive files newest first. Equal modification
// times are ordered by name so repeated scans agree.
func scanArchives(dir string) ([]models.BackupArchive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.BackupArchive{}, nil
		}
		return nil, err
	}

	archives := make([]models.BackupArchive, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsSafeName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		archives = append(archives, models.BackupArchive{
			Name:       entry.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sortNewestFirst(archives)
	return archives, nil
}

func sortNewestFirst(archives []models.BackupArchive) {
	sort.Slice(archives, func(i, j int) bool {
		a, b := archives[i].ModifiedAt, archives[j].ModifiedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return archives[i].Name > archives[j].Name
	})
}

// modifiedAfter filters archives in place to those modified at or after cutoff
func modifiedAfter(archives []models.BackupArchive, cutoff time.Time) []models.BackupArchive {
	kept := archives[:0]
	for _, a := range archives {
		if !a.ModifiedAt.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}
