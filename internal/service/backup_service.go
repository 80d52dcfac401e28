package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enplerp/backoffice/internal/events"
	"github.com/enplerp/backoffice/internal/models"
	"github.com/enplerp/backoffice/internal/monitoring"
	"github.com/enplerp/backoffice/internal/telemetry"
	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

// Backup triggers, used as metric labels
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Listing bounds
const (
	MinPerPage  = 5
	MaxPerPage  = 50
	DefaultPage = 1
	MaxListDays = 365
)

const archiveTimestampLayout = "2006-01-02T15:04:05.000Z"

var unsafeUploadChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type ctxKey int

const (
	triggerKey ctxKey = iota
	actorKey
)

// WithTrigger tags ctx with what started a dump
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey, trigger)
}

// WithActor tags ctx with the user acting on archives
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}

func actorFrom(ctx context.Context) string {
	a, _ := ctx.Value(actorKey).(string)
	return a
}

// ListOptions selects one page of the archive listing. Days, when set,
// keeps only archives modified within that many days.
type ListOptions struct {
	Page    int
	PerPage int
	Days    *int
}

// BackupService owns the backup directory: it creates dumps, lists, serves,
// deletes and restores archives
type BackupService struct {
	guard      *PathGuard
	runner     CommandRunner
	retention  *BackupRetention
	replicator *OffsiteReplicator

	dbName        string
	osUser        string
	sudoPath      string
	pgDumpPath    string
	pgRestorePath string

	opMu sync.Mutex // Serializes pg_dump and pg_restore against the database
	now  func() time.Time
}

// NewBackupService creates a new backup service. replicator may be nil.
func NewBackupService(
	cfg *config.Config,
	guard *PathGuard,
	runner CommandRunner,
	retention *BackupRetention,
	replicator *OffsiteReplicator,
) *BackupService {
	return &BackupService{
		guard:         guard,
		runner:        runner,
		retention:     retention,
		replicator:    replicator,
		dbName:        cfg.BackupDBName,
		osUser:        cfg.BackupOSUser,
		sudoPath:      cfg.SudoPath,
		pgDumpPath:    cfg.PgDumpPath,
		pgRestorePath: cfg.PgRestorePath,
		now:           time.Now,
	}
}

// Dir returns the backup directory
func (s *BackupService) Dir() string {
	return s.guard.Dir()
}

// ArchiveName builds the archive filename for a dump taken at t
func ArchiveName(dbName string, t time.Time) string {
	ts := t.UTC().Format(archiveTimestampLayout)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("%s_%s%s", dbName, ts, BackupExtension)
}

func (s *BackupService) ensureDir() error {
	if err := os.MkdirAll(s.guard.Dir(), 0750); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return nil
}

// CreateAndEnforceRetention dumps the database into a new archive and then
// keeps only the maxFiles newest archives. If the dump fails no archive is
// deleted and the *ProcessError is returned as is.
func (s *BackupService) CreateAndEnforceRetention(ctx context.Context, maxFiles int) (*models.BackupResult, error) {
	if maxFiles < 1 || maxFiles > config.MaxRetainedFiles {
		return nil, fmt.Errorf("%w: maxFiles must be between 1 and %d", ErrInvalidArgument, config.MaxRetainedFiles)
	}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	trigger := triggerFrom(ctx)
	filename := ArchiveName(s.dbName, s.now())
	path, err := s.guard.Resolve(filename)
	if err != nil {
		return nil, err
	}

	logger.Info("BACKUP-SERVICE: Starting database dump", map[string]interface{}{
		"database": s.dbName,
		"file":     filename,
		"trigger":  trigger,
	})

	startTime := time.Now()
	args := []string{"-n", "-u", s.osUser, s.pgDumpPath, "-Fc", "-b", "-f", path, s.dbName}
	if err := s.runner.Run(ctx, s.sudoPath, args...); err != nil {
		monitoring.RecordBackup(trigger, false, 0)
		exitCode := -1
		var procErr *ProcessError
		if errors.As(err, &procErr) {
			exitCode = procErr.ExitCode
			logger.Error("BACKUP-SERVICE: pg_dump failed", err, map[string]interface{}{
				"file":      filename,
				"exit_code": procErr.ExitCode,
				"timed_out": procErr.TimedOut,
				"stderr":    procErr.Stderr,
			})
		} else {
			logger.Error("BACKUP-SERVICE: pg_dump failed", err, map[string]interface{}{
				"file": filename,
			})
		}
		// A partial file is not a usable archive
		_ = os.Remove(path)
		events.PublishBackupFailed(filename, exitCode, trigger)
		return nil, err
	}
	duration := time.Since(startTime)

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	monitoring.RecordBackup(trigger, true, duration.Seconds())

	retained, err := s.retention.Enforce(maxFiles)
	if err != nil {
		logger.Warn("BACKUP-SERVICE: Retention pass incomplete", map[string]interface{}{
			"error": err.Error(),
		})
	}
	deleted := retained.DeletedNames
	if len(deleted) > 0 {
		monitoring.RetentionDeletions.Add(float64(len(deleted)))
		events.PublishBackupPruned(ClampKeepCount(maxFiles), deleted)
	}

	logger.Info("BACKUP-SERVICE: Backup completed", map[string]interface{}{
		"file":       filename,
		"size_mb":    float64(size) / 1024 / 1024,
		"duration_s": duration.Seconds(),
		"pruned":     len(deleted),
	})
	events.PublishBackupCreated(filename, size, duration.Seconds(), deleted)

	if s.replicator != nil {
		if err := s.replicator.Replicate(path, filename, maxFiles); err != nil {
			logger.Warn("BACKUP-SERVICE: Offsite replication failed, archive kept locally", map[string]interface{}{
				"file":  filename,
				"error": err.Error(),
			})
		}
	}

	s.refreshInventory()

	return &models.BackupResult{
		Filename: filename,
		Path:     path,
		Deleted:  deleted,
	}, nil
}

// List returns one page of archives, newest first
func (s *BackupService) List(opts ListOptions) (*models.BackupPage, error) {
	perPage := clamp(opts.PerPage, MinPerPage, MaxPerPage)
	page := opts.Page
	if page < 1 {
		page = DefaultPage
	}

	archives, err := scanArchives(s.guard.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	setInventory(archives)

	if opts.Days != nil {
		days := clamp(*opts.Days, 1, MaxListDays)
		archives = modifiedAfter(archives, s.now().Add(-time.Duration(days)*24*time.Hour))
	}

	total := len(archives)
	start := (page - 1) * perPage
	items := []models.BackupArchive{}
	if start < total {
		end := start + perPage
		if end > total {
			end = total
		}
		items = append(items, archives[start:end]...)
	}

	return &models.BackupPage{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Items:   items,
	}, nil
}

// Delete removes one archive
func (s *BackupService) Delete(ctx context.Context, name string) (*models.DeleteResult, error) {
	path, err := s.guard.Resolve(name)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete backup: %w", err)
	}

	logger.Info("BACKUP-SERVICE: Backup deleted", map[string]interface{}{
		"file": name,
		"user": actorFrom(ctx),
	})
	events.PublishBackupDeleted(name, actorFrom(ctx))
	s.refreshInventory()

	return &models.DeleteResult{Deleted: name}, nil
}

// DownloadPath returns the filesystem path of an existing archive
func (s *BackupService) DownloadPath(name string) (string, error) {
	path, err := s.guard.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := s.guard.Confine(path); err != nil {
		return "", err
	}
	return path, nil
}

// Restore replays an existing archive into the database with pg_restore
// --clean. A failure leaves the database in an undefined, possibly partly
// restored state and is returned as *RestoreFailedError.
func (s *BackupService) Restore(ctx context.Context, name string) (*models.RestoreResult, error) {
	return s.restore(ctx, name, "existing")
}

func (s *BackupService) restore(ctx context.Context, name, source string) (*models.RestoreResult, error) {
	path, err := s.DownloadPath(name)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	// A dump that held opMu may have pruned the archive while we waited
	if err := s.guard.Confine(path); err != nil {
		return nil, err
	}

	logger.Warn("BACKUP-SERVICE: Restoring database from archive", map[string]interface{}{
		"database": s.dbName,
		"file":     name,
		"user":     actorFrom(ctx),
	})

	startTime := time.Now()
	args := []string{"-n", "-u", s.osUser, s.pgRestorePath, "--clean", "--if-exists", "--no-owner", "-d", s.dbName, path}
	if err := s.runner.Run(ctx, s.sudoPath, args...); err != nil {
		monitoring.RecordRestore(source, false)

		var procErr *ProcessError
		if !errors.As(err, &procErr) {
			procErr = &ProcessError{Command: s.sudoPath, Args: args, ExitCode: -1, Err: err}
		}
		restoreErr := &RestoreFailedError{Filename: name, Cause: procErr}

		logger.Error("BACKUP-SERVICE: pg_restore failed", restoreErr, map[string]interface{}{
			"file":      name,
			"exit_code": procErr.ExitCode,
			"timed_out": procErr.TimedOut,
			"stderr":    procErr.Stderr,
		})
		telemetry.CaptureError(restoreErr, "backup_service", map[string]interface{}{
			"file":      name,
			"exit_code": procErr.ExitCode,
		})
		events.PublishBackupRestoreFailed(name, procErr.ExitCode)
		return nil, restoreErr
	}
	duration := time.Since(startTime)

	monitoring.RecordRestore(source, true)
	logger.Info("BACKUP-SERVICE: Restore completed", map[string]interface{}{
		"file":       name,
		"duration_s": duration.Seconds(),
	})
	events.PublishBackupRestored(name, duration.Seconds())

	return &models.RestoreResult{Restored: name}, nil
}

// SanitizeUploadName replaces every character outside [A-Za-z0-9._-] with _
func SanitizeUploadName(name string) string {
	return unsafeUploadChars.ReplaceAllString(name, "_")
}

// AcceptUpload stores an uploaded archive under its sanitized name,
// replacing any file of that name, and restores it. At most
// MaxUploadBytes are accepted regardless of the declared size.
func (s *BackupService) AcceptUpload(ctx context.Context, originalName string, size int64, src io.Reader) (*models.RestoreResult, error) {
	if !strings.HasSuffix(originalName, BackupExtension) {
		return nil, fmt.Errorf("%w: only %s files can be uploaded", ErrInvalidArgument, BackupExtension)
	}
	if size > config.MaxUploadBytes {
		return nil, ErrPayloadTooLarge
	}

	name := SanitizeUploadName(originalName)
	path, err := s.guard.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	written, err := s.writeAtomically(path, src)
	if err != nil {
		return nil, err
	}

	logger.Info("BACKUP-SERVICE: Upload stored", map[string]interface{}{
		"file":          name,
		"original_name": originalName,
		"size_mb":       float64(written) / 1024 / 1024,
		"user":          actorFrom(ctx),
	})
	events.PublishBackupUploaded(name, written)
	s.refreshInventory()

	return s.restore(ctx, name, "upload")
}

// writeAtomically copies src into a hidden temp file next to path and
// renames it into place once the whole body was received
func (s *BackupService) writeAtomically(path string, src io.Reader) (int64, error) {
	tmpPath := filepath.Join(s.guard.Dir(), ".upload-"+uuid.New().String()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(tmp, io.LimitReader(src, config.MaxUploadBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if written > config.MaxUploadBytes {
		_ = os.Remove(tmpPath)
		return 0, ErrPayloadTooLarge
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to store upload: %w", err)
	}
	return written, nil
}

// Archives returns every archive in the backup directory, newest first
func (s *BackupService) Archives() ([]models.BackupArchive, error) {
	return scanArchives(s.guard.Dir())
}

func (s *BackupService) refreshInventory() {
	archives, err := scanArchives(s.guard.Dir())
	if err != nil {
		return
	}
	setInventory(archives)
}

func setInventory(archives []models.BackupArchive) {
	var total int64
	for _, a := range archives {
		total += a.SizeBytes
	}
	monitoring.SetArchiveInventory(len(archives), total)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
