package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/enplerp/backoffice/internal/models"
	"github.com/enplerp/backoffice/internal/monitoring"
	"github.com/enplerp/backoffice/pkg/logger"
)

// AutoBackupJobKey names the single automatic backup job
const AutoBackupJobKey = "auto-backup"

// Scheduler states
const (
	SchedulerIdle  = "IDLE"
	SchedulerArmed = "ARMED"
)

// BackupCreator runs one dump plus retention pass
type BackupCreator interface {
	CreateAndEnforceRetention(ctx context.Context, maxFiles int) (*models.BackupResult, error)
}

// ScheduleConfigSource provides the persisted schedule
type ScheduleConfigSource interface {
	Load() (*models.ScheduleConfig, error)
}

// SchedulerStatus describes the automatic backup job
type SchedulerStatus struct {
	State      string     `json:"state"`
	Expression string     `json:"expression,omitempty"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	PrevRun    *time.Time `json:"prevRun,omitempty"`
}

// BackupScheduler arms at most one cron job that creates backups on the
// configured recurrence. Registering always replaces the previous job.
type BackupScheduler struct {
	cron       *cron.Cron
	creator    BackupCreator
	source     ScheduleConfigSource
	location   *time.Location
	entries    map[string]cron.EntryID
	expression string
	mu         sync.Mutex
}

// NewBackupScheduler creates a scheduler evaluating expressions in loc
func NewBackupScheduler(creator BackupCreator, source ScheduleConfigSource, loc *time.Location) *BackupScheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := CronLogger{}
	return &BackupScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		creator:  creator,
		source:   source,
		location: loc,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start begins firing registered jobs
func (s *BackupScheduler) Start() {
	logger.Info("BACKUP-SCHEDULER: Starting", nil)
	s.cron.Start()
}

// Stop halts the timer. The returned context is done once a running backup
// has finished.
func (s *BackupScheduler) Stop() context.Context {
	logger.Info("BACKUP-SCHEDULER: Stopping", nil)
	return s.cron.Stop()
}

// Reload reads the persisted config and arms or idles the scheduler
func (s *BackupScheduler) Reload() error {
	cfg, err := s.source.Load()
	if err != nil {
		s.Cancel()
		return fmt.Errorf("failed to load backup schedule: %w", err)
	}
	return s.Apply(*cfg)
}

// Apply registers cfg when enabled and cancels the job otherwise
func (s *BackupScheduler) Apply(cfg models.ScheduleConfig) error {
	if !cfg.Enabled {
		s.Cancel()
		return nil
	}
	return s.Register(cfg)
}

// Register replaces any armed job with one firing on cfg's recurrence
func (s *BackupScheduler) Register(cfg models.ScheduleConfig) error {
	expr, err := CronExpression(cfg.Recurrence)
	if err != nil {
		return err
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked()

	maxFiles := cfg.MaxFiles
	id := s.cron.Schedule(schedule, cron.FuncJob(func() { s.runJob(maxFiles) }))
	s.entries[AutoBackupJobKey] = id
	s.expression = expr
	monitoring.SchedulerArmed.Set(1)

	logger.Info("BACKUP-SCHEDULER: Automatic backup armed", map[string]interface{}{
		"schedule":   cfg.String(),
		"expression": expr,
		"max_files":  maxFiles,
		"next_run":   schedule.Next(time.Now().In(s.location)),
	})
	return nil
}

// Cancel removes the armed job, if any
func (s *BackupScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked() {
		logger.Info("BACKUP-SCHEDULER: Automatic backup disabled", nil)
	}
}

func (s *BackupScheduler) removeLocked() bool {
	id, ok := s.entries[AutoBackupJobKey]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, AutoBackupJobKey)
	s.expression = ""
	monitoring.SchedulerArmed.Set(0)
	return true
}

// Status reports whether a job is armed and when it fires next
func (s *BackupScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[AutoBackupJobKey]
	if !ok {
		return SchedulerStatus{State: SchedulerIdle}
	}

	status := SchedulerStatus{State: SchedulerArmed, Expression: s.expression}
	entry := s.cron.Entry(id)
	if !entry.Next.IsZero() {
		next := entry.Next
		status.NextRun = &next
	} else if entry.Schedule != nil {
		// Not started yet
		next := entry.Schedule.Next(time.Now().In(s.location))
		status.NextRun = &next
	}
	if !entry.Prev.IsZero() {
		prev := entry.Prev
		status.PrevRun = &prev
	}
	return status
}

// runJob performs one scheduled backup. Failures are logged and counted;
// the job stays armed for its next fire.
func (s *BackupScheduler) runJob(maxFiles int) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.ScheduledJobFailures.Inc()
			logger.Error("BACKUP-SCHEDULER: Scheduled backup panicked", nil, map[string]interface{}{
				"panic": r,
			})
		}
	}()

	ctx := WithTrigger(context.Background(), TriggerScheduled)
	result, err := s.creator.CreateAndEnforceRetention(ctx, maxFiles)
	if err != nil {
		monitoring.ScheduledJobFailures.Inc()
		logger.Error("BACKUP-SCHEDULER: Scheduled backup failed", err, map[string]interface{}{
			"max_files": maxFiles,
		})
		return
	}

	logger.Info("BACKUP-SCHEDULER: Scheduled backup created", map[string]interface{}{
		"file":    result.Filename,
		"deleted": len(result.Deleted),
	})
}

// CronLogger adapts pkg/logger to cron.Logger
type CronLogger struct{}

// Info logs routine cron activity at debug level
func (CronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("BACKUP-SCHEDULER: cron "+msg, kvFields(keysAndValues))
}

// Error logs cron errors such as recovered panics
func (CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("BACKUP-SCHEDULER: cron "+msg, err, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := strings.ReplaceAll(fmt.Sprint(keysAndValues[i]), " ", "_")
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
