package service

import (
	"fmt"
	"sync"

	"github.com/enplerp/backoffice/internal/events"
	"github.com/enplerp/backoffice/internal/models"
	"github.com/enplerp/backoffice/internal/repository"
	"github.com/enplerp/backoffice/internal/telemetry"
	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

// ScheduleCandidate is an unvalidated schedule as submitted by a client.
// Nil fields are absent.
type ScheduleCandidate struct {
	Enabled        bool   `json:"enabled"`
	RecurrenceType string `json:"recurrenceType"`
	Minute         *int   `json:"minute"`
	Hour           *int   `json:"hour"`
	DayOfWeek      *int   `json:"dayOfWeek"`
	DayOfMonth     *int   `json:"dayOfMonth"`
	Month          *int   `json:"month"`
	MaxFiles       *int   `json:"maxFiles"`
}

// Validate checks that every field the recurrence type needs is present and
// in range. The first problem found is returned as *ValidationError.
func (c ScheduleCandidate) Validate() (models.ScheduleConfig, error) {
	cfg := models.ScheduleConfig{Enabled: c.Enabled}

	if c.MaxFiles == nil {
		return cfg, &ValidationError{Field: "maxFiles", Reason: "is required"}
	}
	if *c.MaxFiles < 1 || *c.MaxFiles > config.MaxRetainedFiles {
		return cfg, &ValidationError{Field: "maxFiles", Reason: fmt.Sprintf("must be between 1 and %d", config.MaxRetainedFiles)}
	}
	cfg.MaxFiles = *c.MaxFiles

	rt := models.RecurrenceType(c.RecurrenceType)
	if !rt.IsValid() {
		return cfg, &ValidationError{Field: "recurrenceType", Reason: "must be one of HOURLY, DAILY, WEEKLY, MONTHLY, YEARLY"}
	}

	minute, err := requireRange("minute", c.Minute, 0, 59)
	if err != nil {
		return cfg, err
	}
	if rt == models.RecurrenceHourly {
		cfg.Recurrence = models.Hourly{Minute: minute}
		return cfg, nil
	}

	hour, err := requireRange("hour", c.Hour, 0, 23)
	if err != nil {
		return cfg, err
	}

	switch rt {
	case models.RecurrenceDaily:
		cfg.Recurrence = models.Daily{Hour: hour, Minute: minute}
	case models.RecurrenceWeekly:
		dow, err := requireRange("dayOfWeek", c.DayOfWeek, 0, 6)
		if err != nil {
			return cfg, err
		}
		cfg.Recurrence = models.Weekly{DayOfWeek: dow, Hour: hour, Minute: minute}
	case models.RecurrenceMonthly:
		dom, err := requireRange("dayOfMonth", c.DayOfMonth, 1, 31)
		if err != nil {
			return cfg, err
		}
		cfg.Recurrence = models.Monthly{DayOfMonth: dom, Hour: hour, Minute: minute}
	case models.RecurrenceYearly:
		dom, err := requireRange("dayOfMonth", c.DayOfMonth, 1, 31)
		if err != nil {
			return cfg, err
		}
		month, err := requireRange("month", c.Month, 1, 12)
		if err != nil {
			return cfg, err
		}
		cfg.Recurrence = models.Yearly{Month: month, DayOfMonth: dom, Hour: hour, Minute: minute}
	}

	return cfg, nil
}

func requireRange(field string, v *int, lo, hi int) (int, error) {
	if v == nil {
		return 0, &ValidationError{Field: field, Reason: "is required"}
	}
	if *v < lo || *v > hi {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return *v, nil
}

// FromRow converts a persisted row into its typed form. A recurrence type
// that matches no known case yields ErrInvalidScheduleType.
func FromRow(row *models.BackupScheduleConfig) (models.ScheduleConfig, error) {
	cfg := models.ScheduleConfig{Enabled: row.Enabled, MaxFiles: row.MaxFiles}

	get := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}

	switch row.RecurrenceType {
	case models.RecurrenceHourly:
		cfg.Recurrence = models.Hourly{Minute: get(row.Minute)}
	case models.RecurrenceDaily:
		cfg.Recurrence = models.Daily{Hour: get(row.Hour), Minute: get(row.Minute)}
	case models.RecurrenceWeekly:
		cfg.Recurrence = models.Weekly{DayOfWeek: get(row.DayOfWeek), Hour: get(row.Hour), Minute: get(row.Minute)}
	case models.RecurrenceMonthly:
		cfg.Recurrence = models.Monthly{DayOfMonth: get(row.DayOfMonth), Hour: get(row.Hour), Minute: get(row.Minute)}
	case models.RecurrenceYearly:
		cfg.Recurrence = models.Yearly{Month: get(row.Month), DayOfMonth: get(row.DayOfMonth), Hour: get(row.Hour), Minute: get(row.Minute)}
	default:
		return cfg, fmt.Errorf("%w: %q", ErrInvalidScheduleType, row.RecurrenceType)
	}
	return cfg, nil
}

// CronExpression maps a recurrence onto a standard 5-field cron expression
// (minute hour day-of-month month day-of-week)
func CronExpression(r models.Recurrence) (string, error) {
	switch v := r.(type) {
	case models.Hourly:
		return fmt.Sprintf("%d * * * *", v.Minute), nil
	case models.Daily:
		return fmt.Sprintf("%d %d * * *", v.Minute, v.Hour), nil
	case models.Weekly:
		return fmt.Sprintf("%d %d * * %d", v.Minute, v.Hour, v.DayOfWeek), nil
	case models.Monthly:
		return fmt.Sprintf("%d %d %d * *", v.Minute, v.Hour, v.DayOfMonth), nil
	case models.Yearly:
		return fmt.Sprintf("%d %d %d %d *", v.Minute, v.Hour, v.DayOfMonth, v.Month), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidScheduleType, r)
	}
}

// ScheduleApplier re-arms the automatic backup for a saved config
type ScheduleApplier interface {
	Apply(cfg models.ScheduleConfig) error
}

// BackupScheduleService loads and saves the automatic backup configuration
type BackupScheduleService struct {
	repo      repository.ScheduleConfigRepositoryInterface
	scheduler ScheduleApplier
	saveMu    sync.Mutex
}

// NewBackupScheduleService creates a new schedule service
func NewBackupScheduleService(repo repository.ScheduleConfigRepositoryInterface) *BackupScheduleService {
	return &BackupScheduleService{repo: repo}
}

// SetScheduler links the scheduler notified on every successful save
func (s *BackupScheduleService) SetScheduler(scheduler ScheduleApplier) {
	s.scheduler = scheduler
}

// Load returns the persisted config, persisting the default on first use
func (s *BackupScheduleService) Load() (*models.ScheduleConfig, error) {
	row, err := s.repo.FindOrCreate(models.DefaultScheduleConfig().ToRow())
	if err != nil {
		return nil, fmt.Errorf("failed to load backup schedule: %w", err)
	}

	cfg, err := FromRow(row)
	if err != nil {
		logger.Error("BACKUP-SCHEDULE: Persisted schedule is corrupt", err, map[string]interface{}{
			"recurrence_type": row.RecurrenceType,
		})
		telemetry.CaptureError(err, "backup_schedule", map[string]interface{}{
			"recurrence_type": string(row.RecurrenceType),
		})
		return nil, err
	}
	return &cfg, nil
}

// Save validates and persists candidate, then re-arms the scheduler
func (s *BackupScheduleService) Save(candidate ScheduleCandidate) (*models.ScheduleConfig, error) {
	cfg, err := candidate.Validate()
	if err != nil {
		return nil, err
	}
	// Reject before persisting anything the scheduler could not register
	if _, err := CronExpression(cfg.Recurrence); err != nil {
		return nil, err
	}

	// Upsert and re-registration happen as one step per save
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.repo.Upsert(cfg.ToRow()); err != nil {
		return nil, fmt.Errorf("failed to save backup schedule: %w", err)
	}

	logger.Info("BACKUP-SCHEDULE: Schedule saved", map[string]interface{}{
		"enabled":   cfg.Enabled,
		"schedule":  cfg.String(),
		"max_files": cfg.MaxFiles,
	})
	events.PublishScheduleChanged(cfg.Enabled, cfg.String(), cfg.MaxFiles)

	if s.scheduler != nil {
		if err := s.scheduler.Apply(cfg); err != nil {
			return &cfg, fmt.Errorf("schedule saved but could not be applied: %w", err)
		}
	}
	return &cfg, nil
}
