package models

import (
	"fmt"
	"time"
)

// ScheduleConfigID is the primary key of the single schedule row
const ScheduleConfigID uint = 1

// RecurrenceType is the unit of periodicity of the automatic backup
type RecurrenceType string

const (
	RecurrenceHourly  RecurrenceType = "HOURLY"
	RecurrenceDaily   RecurrenceType = "DAILY"
	RecurrenceWeekly  RecurrenceType = "WEEKLY"
	RecurrenceMonthly RecurrenceType = "MONTHLY"
	RecurrenceYearly  RecurrenceType = "YEARLY"
)

// IsValid checks if the recurrence type is known
func (r RecurrenceType) IsValid() bool {
	switch r {
	case RecurrenceHourly, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	default:
		return false
	}
}

// BackupScheduleConfig is the persisted automatic backup configuration.
// Exactly one row exists, identified by ScheduleConfigID. Columns that the
// recurrence type does not use are stored as NULL.
type BackupScheduleConfig struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Enabled        bool           `gorm:"default:false;not null" json:"enabled"`
	RecurrenceType RecurrenceType `gorm:"size:16;default:'DAILY';not null" json:"recurrenceType"`
	Minute         *int           `json:"minute"`
	Hour           *int           `json:"hour"`
	DayOfWeek      *int           `json:"dayOfWeek"`
	DayOfMonth     *int           `json:"dayOfMonth"`
	Month          *int           `json:"month"`
	MaxFiles       int            `gorm:"default:5;not null" json:"maxFiles"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name
func (BackupScheduleConfig) TableName() string {
	return "backup_schedule_configs"
}

// Recurrence is one of Hourly, Daily, Weekly, Monthly or Yearly. Each variant
// carries only the time fields its recurrence type uses.
type Recurrence interface {
	Type() RecurrenceType
	isRecurrence()
}

type Hourly struct {
	Minute int
}

type Daily struct {
	Hour   int
	Minute int
}

type Weekly struct {
	DayOfWeek int // 0 = Sunday
	Hour      int
	Minute    int
}

type Monthly struct {
	DayOfMonth int
	Hour       int
	Minute     int
}

type Yearly struct {
	Month      int
	DayOfMonth int
	Hour       int
	Minute     int
}

func (Hourly) Type() RecurrenceType  { return RecurrenceHourly }
func (Daily) Type() RecurrenceType   { return RecurrenceDaily }
func (Weekly) Type() RecurrenceType  { return RecurrenceWeekly }
func (Monthly) Type() RecurrenceType { return RecurrenceMonthly }
func (Yearly) Type() RecurrenceType  { return RecurrenceYearly }

func (Hourly) isRecurrence()  {}
func (Daily) isRecurrence()   {}
func (Weekly) isRecurrence()  {}
func (Monthly) isRecurrence() {}
func (Yearly) isRecurrence()  {}

// ScheduleConfig is the validated, typed form of BackupScheduleConfig
type ScheduleConfig struct {
	Enabled    bool
	Recurrence Recurrence
	MaxFiles   int
}

// DefaultScheduleConfig is used when no row has been persisted yet:
// disabled, daily at 02:00, keep 5 archives.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Enabled:    false,
		Recurrence: Daily{Hour: 2, Minute: 0},
		MaxFiles:   5,
	}
}

// ToRow flattens the config into its persisted form
func (c ScheduleConfig) ToRow() *BackupScheduleConfig {
	row := &BackupScheduleConfig{
		ID:             ScheduleConfigID,
		Enabled:        c.Enabled,
		RecurrenceType: c.Recurrence.Type(),
		MaxFiles:       c.MaxFiles,
	}

	switch r := c.Recurrence.(type) {
	case Hourly:
		row.Minute = intPtr(r.Minute)
	case Daily:
		row.Hour, row.Minute = intPtr(r.Hour), intPtr(r.Minute)
	case Weekly:
		row.Hour, row.Minute = intPtr(r.Hour), intPtr(r.Minute)
		row.DayOfWeek = intPtr(r.DayOfWeek)
	case Monthly:
		row.Hour, row.Minute = intPtr(r.Hour), intPtr(r.Minute)
		row.DayOfMonth = intPtr(r.DayOfMonth)
	case Yearly:
		row.Hour, row.Minute = intPtr(r.Hour), intPtr(r.Minute)
		row.DayOfMonth = intPtr(r.DayOfMonth)
		row.Month = intPtr(r.Month)
	}

	return row
}

// ScheduleView is the JSON shape of a schedule config returned to clients
type ScheduleView struct {
	Enabled        bool           `json:"enabled"`
	RecurrenceType RecurrenceType `json:"recurrenceType"`
	Minute         *int           `json:"minute"`
	Hour           *int           `json:"hour"`
	DayOfWeek      *int           `json:"dayOfWeek"`
	DayOfMonth     *int           `json:"dayOfMonth"`
	Month          *int           `json:"month"`
	MaxFiles       int            `json:"maxFiles"`
}

// View returns the client-facing representation of the config
func (c ScheduleConfig) View() ScheduleView {
	row := c.ToRow()
	return ScheduleView{
		Enabled:        row.Enabled,
		RecurrenceType: row.RecurrenceType,
		Minute:         row.Minute,
		Hour:           row.Hour,
		DayOfWeek:      row.DayOfWeek,
		DayOfMonth:     row.DayOfMonth,
		Month:          row.Month,
		MaxFiles:       row.MaxFiles,
	}
}

// String renders the recurrence for log lines, e.g. "WEEKLY dow=0 02:30"
func (c ScheduleConfig) String() string {
	switch r := c.Recurrence.(type) {
	case Hourly:
		return fmt.Sprintf("HOURLY :%02d", r.Minute)
	case Daily:
		return fmt.Sprintf("DAILY %02d:%02d", r.Hour, r.Minute)
	case Weekly:
		return fmt.Sprintf("WEEKLY dow=%d %02d:%02d", r.DayOfWeek, r.Hour, r.Minute)
	case Monthly:
		return fmt.Sprintf("MONTHLY dom=%d %02d:%02d", r.DayOfMonth, r.Hour, r.Minute)
	case Yearly:
		return fmt.Sprintf("YEARLY %02d-%02d %02d:%02d", r.Month, r.DayOfMonth, r.Hour, r.Minute)
	default:
		return "UNKNOWN"
	}
}

func intPtr(v int) *int {
	return &v
}
