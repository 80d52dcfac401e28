package repository

import (
	"errors"

	"github.com/enplerp/backoffice/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BackupScheduleRepository handles the single backup schedule row
type BackupScheduleRepository struct {
	db *gorm.DB
}

// NewBackupScheduleRepository creates a new backup schedule repository
func NewBackupScheduleRepository(db *gorm.DB) *BackupScheduleRepository {
	return &BackupScheduleRepository{db: db}
}

// Find returns the persisted row, or nil if none exists yet
func (r *BackupScheduleRepository) Find() (*models.BackupScheduleConfig, error) {
	var row models.BackupScheduleConfig
	err := r.db.Where("id = ?", models.ScheduleConfigID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindOrCreate returns the persisted row, inserting defaults first if absent
func (r *BackupScheduleRepository) FindOrCreate(defaults *models.BackupScheduleConfig) (*models.BackupScheduleConfig, error) {
	existing, err := r.Find()
	if err != nil || existing != nil {
		return existing, err
	}

	row := *defaults
	row.ID = models.ScheduleConfigID
	// A concurrent first load may have inserted the row in the meantime
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	return r.Find()
}

// Upsert writes the row keyed by the fixed id, overwriting every column so
// fields unused by the new recurrence type become NULL
func (r *BackupScheduleRepository) Upsert(row *models.BackupScheduleConfig) error {
	row.ID = models.ScheduleConfigID
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "recurrence_type", "minute", "hour",
			"day_of_week", "day_of_month", "month", "max_files", "updated_at",
		}),
	}).Create(row).Error
}
