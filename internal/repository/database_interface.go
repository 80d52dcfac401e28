package repository

import (
	"github.com/enplerp/backoffice/internal/models"
	"gorm.io/gorm"
)

// DatabaseProvider abstracts the connection so health checks and tests do
// not depend on a specific driver
type DatabaseProvider interface {
	GetDB() *gorm.DB
	Migrate(models ...interface{}) error
	Close() error
	Ping() error
}

// GormProvider implements DatabaseProvider for any gorm dialect
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider wraps an open connection
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

func (p *GormProvider) GetDB() *gorm.DB {
	return p.db
}

func (p *GormProvider) Migrate(models ...interface{}) error {
	return p.db.AutoMigrate(models...)
}

func (p *GormProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *GormProvider) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Repository interfaces for clean architecture

type ScheduleConfigRepositoryInterface interface {
	Find() (*models.BackupScheduleConfig, error)
	FindOrCreate(defaults *models.BackupScheduleConfig) (*models.BackupScheduleConfig, error)
	Upsert(row *models.BackupScheduleConfig) error
}

// Ensure BackupScheduleRepository implements the interface
var _ ScheduleConfigRepositoryInterface = (*BackupScheduleRepository)(nil)
