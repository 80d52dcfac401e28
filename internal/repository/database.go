package repository

import (
	"fmt"
	"net/url"

	"github.com/enplerp/backoffice/internal/models"
	"github.com/enplerp/backoffice/pkg/config"
	applog "github.com/enplerp/backoffice/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var dbProvider DatabaseProvider

// InitDB initializes the database connection
func InitDB(cfg *config.Config) error {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for PostgreSQL")
	}

	applog.Info("Connecting to PostgreSQL", map[string]interface{}{
		"url": maskPassword(cfg.DatabaseURL),
	})

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return UseDB(db)
}

// UseDB installs an already opened connection and migrates the backup tables
func UseDB(db *gorm.DB) error {
	provider := NewGormProvider(db)
	if err := provider.Migrate(&models.BackupScheduleConfig{}, &models.SystemEvent{}); err != nil {
		return fmt.Errorf("failed to migrate backup tables: %w", err)
	}

	DB = db
	dbProvider = provider
	applog.Info("Database initialized successfully", nil)
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// GetDBProvider returns the database provider instance
func GetDBProvider() DatabaseProvider {
	return dbProvider
}

// maskPassword masks the password in a connection string for logging
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return "****"
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return u.Redacted()
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
