package repository

import (
	"testing"

	"github.com/enplerp/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupScheduleTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // each :memory: connection is its own database
	require.NoError(t, UseDB(db))
	return db
}

func TestBackupScheduleRepository_FindEmpty(t *testing.T) {
	repo := NewBackupScheduleRepository(setupScheduleTestDB(t))

	row, err := repo.Find()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestBackupScheduleRepository_FindOrCreateIsStable(t *testing.T) {
	db := setupScheduleTestDB(t)
	repo := NewBackupScheduleRepository(db)
	defaults := models.DefaultScheduleConfig().ToRow()

	first, err := repo.FindOrCreate(defaults)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleConfigID, first.ID)
	assert.False(t, first.Enabled)
	assert.Equal(t, models.RecurrenceDaily, first.RecurrenceType)
	require.NotNil(t, first.Hour)
	assert.Equal(t, 2, *first.Hour)
	assert.Equal(t, 5, first.MaxFiles)

	second, err := repo.FindOrCreate(models.ScheduleConfig{
		Enabled:    true,
		Recurrence: models.Hourly{Minute: 15},
		MaxFiles:   9,
	}.ToRow())
	require.NoError(t, err)
	assert.Equal(t, first.RecurrenceType, second.RecurrenceType)
	assert.Equal(t, 5, second.MaxFiles)

	var count int64
	require.NoError(t, db.Model(&models.BackupScheduleConfig{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestBackupScheduleRepository_UpsertNullsUnusedFields(t *testing.T) {
	db := setupScheduleTestDB(t)
	repo := NewBackupScheduleRepository(db)

	yearly := models.ScheduleConfig{
		Enabled:    true,
		Recurrence: models.Yearly{Month: 3, DayOfMonth: 14, Hour: 4, Minute: 45},
		MaxFiles:   12,
	}
	require.NoError(t, repo.Upsert(yearly.ToRow()))

	hourly := models.ScheduleConfig{
		Enabled:    false,
		Recurrence: models.Hourly{Minute: 5},
		MaxFiles:   3,
	}
	require.NoError(t, repo.Upsert(hourly.ToRow()))

	row, err := repo.Find()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, models.RecurrenceHourly, row.RecurrenceType)
	assert.False(t, row.Enabled)
	assert.Equal(t, 3, row.MaxFiles)
	require.NotNil(t, row.Minute)
	assert.Equal(t, 5, *row.Minute)
	assert.Nil(t, row.Hour)
	assert.Nil(t, row.DayOfMonth)
	assert.Nil(t, row.Month)

	var count int64
	require.NoError(t, db.Model(&models.BackupScheduleConfig{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMaskPassword(t *testing.T) {
	masked := maskPassword("postgres://erp:secret@db:5432/enplerp")
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "erp:")
	assert.Contains(t, masked, "@db:5432/enplerp")
	assert.Equal(t, "****", maskPassword("host=db password=secret"))
}
