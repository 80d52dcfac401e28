package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/enplerp/backoffice/internal/models"
)

func setupDatabaseStorage(t *testing.T) *DatabaseEventStorage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.SystemEvent{}))
	return NewDatabaseEventStorage(db)
}

func TestDatabaseEventStorage_StoreAndQuery(t *testing.T) {
	store := setupDatabaseStorage(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := []Event{
		{ID: "e1", Type: EventBackupCreated, Timestamp: base, Source: "backup_service", Archive: "a.backup", Data: map[string]interface{}{"size_bytes": 10}},
		{ID: "e2", Type: EventBackupFailed, Timestamp: base.Add(time.Minute), Source: "backup_service", Archive: "b.backup"},
		{ID: "e3", Type: EventBackupDeleted, Timestamp: base.Add(2 * time.Minute), Source: "backup_service", Archive: "a.backup", UserID: "admin-1"},
	}
	for _, e := range seed {
		require.NoError(t, store.Store(e))
	}

	all, err := store.Query(EventFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e3", all[0].ID, "newest first")
	assert.Equal(t, "admin-1", all[0].UserID)
	assert.NotNil(t, all[1].Data)
	assert.EqualValues(t, 10, all[2].Data["size_bytes"])

	byArchive, err := store.Query(EventFilters{Archive: "a.backup"})
	require.NoError(t, err)
	assert.Len(t, byArchive, 2)

	byType, err := store.Query(EventFilters{Types: []EventType{EventBackupFailed}})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "b.backup", byType[0].Archive)

	since, err := store.Query(EventFilters{StartTime: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := store.Query(EventFilters{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDatabaseEventStorage_DuplicateIDRejected(t *testing.T) {
	store := setupDatabaseStorage(t)
	event := Event{ID: "dup", Type: EventBackupCreated, Timestamp: time.Now()}

	require.NoError(t, store.Store(event))
	assert.Error(t, store.Store(event))
}
