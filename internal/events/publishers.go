package events

// PublishBackupCreated publishes a backup created event
func PublishBackupCreated(filename string, sizeBytes int64, durationS float64, pruned []string) {
	GetEventBus().Publish(Event{
		Type:    EventBackupCreated,
		Source:  "backup_service",
		Archive: filename,
		Data: map[string]interface{}{
			"size_bytes": sizeBytes,
			"duration_s": durationS,
			"pruned":     len(pruned),
		},
	})
}

// PublishBackupFailed publishes a failed dump
func PublishBackupFailed(filename string, exitCode int, trigger string) {
	GetEventBus().Publish(Event{
		Type:    EventBackupFailed,
		Source:  "backup_service",
		Archive: filename,
		Data: map[string]interface{}{
			"exit_code": exitCode,
			"trigger":   trigger,
		},
	})
}

// PublishBackupDeleted publishes an explicit delete
func PublishBackupDeleted(filename, userID string) {
	GetEventBus().Publish(Event{
		Type:    EventBackupDeleted,
		Source:  "backup_service",
		Archive: filename,
		UserID:  userID,
		Data:    map[string]interface{}{},
	})
}

// PublishBackupPruned publishes the archives removed by a retention pass
func PublishBackupPruned(keep int, deleted []string) {
	GetEventBus().Publish(Event{
		Type:   EventBackupPruned,
		Source: "backup_retention",
		Data: map[string]interface{}{
			"keep":    keep,
			"deleted": deleted,
		},
	})
}

// PublishBackupRestored publishes a completed restore
func PublishBackupRestored(filename string, durationS float64) {
	GetEventBus().Publish(Event{
		Type:    EventBackupRestored,
		Source:  "backup_service",
		Archive: filename,
		Data: map[string]interface{}{
			"duration_s": durationS,
		},
	})
}

// PublishBackupRestoreFailed publishes a failed restore
func PublishBackupRestoreFailed(filename string, exitCode int) {
	GetEventBus().Publish(Event{
		Type:    EventBackupRestoreFailed,
		Source:  "backup_service",
		Archive: filename,
		Data: map[string]interface{}{
			"exit_code": exitCode,
		},
	})
}

// PublishBackupUploaded publishes a stored upload ahead of its restore
func PublishBackupUploaded(filename string, sizeBytes int64) {
	GetEventBus().Publish(Event{
		Type:    EventBackupUploaded,
		Source:  "backup_service",
		Archive: filename,
		Data: map[string]interface{}{
			"size_bytes": sizeBytes,
		},
	})
}

// PublishBackupReplicated publishes an archive copied offsite
func PublishBackupReplicated(filename, remotePath string) {
	GetEventBus().Publish(Event{
		Type:    EventBackupReplicated,
		Source:  "offsite_replicator",
		Archive: filename,
		Data: map[string]interface{}{
			"remote_path": remotePath,
		},
	})
}

// PublishScheduleChanged publishes a saved schedule configuration
func PublishScheduleChanged(enabled bool, schedule string, maxFiles int) {
	GetEventBus().Publish(Event{
		Type:   EventScheduleChanged,
		Source: "backup_scheduler",
		Data: map[string]interface{}{
			"enabled":   enabled,
			"schedule":  schedule,
			"max_files": maxFiles,
		},
	})
}
