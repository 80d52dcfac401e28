package models

import (
	"time"
)

// BackupArchive is a dump file found in the backup directory. It is derived
// from filesystem state and never stored in the database.
type BackupArchive struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// BackupPage is one page of the archive listing
type BackupPage struct {
	Page    int             `json:"page"`
	PerPage int             `json:"perPage"`
	Total   int             `json:"total"`
	Items   []BackupArchive `json:"items"`
}

// BackupResult describes a freshly created archive
type BackupResult struct {
	Filename string   `json:"filename"`
	Path     string   `json:"path"`
	Deleted  []string `json:"deleted"`
}

// DeleteResult is returned by an explicit archive delete
type DeleteResult struct {
	Deleted string `json:"deleted"`
}

// RestoreResult is returned once pg_restore completed
type RestoreResult struct {
	Restored string `json:"restored"`
}

// RetentionResult lists the archives a retention pass removed
type RetentionResult struct {
	DeletedNames []string `json:"deletedNames"`
}
