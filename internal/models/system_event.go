package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemEvent is the persisted audit trail of backup subsystem events
type SystemEvent struct {
	gorm.Model
	EventID   string         `gorm:"uniqueIndex;size:64" json:"event_id"`
	Type      string         `gorm:"index;size:100" json:"type"`
	Timestamp time.Time      `gorm:"index" json:"timestamp"`
	Source    string         `gorm:"size:100" json:"source"`
	Archive   string         `gorm:"index;size:255" json:"archive,omitempty"`
	UserID    string         `gorm:"index;size:255" json:"user_id,omitempty"`
	Data      datatypes.JSON `json:"data"`
}

// TableName overrides the table name
func (SystemEvent) TableName() string {
	return "system_events"
}
