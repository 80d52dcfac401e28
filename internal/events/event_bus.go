package events

import (
	"sync"
	"time"

	"github.com/enplerp/backoffice/pkg/logger"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventBackupCreated       EventType = "backup.created"
	EventBackupFailed        EventType = "backup.failed"
	EventBackupDeleted       EventType = "backup.deleted"
	EventBackupPruned        EventType = "backup.pruned"
	EventBackupRestored      EventType = "backup.restored"
	EventBackupRestoreFailed EventType = "backup.restore_failed"
	EventBackupUploaded      EventType = "backup.uploaded"
	EventBackupReplicated    EventType = "backup.replicated"
	EventScheduleChanged     EventType = "backup.schedule_changed"
)

// BackupEventTypes lists every type published by the backup subsystem
var BackupEventTypes = []EventType{
	EventBackupCreated,
	EventBackupFailed,
	EventBackupDeleted,
	EventBackupPruned,
	EventBackupRestored,
	EventBackupRestoreFailed,
	EventBackupUploaded,
	EventBackupReplicated,
	EventScheduleChanged,
}

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"` // e.g., "backup_service", "backup_scheduler"
	Archive   string                 `json:"archive,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// EventHandler is a function that handles events
type EventHandler func(event Event)

type subscription struct {
	id      int
	handler EventHandler
}

// EventBus manages event publishing and subscription
type EventBus struct {
	subscribers map[EventType][]subscription
	nextID      int
	mu          sync.RWMutex
	storage     EventStorage
}

// EventStorage defines the interface for storing events
type EventStorage interface {
	Store(event Event) error
	Query(filters EventFilters) ([]Event, error)
}

// EventFilters for querying events
type EventFilters struct {
	Types     []EventType
	Archive   string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

var (
	globalBus     *EventBus
	globalBusOnce sync.Once
)

// GetEventBus returns the global event bus instance (singleton)
func GetEventBus() *EventBus {
	globalBusOnce.Do(func() {
		globalBus = NewEventBus(nil)
	})
	return globalBus
}

// SetEventStorage sets the event storage backend
func SetEventStorage(storage EventStorage) {
	GetEventBus().SetStorage(storage)
}

// NewEventBus creates a new event bus
func NewEventBus(storage EventStorage) *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]subscription),
		storage:     storage,
	}
}

// SetStorage replaces the storage backend
func (eb *EventBus) SetStorage(storage EventStorage) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.storage = storage
}

// Subscribe registers a handler for the given event types and returns a
// function that removes it again
func (eb *EventBus) Subscribe(handler EventHandler, eventTypes ...EventType) (unsubscribe func()) {
	eb.mu.Lock()
	eb.nextID++
	id := eb.nextID
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], subscription{id: id, handler: handler})
	}
	eb.mu.Unlock()

	logger.Debug("Event handler subscribed", map[string]interface{}{
		"event_types": eventTypes,
	})

	var once sync.Once
	return func() {
		once.Do(func() { eb.remove(id) })
	}
}

func (eb *EventBus) remove(id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for t, subs := range eb.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(eb.subscribers, t)
		} else {
			eb.subscribers[t] = kept
		}
	}
}

// Publish publishes an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Data == nil {
		event.Data = map[string]interface{}{}
	}

	eb.mu.RLock()
	storage := eb.storage
	subs := append([]subscription(nil), eb.subscribers[event.Type]...)
	eb.mu.RUnlock()

	if storage != nil {
		if err := storage.Store(event); err != nil {
			logger.Error("Failed to store event", err, map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			})
		}
	}

	for _, s := range subs {
		// Run handlers in goroutines to avoid blocking
		go func(h EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Event handler panicked", nil, map[string]interface{}{
						"event_type": event.Type,
						"panic":      r,
					})
				}
			}()
			h(event)
		}(s.handler)
	}

	logger.Debug("Event published", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"source":     event.Source,
	})
}

// Query retrieves events based on filters
func (eb *EventBus) Query(filters EventFilters) ([]Event, error) {
	eb.mu.RLock()
	storage := eb.storage
	eb.mu.RUnlock()

	if storage == nil {
		return []Event{}, nil
	}
	return storage.Query(filters)
}
