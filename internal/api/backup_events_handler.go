package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/events"
	"github.com/enplerp/backoffice/internal/middleware"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// EventQuerier reads the stored event trail
type EventQuerier interface {
	Query(filters events.EventFilters) ([]events.Event, error)
}

// BackupEventsHandler serves the backup audit trail
type BackupEventsHandler struct {
	store EventQuerier
}

// NewBackupEventsHandler creates a new events handler
func NewBackupEventsHandler(store EventQuerier) *BackupEventsHandler {
	return &BackupEventsHandler{store: store}
}

// ListEvents handles GET /api/admin/backups/events?type=&archive=&since=&limit=
// type may be repeated or comma separated; since is RFC 3339.
func (h *BackupEventsHandler) ListEvents(c *gin.Context) {
	filters := events.EventFilters{
		Archive: c.Query("archive"),
		Limit:   queryInt(c, "limit", defaultEventLimit),
	}
	if filters.Limit < 1 || filters.Limit > maxEventLimit {
		filters.Limit = defaultEventLimit
	}

	for _, raw := range c.QueryArray("type") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filters.Types = append(filters.Types, events.EventType(t))
			}
		}
	}
	if len(filters.Types) == 0 {
		filters.Types = events.BackupEventTypes
	}

	if since := c.Query("since"); since != "" {
		start, err := time.Parse(time.RFC3339, since)
		if err != nil {
			middleware.HandleAppError(c, middleware.NewBadRequestError("since must be an RFC 3339 timestamp"))
			return
		}
		filters.StartTime = start
	}

	found, err := h.store.Query(filters)
	if err != nil {
		middleware.HandleAppError(c, middleware.NewInternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": found,
		"count":  len(found),
	})
}
