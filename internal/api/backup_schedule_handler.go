package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/middleware"
	"github.com/enplerp/backoffice/internal/service"
	"github.com/enplerp/backoffice/pkg/config"
)

// SchedulerStatusProvider reports the state of the automatic backup job
type SchedulerStatusProvider interface {
	Status() service.SchedulerStatus
}

// BackupScheduleHandler handles the automatic backup configuration
type BackupScheduleHandler struct {
	scheduleService *service.BackupScheduleService
	scheduler       SchedulerStatusProvider
	exposeStderr    bool
}

// NewBackupScheduleHandler creates a new schedule handler
func NewBackupScheduleHandler(scheduleService *service.BackupScheduleService, scheduler SchedulerStatusProvider, cfg *config.Config) *BackupScheduleHandler {
	return &BackupScheduleHandler{
		scheduleService: scheduleService,
		scheduler:       scheduler,
		exposeStderr:    cfg.BackupExposeStderr,
	}
}

// GetSchedule handles GET /api/admin/backups/schedule
func (h *BackupScheduleHandler) GetSchedule(c *gin.Context) {
	cfg, err := h.scheduleService.Load()
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config":    cfg.View(),
		"scheduler": h.scheduler.Status(),
	})
}

// UpdateSchedule handles PUT /api/admin/backups/schedule
func (h *BackupScheduleHandler) UpdateSchedule(c *gin.Context) {
	var candidate service.ScheduleCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		middleware.RespondError(c, fmt.Errorf("%w: %v", service.ErrInvalidArgument, err), h.exposeStderr)
		return
	}

	cfg, err := h.scheduleService.Save(candidate)
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config":    cfg.View(),
		"scheduler": h.scheduler.Status(),
	})
}
