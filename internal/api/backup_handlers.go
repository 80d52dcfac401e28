package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/middleware"
	"github.com/enplerp/backoffice/internal/service"
	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

// multipart framing overhead allowed on top of the archive itself
const uploadOverheadBytes = 1 << 20

// BackupHandler serves the archive endpoints of /api/admin/backups
type BackupHandler struct {
	backupService   *service.BackupService
	scheduleService *service.BackupScheduleService
	exposeStderr    bool
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(backupService *service.BackupService, scheduleService *service.BackupScheduleService, cfg *config.Config) *BackupHandler {
	return &BackupHandler{
		backupService:   backupService,
		scheduleService: scheduleService,
		exposeStderr:    cfg.BackupExposeStderr,
	}
}

// operationContext detaches long-running dump and restore work from the
// client connection. A dropped request must not kill pg_restore midway.
func operationContext(c *gin.Context) context.Context {
	ctx := context.WithoutCancel(c.Request.Context())
	return service.WithActor(ctx, middleware.GetUserID(c))
}

// CreateBackup handles POST /api/admin/backups
// Runs a dump now, keeping the number of archives configured in the schedule.
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	cfg, err := h.scheduleService.Load()
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	ctx := service.WithTrigger(operationContext(c), service.TriggerManual)
	result, err := h.backupService.CreateAndEnforceRetention(ctx, cfg.MaxFiles)
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListBackups handles GET /api/admin/backups?page=&perPage=&days=
func (h *BackupHandler) ListBackups(c *gin.Context) {
	opts := service.ListOptions{
		Page:    queryInt(c, "page", service.DefaultPage),
		PerPage: queryInt(c, "perPage", 10),
	}
	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			middleware.RespondError(c, fmt.Errorf("%w: days must be an integer", service.ErrInvalidArgument), h.exposeStderr)
			return
		}
		opts.Days = &days
	}

	page, err := h.backupService.List(opts)
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusOK, page)
}

// DownloadBackup handles GET /api/admin/backups/:filename/download
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	name := c.Param("filename")
	path, err := h.backupService.DownloadPath(name)
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	logger.Info("BACKUP-API: Archive download", map[string]interface{}{
		"file": name,
		"user": middleware.GetUserID(c),
	})
	// name passed the filename pattern, so it needs no quoting
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/octet-stream")
	c.File(path)
}

// DeleteBackup handles DELETE /api/admin/backups/:filename
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	result, err := h.backupService.Delete(operationContext(c), c.Param("filename"))
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RestoreBackup handles POST /api/admin/backups/:filename/restore
// Replaces the contents of the database with the archive.
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	result, err := h.backupService.Restore(operationContext(c), c.Param("filename"))
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UploadAndRestore handles POST /api/admin/backups/upload
// Multipart field "file" holds a pg_dump custom-format archive.
func (h *BackupHandler) UploadAndRestore(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxUploadBytes+uploadOverheadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.RespondError(c, service.ErrPayloadTooLarge, h.exposeStderr)
			return
		}
		middleware.RespondError(c, fmt.Errorf("%w: multipart field \"file\" is required", service.ErrInvalidArgument), h.exposeStderr)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}
	defer src.Close()

	result, err := h.backupService.AcceptUpload(operationContext(c), fileHeader.Filename, fileHeader.Size, src)
	if err != nil {
		middleware.RespondError(c, err, h.exposeStderr)
		return
	}

	c.JSON(http.StatusOK, result)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
