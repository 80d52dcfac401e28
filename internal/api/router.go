package api

import (
	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/middleware"
	"github.com/enplerp/backoffice/internal/repository"
	"github.com/enplerp/backoffice/pkg/config"
)

func SetupRouter(
	authValidator middleware.TokenValidator,
	backupHandler *BackupHandler,
	backupScheduleHandler *BackupScheduleHandler,
	backupEventsHandler *BackupEventsHandler,
	prometheusHandler *PrometheusHandler,
	dashboardWsHandler *DashboardWebSocket,
	cfg *config.Config,
) *gin.Engine {
	// Set Gin mode
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (in order)
	router.Use(gin.Recovery())                                               // Panic recovery
	router.Use(middleware.ErrorHandler())                                    // Error handling
	router.Use(middleware.RequestLogger())                                   // Request logging
	router.Use(middleware.RateLimitMiddleware(middleware.GlobalRateLimiter)) // Global rate limiting

	// Health check endpoints (no auth required)
	healthHandler := NewHealthHandler(repository.GetDBProvider(), cfg.AppName)
	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	// Prometheus metrics endpoint (no auth required for scraping)
	router.GET("/metrics", prometheusHandler.MetricsEndpoint)

	expensive := middleware.RateLimitMiddleware(middleware.ExpensiveRateLimiter)
	uploads := middleware.RateLimitMiddleware(middleware.FileUploadRateLimiter)

	// Database backups (admin only)
	backups := router.Group("/api/admin/backups")
	backups.Use(middleware.AuthMiddleware(authValidator), middleware.RequireAdmin())
	{
		backups.GET("/schedule", backupScheduleHandler.GetSchedule)
		backups.PUT("/schedule", backupScheduleHandler.UpdateSchedule)

		backups.GET("/events", backupEventsHandler.ListEvents)
		if dashboardWsHandler != nil {
			backups.GET("/ws", dashboardWsHandler.HandleConnection)
		}

		backups.GET("", backupHandler.ListBackups)
		backups.POST("", expensive, backupHandler.CreateBackup)
		backups.POST("/upload", uploads, backupHandler.UploadAndRestore)

		backups.GET("/:filename/download", backupHandler.DownloadBackup)
		backups.POST("/:filename/restore", expensive, backupHandler.RestoreBackup)
		backups.DELETE("/:filename", backupHandler.DeleteBackup)
	}

	return router
}
