package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/repository"
)

type HealthHandler struct {
	startTime  time.Time
	dbProvider repository.DatabaseProvider
	appName    string
}

func NewHealthHandler(dbProvider repository.DatabaseProvider, appName string) *HealthHandler {
	return &HealthHandler{
		startTime:  time.Now(),
		dbProvider: dbProvider,
		appName:    appName,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.appName,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.dbProvider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "database_not_initialized",
		})
		return
	}

	// Check database connection
	if err := h.dbProvider.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "database_unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"uptime":   time.Since(h.startTime).String(),
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}
