package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/monitoring"
	"github.com/enplerp/backoffice/pkg/logger"
)

// RequestLogger logs all HTTP requests with structured logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		// Route template keeps archive names out of the label set
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		monitoring.RecordAPIRequest(c.Request.Method, endpoint, strconv.Itoa(status), latency)

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		// Add user ID if authenticated
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}

		message := "HTTP request"
		switch {
		case status >= 500:
			logger.Error(message, nil, fields)
		case status >= 400:
			logger.Warn(message, fields)
		case path == "/health" || path == "/live" || path == "/metrics":
			logger.Debug(message, fields)
		default:
			logger.Info(message, fields)
		}
	}
}
