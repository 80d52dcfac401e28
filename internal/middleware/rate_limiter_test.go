package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl := NewRateLimiter(time.Second, 3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allowAt("10.0.0.1", now), "request %d", i)
	}
	assert.False(t, rl.allowAt("10.0.0.1", now))

	// Other clients have their own bucket
	assert.True(t, rl.allowAt("10.0.0.2", now))

	assert.True(t, rl.allowAt("10.0.0.1", now.Add(1100*time.Millisecond)))
	assert.False(t, rl.allowAt("10.0.0.1", now.Add(1200*time.Millisecond)))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(6*time.Second, 1)
	r := gin.New()
	r.Use(RateLimitMiddleware(rl))
	r.POST("/backups", func(c *gin.Context) { c.Status(http.StatusCreated) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/backups", nil))
	assert.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/backups", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "6", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
}
