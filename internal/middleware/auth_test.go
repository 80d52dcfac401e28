package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enplerp/backoffice/internal/service"
	"github.com/enplerp/backoffice/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(auth *service.AuthService) *gin.Engine {
	r := gin.New()
	r.GET("/admin", AuthMiddleware(auth), RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": GetUserID(c)})
	})
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	other := service.NewAuthService(&config.Config{JWTSecret: "other-secret"})
	r := newAuthRouter(auth)

	adminToken, err := auth.GenerateToken("u-1", "admin@example.com", true, time.Hour)
	require.NoError(t, err)
	userToken, err := auth.GenerateToken("u-2", "clerk@example.com", false, time.Hour)
	require.NoError(t, err)
	expiredToken, err := auth.GenerateToken("u-1", "admin@example.com", true, -time.Minute)
	require.NoError(t, err)
	foreignToken, err := other.GenerateToken("u-1", "admin@example.com", true, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"admin", "Bearer " + adminToken, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic " + adminToken, http.StatusUnauthorized, "INVALID_AUTH_FORMAT"},
		{"not admin", "Bearer " + userToken, http.StatusForbidden, "FORBIDDEN"},
		{"expired", "Bearer " + expiredToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + foreignToken, http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuthRequest(r, tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			} else {
				assert.Contains(t, w.Body.String(), "u-1")
			}
		})
	}
}
