package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enplerp/backoffice/internal/service"
	"github.com/enplerp/backoffice/pkg/logger"
)

func TestAppErrorFrom(t *testing.T) {
	procErr := &service.ProcessError{Command: "/usr/bin/sudo", ExitCode: 1, Stderr: "pg_dump: FATAL: role missing"}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid filename", service.ErrInvalidFilename, http.StatusBadRequest, "INVALID_FILENAME"},
		{"invalid path", service.ErrInvalidPath, http.StatusBadRequest, "INVALID_PATH"},
		{"invalid argument", fmt.Errorf("%w: maxFiles", service.ErrInvalidArgument), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"validation", &service.ValidationError{Field: "hour", Reason: "is required"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"too large", service.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"corrupt schedule", fmt.Errorf("load: %w", service.ErrInvalidScheduleType), http.StatusInternalServerError, "SCHEDULE_CORRUPT"},
		{"dump failed", procErr, http.StatusInternalServerError, "BACKUP_FAILED"},
		{"restore failed", &service.RestoreFailedError{Filename: "a.backup", Cause: procErr}, http.StatusInternalServerError, "RESTORE_FAILED"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := AppErrorFrom(tt.err, false)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestAppErrorFrom_StderrExposure(t *testing.T) {
	procErr := &service.ProcessError{Command: "/usr/bin/sudo", ExitCode: 2, Stderr: "pg_restore: could not open /var/backups/postgres/x"}
	restoreErr := &service.RestoreFailedError{Filename: "x.backup", Cause: procErr}

	hidden := AppErrorFrom(restoreErr, false)
	assert.NotContains(t, hidden.Message, "/var/backups")
	assert.Nil(t, hidden.Details)

	exposed := AppErrorFrom(restoreErr, true)
	require.NotNil(t, exposed.Details)
	assert.Equal(t, procErr.Stderr, exposed.Details["stderr"])
	assert.Equal(t, 2, exposed.Details["exitCode"])

	timedOut := AppErrorFrom(&service.ProcessError{Command: "sudo", ExitCode: -1, TimedOut: true}, false)
	assert.Equal(t, true, timedOut.Details["timedOut"])
	assert.NotContains(t, timedOut.Details, "stderr")
}

func TestRespondError_WritesBody(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		RespondError(c, &service.ValidationError{Field: "dayOfWeek", Reason: "is required"}, false)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "dayOfWeek: is required", body.Error)
	assert.Equal(t, "dayOfWeek", body.Details["field"])
}

func TestErrorHandler_RecoversPanic(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/panic", func(c *gin.Context) { panic("not an error value") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestHandleAppError_LogLevel(t *testing.T) {
	prev := logger.Default()
	defer logger.SetDefault(prev)

	tests := []struct {
		name  string
		err   *AppError
		level string
	}{
		{
			name:  "client rejection",
			err:   &AppError{StatusCode: http.StatusInternalServerError, Code: "X", Message: "lookup", Err: fmt.Errorf("lookup: %w", service.ErrNotFound)},
			level: "WARN",
		},
		{
			name:  "server failure",
			err:   NewInternalError(errors.New("disk on fire")),
			level: "ERROR",
		},
		{
			name:  "non-client 4xx",
			err:   NewBadRequestError("bad"),
			level: "WARN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.SetDefault(logger.NewLogger(logger.DEBUG, &buf, true))

			r := gin.New()
			r.GET("/x", func(c *gin.Context) { HandleAppError(c, tt.err) })
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			var entry logger.LogEntry
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}
