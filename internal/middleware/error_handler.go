package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/enplerp/backoffice/internal/service"
	"github.com/enplerp/backoffice/pkg/logger"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler is a middleware that catches panics and errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				logger.Error("Panic recovered", err, map[string]interface{}{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				})

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "Internal server error",
					Message: "An unexpected error occurred",
					Code:    "INTERNAL_ERROR",
				})

				c.Abort()
			}
		}()

		c.Next()

		// Check if there were any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			logger.Error("Request error", err.Err, map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})

			// If response not already written
			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "Internal server error",
					Message: "Request failed",
					Code:    "INTERNAL_ERROR",
				})
			}
		}
	}
}

// Custom error types for better error handling

type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(message string) *AppError {
	return &AppError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    "Internal server error",
		Err:        err,
	}
}

// AppErrorFrom maps a backup subsystem error onto its HTTP response. Tool
// stderr is only placed in Details when exposeStderr is set.
func AppErrorFrom(err error, exposeStderr bool) *AppError {
	var validationErr *service.ValidationError
	var restoreErr *service.RestoreFailedError
	var procErr *service.ProcessError

	switch {
	case errors.As(err, &validationErr):
		return &AppError{
			StatusCode: http.StatusBadRequest,
			Code:       "VALIDATION_ERROR",
			Message:    validationErr.Error(),
			Err:        err,
			Details:    map[string]interface{}{"field": validationErr.Field},
		}
	case errors.Is(err, service.ErrInvalidFilename):
		return &AppError{StatusCode: http.StatusBadRequest, Code: "INVALID_FILENAME", Message: "Invalid backup filename", Err: err}
	case errors.Is(err, service.ErrInvalidPath):
		return &AppError{StatusCode: http.StatusBadRequest, Code: "INVALID_PATH", Message: "Invalid backup path", Err: err}
	case errors.Is(err, service.ErrInvalidArgument):
		return &AppError{StatusCode: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: err.Error(), Err: err}
	case errors.Is(err, service.ErrPayloadTooLarge):
		return &AppError{StatusCode: http.StatusRequestEntityTooLarge, Code: "PAYLOAD_TOO_LARGE", Message: "Upload exceeds the maximum size", Err: err}
	case errors.Is(err, service.ErrNotFound):
		return NewNotFoundError("Backup")
	case errors.Is(err, service.ErrInvalidScheduleType):
		return &AppError{StatusCode: http.StatusInternalServerError, Code: "SCHEDULE_CORRUPT", Message: "Stored backup schedule is invalid", Err: err}
	case errors.As(err, &restoreErr):
		appErr := &AppError{
			StatusCode: http.StatusInternalServerError,
			Code:       "RESTORE_FAILED",
			Message:    "Restore failed, the database may be partially restored",
			Err:        err,
		}
		appErr.Details = processDetails(restoreErr.Cause, exposeStderr)
		return appErr
	case errors.As(err, &procErr):
		appErr := &AppError{
			StatusCode: http.StatusInternalServerError,
			Code:       "BACKUP_FAILED",
			Message:    "Backup failed",
			Err:        err,
		}
		appErr.Details = processDetails(procErr, exposeStderr)
		return appErr
	default:
		return NewInternalError(err)
	}
}

func processDetails(procErr *service.ProcessError, exposeStderr bool) map[string]interface{} {
	if procErr == nil {
		return nil
	}
	details := map[string]interface{}{}
	if procErr.TimedOut {
		details["timedOut"] = true
	}
	if exposeStderr {
		details["exitCode"] = procErr.ExitCode
		details["stderr"] = procErr.Error()
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// HandleAppError handles AppError types. Expected client rejections are
// logged at WARN without the error chain.
func HandleAppError(c *gin.Context, err *AppError) {
	fields := map[string]interface{}{
		"code":   err.Code,
		"status": err.StatusCode,
		"path":   c.Request.URL.Path,
	}
	switch {
	case service.IsClientError(err.Err):
		logger.Warn(err.Message, fields)
	case err.StatusCode >= http.StatusInternalServerError:
		logger.Error(err.Message, err.Err, fields)
	default:
		logger.Warn(err.Message, fields)
	}

	response := ErrorResponse{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	}

	c.JSON(err.StatusCode, response)
	c.Abort()
}

// RespondError maps err and writes the response
func RespondError(c *gin.Context, err error, exposeStderr bool) {
	HandleAppError(c, AppErrorFrom(err, exposeStderr))
}
