package service

import (
	"errors"
	"fmt"
	"strings"
)

// Client-input rejections. None of these are retried or logged as unexpected.
var (
	ErrInvalidFilename = errors.New("invalid backup filename")
	ErrInvalidPath     = errors.New("backup path escapes the backup directory")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPayloadTooLarge = errors.New("upload exceeds maximum size")
	ErrNotFound        = errors.New("backup not found")
)

// ErrInvalidScheduleType means a persisted recurrence type matches no known
// case: corrupted data or a schema written by another version.
var ErrInvalidScheduleType = errors.New("invalid schedule type")

// ValidationError names the schedule field that is missing or out of range
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ProcessError is returned when an external tool exits non-zero, cannot be
// started or is killed on timeout. Stderr holds the captured output.
type ProcessError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ProcessError) Error() string {
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return stderr
	}
	if e.TimedOut {
		return fmt.Sprintf("Command timed out: %s %s", e.Command, strings.Join(e.Args, " "))
	}
	if e.ExitCode < 0 && e.Err != nil {
		return fmt.Sprintf("Command failed: %s %s (%v)", e.Command, strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("Command failed: %s %s (code %d)", e.Command, strings.Join(e.Args, " "), e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// RestoreFailedError wraps a pg_restore failure. pg_restore is not atomic,
// so the target database may be left partially restored.
type RestoreFailedError struct {
	Filename string
	Cause    *ProcessError
}

func (e *RestoreFailedError) Error() string {
	return fmt.Sprintf("restore of %s failed, database may be partially restored: %s", e.Filename, e.Cause.Error())
}

func (e *RestoreFailedError) Unwrap() error {
	return e.Cause
}

// IsClientError reports whether err is an expected input rejection
func IsClientError(err error) bool {
	var validationErr *ValidationError
	return errors.Is(err, ErrInvalidFilename) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrNotFound) ||
		errors.As(err, &validationErr)
}
