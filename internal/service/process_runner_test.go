package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Success(t *testing.T) {
	runner := NewExecRunner(0)
	assert.NoError(t, runner.Run(context.Background(), "/bin/sh", "-c", "echo ignored"))
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	runner := NewExecRunner(0)

	err := runner.Run(context.Background(), "/bin/sh", "-c", "exit 3")
	require.Error(t, err)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, 3, procErr.ExitCode)
	assert.False(t, procErr.TimedOut)
	assert.Equal(t, "Command failed: /bin/sh -c exit 3 (code 3)", procErr.Error())
}

func TestExecRunner_StderrBecomesMessage(t *testing.T) {
	runner := NewExecRunner(0)

	err := runner.Run(context.Background(), "/bin/sh", "-c", "echo 'pg_dump: connection refused' >&2; exit 1")
	require.Error(t, err)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, 1, procErr.ExitCode)
	assert.Contains(t, procErr.Stderr, "connection refused")
	assert.Equal(t, "pg_dump: connection refused", err.Error())
}

func TestExecRunner_MissingBinary(t *testing.T) {
	runner := NewExecRunner(0)

	err := runner.Run(context.Background(), "/nonexistent/pg_dump", "-Fc")
	require.Error(t, err)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, -1, procErr.ExitCode)
	assert.Contains(t, procErr.Error(), "Command failed: /nonexistent/pg_dump -Fc")
}

func TestExecRunner_Timeout(t *testing.T) {
	runner := NewExecRunner(100 * time.Millisecond)

	start := time.Now()
	err := runner.Run(context.Background(), "/bin/sh", "-c", "exec sleep 5")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.True(t, procErr.TimedOut)
	assert.Contains(t, procErr.Error(), "Command timed out")
}

func TestExecRunner_InheritedDeadlineIsNotTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, 10 * time.Second} {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		err := NewExecRunner(timeout).Run(ctx, "/bin/sh", "-c", "exec sleep 5")
		cancel()

		var procErr *ProcessError
		require.True(t, errors.As(err, &procErr), "timeout %s", timeout)
		assert.False(t, procErr.TimedOut, "timeout %s", timeout)
	}
}
