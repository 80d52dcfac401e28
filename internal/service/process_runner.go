package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/enplerp/backoffice/pkg/logger"
)

// CommandRunner runs an external program to completion
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) error
}

// ExecRunner runs commands as OS processes. Stdin is closed, stdout is
// discarded and stderr is captured for the returned *ProcessError.
type ExecRunner struct {
	timeout time.Duration // 0 = no limit
}

// NewExecRunner creates a runner. A zero timeout lets commands run until
// they exit on their own.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{timeout: timeout}
}

// Run starts command and waits for it. It never panics on spawn failure;
// every failure comes back as *ProcessError.
func (r *ExecRunner) Run(ctx context.Context, command string, args ...string) error {
	parent := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err == nil {
		logger.Debug("PROCESS-RUNNER: Command completed", map[string]interface{}{
			"command":    command,
			"duration_s": duration.Seconds(),
		})
		return nil
	}

	procErr := &ProcessError{
		Command:  command,
		Args:     args,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		procErr.ExitCode = exitErr.ExitCode()
	}
	// Only this runner's own deadline counts; a cancelled or expired parent does not
	if r.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		procErr.TimedOut = true
	}

	return procErr
}
