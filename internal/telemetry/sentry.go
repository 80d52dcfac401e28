package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

var enabled atomic.Bool

// Init configures the Sentry SDK. An empty DSN leaves reporting disabled and
// every capture call becomes a no-op.
func Init(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		logger.Info("TELEMETRY: Sentry DSN not set, error reporting disabled", nil)
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		SampleRate:       1.0,
		Environment:      cfg.Environment,
		Release:          cfg.AppName,
		AttachStacktrace: true,
		ServerName:       "",
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Request bodies may contain uploaded dumps
			if event.Request != nil {
				event.Request.Data = ""
				event.Request.Cookies = ""
				delete(event.Request.Headers, "Authorization")
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	enabled.Store(true)
	logger.Info("TELEMETRY: Sentry error reporting enabled", map[string]interface{}{
		"environment": cfg.Environment,
	})
	return nil
}

// Enabled reports whether Init configured a client
func Enabled() bool {
	return enabled.Load()
}

// CaptureError reports err tagged with the component that hit it
func CaptureError(err error, component string, extra map[string]interface{}) {
	if err == nil || !enabled.Load() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("error_type", fmt.Sprintf("%T", err))
		if len(extra) > 0 {
			scope.SetContext("details", extra)
		}
		scope.SetFingerprint([]string{component, fmt.Sprintf("%T", err)})
		sentry.CaptureException(err)
	})
}

// CaptureMessage reports a message at the given level
func CaptureMessage(message string, level sentry.Level, component string) {
	if !enabled.Load() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits for buffered events to be sent
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentry.Flush(timeout)
}
