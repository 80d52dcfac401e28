package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/enplerp/backoffice/internal/models"
	"github.com/enplerp/backoffice/pkg/logger"
)

// ArchiveLister returns the archives currently in the backup directory
type ArchiveLister interface {
	Archives() ([]models.BackupArchive, error)
}

// PrometheusExporter refreshes the archive inventory gauges on an interval
type PrometheusExporter struct {
	lister ArchiveLister
	now    func() time.Time
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(lister ArchiveLister) *PrometheusExporter {
	return &PrometheusExporter{lister: lister, now: time.Now}
}

// CollectMetrics scans the backup directory once
func (e *PrometheusExporter) CollectMetrics() error {
	archives, err := e.lister.Archives()
	if err != nil {
		return fmt.Errorf("failed to scan archives: %w", err)
	}

	var total int64
	var newest time.Time
	for _, a := range archives {
		total += a.SizeBytes
		if a.ModifiedAt.After(newest) {
			newest = a.ModifiedAt
		}
	}
	SetArchiveInventory(len(archives), total)

	if newest.IsZero() {
		NewestArchiveAge.Set(-1)
	} else {
		NewestArchiveAge.Set(e.now().Sub(newest).Seconds())
	}

	logger.Debug("Prometheus metrics collected", map[string]interface{}{
		"archives":    len(archives),
		"total_bytes": total,
	})
	return nil
}

// StartMetricsCollector collects immediately and then every interval until
// ctx is cancelled
func (e *PrometheusExporter) StartMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		if err := e.CollectMetrics(); err != nil {
			logger.Error("Failed to collect Prometheus metrics", err, nil)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.CollectMetrics(); err != nil {
					logger.Error("Failed to collect Prometheus metrics", err, nil)
				}
			}
		}
	}()

	logger.Info("Prometheus metrics collector started", map[string]interface{}{
		"interval": interval.String(),
	})
}
