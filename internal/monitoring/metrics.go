package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the backup subsystem
var (
	// Dump metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enplerp_backups_total",
			Help: "Number of pg_dump runs by trigger (manual, scheduled) and result (success, failure)",
		},
		[]string{"trigger", "result"},
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enplerp_backup_duration_seconds",
			Help:    "Wall time of successful pg_dump runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	LastBackupTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enplerp_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful dump",
		},
	)

	// Restore metrics
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enplerp_restores_total",
			Help: "Number of pg_restore runs by source (existing, upload) and result",
		},
		[]string{"source", "result"},
	)

	// Archive inventory
	ArchiveCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enplerp_backup_archives",
			Help: "Number of archives in the backup directory",
		},
	)

	ArchiveBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enplerp_backup_archives_bytes",
			Help: "Total size of archives in the backup directory",
		},
	)

	NewestArchiveAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enplerp_backup_newest_archive_age_seconds",
			Help: "Age of the most recent archive, -1 when the directory is empty",
		},
	)

	RetentionDeletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enplerp_backup_retention_deleted_total",
			Help: "Archives removed by retention passes",
		},
	)

	// Scheduler
	SchedulerArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enplerp_backup_scheduler_armed",
			Help: "1 if the automatic backup job is registered",
		},
	)

	ScheduledJobFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enplerp_backup_scheduled_job_failures_total",
			Help: "Scheduled backup runs that returned an error or panicked",
		},
	)

	// Offsite replica
	OffsiteReplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enplerp_backup_offsite_replications_total",
			Help: "Offsite archive uploads by result",
		},
		[]string{"result"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enplerp_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enplerp_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBackup records the outcome of one dump
func RecordBackup(trigger string, success bool, durationS float64) {
	if success {
		BackupsTotal.WithLabelValues(trigger, "success").Inc()
		BackupDuration.Observe(durationS)
		LastBackupTimestamp.SetToCurrentTime()
		return
	}
	BackupsTotal.WithLabelValues(trigger, "failure").Inc()
}

// RecordRestore records the outcome of one restore
func RecordRestore(source string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	RestoresTotal.WithLabelValues(source, result).Inc()
}

// SetArchiveInventory publishes the current directory totals
func SetArchiveInventory(count int, totalBytes int64) {
	ArchiveCount.Set(float64(count))
	ArchiveBytes.Set(float64(totalBytes))
}

// RecordAPIRequest increments the API request counter and records duration
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
