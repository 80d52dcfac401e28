package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enplerp/backoffice/internal/api"
	"github.com/enplerp/backoffice/internal/events"
	"github.com/enplerp/backoffice/internal/monitoring"
	"github.com/enplerp/backoffice/internal/repository"
	"github.com/enplerp/backoffice/internal/service"
	"github.com/enplerp/backoffice/internal/storage"
	"github.com/enplerp/backoffice/internal/telemetry"
	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

const (
	shutdownTimeout          = 30 * time.Second
	metricsCollectorInterval = time.Minute
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	appLogger := logger.NewLogger(logger.ParseLevel(cfg.LogLevel), os.Stdout, cfg.LogJSON)
	logger.SetDefault(appLogger)

	logger.Info("Starting application", map[string]interface{}{
		"app":        cfg.AppName,
		"debug":      cfg.Debug,
		"port":       cfg.Port,
		"backup_dir": cfg.BackupDir,
	})

	if err := telemetry.Init(cfg); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error reporting", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer telemetry.Flush(2 * time.Second)

	// Initialize database
	if err := repository.InitDB(cfg); err != nil {
		logger.Fatal("Failed to initialize database", err, nil)
	}
	db := repository.GetDB()

	// Initialize Event-Bus with multi-storage (PostgreSQL + InfluxDB)
	var eventStorage events.EventStorage = events.NewDatabaseEventStorage(db)
	if cfg.InfluxDBURL != "" && cfg.InfluxDBToken != "" {
		influxClient, err := storage.NewInfluxDBClient(storage.InfluxDBConfig{
			URL:    cfg.InfluxDBURL,
			Token:  cfg.InfluxDBToken,
			Org:    cfg.InfluxDBOrg,
			Bucket: cfg.InfluxDBBucket,
		})
		if err != nil {
			logger.Warn("Failed to initialize InfluxDB, falling back to database-only storage", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer influxClient.Close()
			eventStorage = events.NewMultiEventStorage(eventStorage, events.NewInfluxDBEventStorage(influxClient))
			logger.Info("Event-Bus initialized with dual storage (PostgreSQL + InfluxDB)", map[string]interface{}{
				"influxdb_url": cfg.InfluxDBURL,
				"bucket":       cfg.InfluxDBBucket,
			})
		}
	} else {
		logger.Info("Event-Bus initialized with database storage only", nil)
	}
	events.SetEventStorage(eventStorage)

	// Backup services
	guard, err := service.NewPathGuard(cfg.BackupDir)
	if err != nil {
		logger.Fatal("Invalid backup directory", err, map[string]interface{}{
			"backup_dir": cfg.BackupDir,
		})
	}

	replicator, err := service.NewOffsiteReplicatorFromConfig(cfg)
	if err != nil {
		logger.Fatal("Invalid offsite replica configuration", err, nil)
	}
	if replicator != nil {
		defer replicator.Close()
		logger.Info("Offsite replication enabled", map[string]interface{}{
			"host": cfg.OffsiteHost,
			"path": cfg.OffsitePath,
		})
	}

	backupService := service.NewBackupService(
		cfg,
		guard,
		service.NewExecRunner(cfg.BackupTimeout),
		service.NewBackupRetention(guard),
		replicator,
	)

	scheduleService := service.NewBackupScheduleService(repository.NewBackupScheduleRepository(db))
	scheduler := service.NewBackupScheduler(backupService, scheduleService, cfg.Location())
	scheduleService.SetScheduler(scheduler)

	// A broken stored schedule leaves the scheduler idle; the API stays up so
	// an admin can fix it.
	if err := scheduler.Reload(); err != nil {
		logger.Error("Failed to load backup schedule", err, nil)
	}
	scheduler.Start()

	collectorCtx, stopCollector := context.WithCancel(context.Background())
	defer stopCollector()
	monitoring.NewPrometheusExporter(backupService).StartMetricsCollector(collectorCtx, metricsCollectorInterval)

	authService := service.NewAuthService(cfg)

	// Dashboard WebSocket for live backup events
	dashboardWs := api.NewDashboardWebSocket(events.GetEventBus())
	defer dashboardWs.Shutdown()

	router := api.SetupRouter(
		authService,
		api.NewBackupHandler(backupService, scheduleService, cfg),
		api.NewBackupScheduleHandler(scheduleService, scheduler, cfg),
		api.NewBackupEventsHandler(events.GetEventBus()),
		api.NewPrometheusHandler(),
		dashboardWs,
		cfg,
	)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address":      addr,
			"api_endpoint": fmt.Sprintf("http://localhost%s/api/admin/backups", addr),
			"health_check": fmt.Sprintf("http://localhost%s/health", addr),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err, nil)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", err, nil)
	}

	// Wait for a running scheduled dump to finish
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn("Scheduled backup still running at shutdown", nil)
	}

	logger.Info("Shutdown complete", nil)
}
