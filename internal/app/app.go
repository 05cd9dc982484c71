// Package app assembles the stores, runners and job registry shared by the
// HTTP server and the fairplatectl CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/archive"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/cache"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/config"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/database"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/maintenance"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/notify"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/ratelimit"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/reports"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/resilience"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/scheduler"
)

const (
	JobQuality       = "quality"
	JobFairness      = "fairness"
	JobAnnouncements = "announcements"
)

// App is the assembled service graph
type App struct {
	Config   *config.Config
	Logger   *monitoring.Logger
	Location *time.Location

	DB      *database.DB
	Repo    *database.Repository
	Reports reports.Store
	archive *archive.Store

	Redis    *ratelimit.RedisClient
	Cache    *cache.Cache
	Breakers *resilience.CircuitBreakerRegistry

	Quality     *reports.QualityRunner
	Fairness    *reports.FairnessRunner
	Maintenance *maintenance.Service
	Notify      *notify.Service
	Jobs        *scheduler.Registry
}

// New opens the stores and wires every runner into a job registry
func New(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid scheduler timezone "+cfg.Scheduler.Timezone, err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Location: loc,
		DB:       db,
		Repo:     database.NewRepository(db),
		Breakers: resilience.NewCircuitBreakerRegistry(),
		Cache:    cache.NewCache(cfg.Reports.CacheTTL, logger),
	}

	a.Reports = a.Repo
	if cfg.Reports.Sink == "badger" {
		a.archive, err = archive.Open(cfg.Reports.ArchivePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Reports = a.archive
		logger.Info("Reports are written to the local archive", "path", cfg.Reports.ArchivePath)
	}

	a.Redis, err = ratelimit.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, continuing degraded", "error", err)
	}

	a.Quality = reports.NewQualityRunner(a.Repo, a.Reports, a.Cache, cfg.Quality,
		cfg.Reports.QualityCollection, loc, logger)
	a.Fairness = reports.NewFairnessRunner(a.Repo, a.Reports, a.Cache, cfg.Fairness,
		reports.WindowConfig{Days: cfg.Reports.WindowDays, Limit: cfg.Reports.WindowLimit},
		cfg.Reports.FairnessCollection, logger)
	a.Maintenance = maintenance.NewService(a.Repo, a.Reports, maintenance.Config{
		RetentionDays: cfg.Maintenance.RetentionDays,
		SyncBatchSize: cfg.Maintenance.SyncBatchSize,
		Collections:   []string{cfg.Reports.QualityCollection, cfg.Reports.FairnessCollection},
	}, logger)

	var publisher notify.Publisher
	if cfg.Notify.Enabled && a.Redis.IsEnabled() {
		publisher = notify.NewRedisPublisher(a.Redis.GetClient())
	}
	breaker := a.Breakers.GetOrCreate("announcement_push", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Notify.BreakerFailures,
		RecoveryTimeout:  cfg.Notify.BreakerTimeout,
	})
	a.Notify = notify.NewService(a.Repo, publisher, breaker, cfg.Notify.ChannelPrefix, logger)

	if err := a.registerJobs(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) registerJobs() error {
	a.Jobs = scheduler.NewRegistry(scheduler.Options{
		RetryAttempts: a.Config.Scheduler.RetryAttempts,
		RetryDelay:    a.Config.Scheduler.RetryDelay,
		RunTimeout:    a.Config.Scheduler.RunTimeout,
	}, a.Logger)

	sc := a.Config.Scheduler
	jobs := []struct {
		name string
		expr string
		task scheduler.Task
	}{
		{JobQuality, sc.Quality, func(ctx context.Context) (any, error) { return a.Quality.Run(ctx) }},
		{JobFairness, sc.Fairness, func(ctx context.Context) (any, error) { return a.Fairness.Run(ctx) }},
		{maintenance.JobUnsuspend, sc.Unsuspend, func(ctx context.Context) (any, error) { return a.Maintenance.Unsuspend(ctx) }},
		{maintenance.JobUnban, sc.Unban, func(ctx context.Context) (any, error) { return a.Maintenance.Unban(ctx) }},
		{maintenance.JobCatalogSync, sc.CatalogSync, func(ctx context.Context) (any, error) { return a.Maintenance.SyncCatalog(ctx) }},
		{maintenance.JobRetention, sc.Retention, func(ctx context.Context) (any, error) { return a.Maintenance.PruneHistory(ctx) }},
		{JobAnnouncements, sc.Announcements, func(ctx context.Context) (any, error) { return a.Notify.Sweep(ctx) }},
	}

	for _, job := range jobs {
		schedule, err := scheduler.Parse(job.expr, a.Location)
		if err != nil {
			return apperrors.NewConfigurationError(fmt.Sprintf("invalid schedule for %s", job.name), err)
		}
		if err := a.Jobs.Register(job.name, schedule, job.task); err != nil {
			return err
		}
	}
	return nil
}

// MaintenanceJobs lists the jobs accepted by the maintenance trigger
func MaintenanceJobs() []string {
	return []string{
		maintenance.JobUnsuspend,
		maintenance.JobUnban,
		maintenance.JobCatalogSync,
		JobAnnouncements,
		maintenance.JobRetention,
	}
}

// Close releases every store
func (a *App) Close() {
	if a.archive != nil {
		apperrors.SafeClose(a.archive, "report archive")
	}
	if a.Redis != nil {
		apperrors.SafeClose(a.Redis, "redis")
	}
	if a.DB != nil {
		apperrors.SafeClose(a.DB, "database")
	}
}
