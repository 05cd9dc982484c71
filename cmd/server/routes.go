package main

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/fairplate-analytics/docs"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/app"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/middleware"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/ratelimit"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/scheduler"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/security"
)

const maxHistoryLimit = 365

type server struct {
	app         *app.App
	sched       *scheduler.Scheduler
	compression *middleware.CompressionMiddleware
}

func setupRouter(a *app.App, sched *scheduler.Scheduler) *gin.Engine {
	cfg := a.Config
	s := &server{
		app:         a,
		sched:       sched,
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
	}

	secure := security.NewSecurityMiddleware(security.SecurityConfig{
		JWTSecret:      cfg.Security.JWTSecret,
		AllowedOrigins: cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		EnableHSTS:     cfg.Security.EnableHSTS,
	})
	limiter := ratelimit.NewRateLimiter(a.Redis, ratelimit.Config{
		APILimitPerMinute:   cfg.Security.APILimitPerMinute,
		TriggerLimitPerHour: cfg.Security.TriggerLimitPerHour,
	})

	r := gin.New()
	r.Use(monitoring.MonitoringMiddleware(a.Logger))
	r.Use(apperrors.RecoveryHandler())
	r.Use(apperrors.ErrorHandler())
	r.Use(secure.CORSConfig())
	r.Use(secure.SecurityHeaders)
	r.Use(secure.RequestTimeout)

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(limiter.APIRateLimitMiddleware())
	{
		api.GET("/ratelimit/status", limiter.HandleRateLimitStatus())
		api.GET("/jobs", s.listJobs)
		api.GET("/maintenance/retention", s.retentionPolicy)

		reports := api.Group("/reports/:collection")
		reports.Use(s.knownCollection, s.compression.Handler())
		reports.GET("/history", s.reportHistory)
		reports.GET("/:doc", a.Cache.Middleware(), s.getReport)
	}

	trigger := api.Group("/trigger")
	trigger.Use(secure.ValidateContentType, secure.RequireAdmin(), limiter.TriggerRateLimitMiddleware())
	{
		trigger.POST("/quality", s.triggerJob(app.JobQuality))
		trigger.POST("/fairness", s.triggerJob(app.JobFairness))
		trigger.POST("/maintenance/:job", s.triggerMaintenance)
	}

	return r
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	appErr.RequestID = c.GetHeader("X-Request-ID")
	apperrors.LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}

// health reports store and redis reachability
// @Summary Service health
// @Description Pings the report store and Redis and reports pool and breaker state
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if err := s.app.Reports.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["store"] = gin.H{"status": "down", "error": err.Error()}
	} else {
		checks["store"] = gin.H{"status": "up", "sink": s.app.Config.Reports.Sink}
	}

	switch {
	case !s.app.Redis.IsEnabled():
		checks["redis"] = gin.H{"status": "disabled"}
	case s.app.Redis.HealthCheck(ctx) != nil:
		checks["redis"] = gin.H{"status": "degraded"}
	default:
		checks["redis"] = gin.H{"status": "up", "pool": s.app.Redis.GetPoolStats()}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}

	c.JSON(status, gin.H{
		"status":           state,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"checks":           checks,
		"database_pool":    s.app.DB.GetPoolStats(),
		"circuit_breakers": s.app.Breakers.GetStats(),
		"cache":            s.app.Cache.Stats(),
		"compression":      s.compression.GetStats(),
	})
}

// @Summary List jobs
// @Description Lists registered jobs and the next scheduled run of each
// @Tags Jobs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/jobs [get]
func (s *server) listJobs(c *gin.Context) {
	var next map[string]time.Time
	if s.sched != nil {
		next = s.sched.NextRuns()
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":      s.app.Jobs.Names(),
		"scheduled": s.sched != nil,
		"next_runs": next,
	})
}

// @Summary Report retention policy
// @Tags Jobs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/maintenance/retention [get]
func (s *server) retentionPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Maintenance.RetentionInfo())
}

func (s *server) knownCollection(c *gin.Context) {
	collection := c.Param("collection")
	cfg := s.app.Config.Reports
	if collection != cfg.QualityCollection && collection != cfg.FairnessCollection {
		respondError(c, apperrors.NewNotFoundError("collection", collection))
		return
	}
	c.Next()
}

// getReport returns a stored report document. "latest" is the most recent run.
// @Summary Get report
// @Description Returns the latest report or a history document of a collection
// @Tags Reports
// @Produce json
// @Param collection path string true "Collection (data_quality or fairness_metrics)"
// @Param doc path string true "Document id: latest, YYYY-MM-DD or RFC3339 timestamp"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} apperrors.AppError
// @Router /api/v1/reports/{collection}/{doc} [get]
func (s *server) getReport(c *gin.Context) {
	report, err := s.app.Reports.GetReport(c.Request.Context(), c.Param("collection"), c.Param("doc"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Last-Modified", report.CalculatedAt.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "application/json", report.Payload)
}

// @Summary Report history
// @Description Lists history document ids of a collection, newest first
// @Tags Reports
// @Produce json
// @Param collection path string true "Collection"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} apperrors.AppError
// @Router /api/v1/reports/{collection}/history [get]
func (s *server) reportHistory(c *gin.Context) {
	limit := s.app.Config.Reports.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(c, apperrors.NewValidationError("limit must be between 1 and 365", "limit"))
			return
		}
		limit = n
	}

	collection := c.Param("collection")
	refs, err := s.app.Reports.ListReports(c.Request.Context(), collection, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collection": collection,
		"count":      len(refs),
		"history":    refs,
	})
}

// triggerJob runs a report job synchronously and returns its summary
// @Summary Run a report now
// @Description Runs the quality or fairness job synchronously
// @Tags Triggers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} apperrors.AppError
// @Failure 429 {object} apperrors.AppError
// @Failure 502 {object} apperrors.AppError
// @Router /api/v1/trigger/quality [post]
// @Router /api/v1/trigger/fairness [post]
func (s *server) triggerJob(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.app.Logger.Info("Manual job trigger", "job", name, "admin", security.AdminSubject(c), "ip", c.ClientIP())

		summary, err := s.app.Jobs.Run(c.Request.Context(), name, scheduler.TriggerManual)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// @Summary Run a maintenance job now
// @Tags Triggers
// @Produce json
// @Security BearerAuth
// @Param job path string true "unsuspend, unban, catalog-sync, announcements or retention"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} apperrors.AppError
// @Router /api/v1/trigger/maintenance/{job} [post]
func (s *server) triggerMaintenance(c *gin.Context) {
	job := c.Param("job")
	if !slices.Contains(app.MaintenanceJobs(), job) {
		respondError(c, apperrors.NewNotFoundError("maintenance job", job))
		return
	}
	s.triggerJob(job)(c)
}
