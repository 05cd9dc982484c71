package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/app"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/config"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/scheduler"
)

// @title FairPlate Analytics API
// @version 1.0
// @description Data quality and recommendation fairness reports for the FairPlate marketplace, plus manual job triggers.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger.Logger)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialise services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go a.Cache.Run(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(a.Jobs, logger)
		go func() {
			if err := sched.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Scheduler stopped", "error", err)
			}
		}()
	} else {
		logger.Info("Scheduler disabled, jobs run only when triggered")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           setupRouter(a, sched),
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	go func() {
		logger.SystemLogger("startup", "listening on "+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.SystemLogger("shutdown", "draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.SystemLogger("shutdown", "server exited")
}
