package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/config"
	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/gin-gonic/gin"
)

const cleanupInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLoggerWithWriter(os.Stdout, monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger.Logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		if apperrors.IsConfigurationError(err) {
			logger.Error("Scoring profile rejected", "profile", cfg.ScoringProfile, "problems", apperrors.ToAppError(err).Fields)
		} else {
			logger.Error("Failed to initialize server", "error", err)
		}
		os.Exit(1)
	}
	defer a.close()

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// warm the queues so the first dashboard load is served from cache
	go func() {
		if err := a.queue.RefreshAll(ctx); err != nil {
			logger.Warn("Initial queue evaluation incomplete", "error", err)
		}
	}()
	if cfg.QueueRefreshInterval > 0 {
		a.queue.StartAutoRefresh(ctx, cfg.QueueRefreshInterval)
	}
	go a.privacy.RunCleanup(ctx, cleanupInterval)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("Starting server",
			"addr", srv.Addr,
			"env", cfg.Env,
			"profile", cfg.ScoringProfile,
			"config_version", a.configVersion(),
			"redis", a.redis.IsEnabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
