package main

import (
	"github.com/ZanzyTHEbar/leadpulse/internal/auth"
	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/leadpulse/internal/docs"
)

// router builds the HTTP API
func (a *app) router() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	r.Use(a.compression.Handler())
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(a.security.SecurityHeaders)
	r.Use(a.security.CORS())
	r.Use(a.security.ValidateContentType)
	r.Use(a.security.LimitBody)
	r.Use(a.security.RequestTimeout)

	r.GET("/health", a.handleHealth)
	r.GET("/metrics", a.handleMetrics)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/v1")
	v1.Use(a.limiter.IPRateLimitMiddleware())
	{
		v1.POST("/score", a.handleScore)
		v1.POST("/prioritize",
			a.limiter.EndpointRateLimitMiddleware("prioritize", a.cfg.BatchRateLimitPerMin),
			a.responses.Middleware("/v1/prioritize", a.configVersion, a.metrics, a.logger),
			a.handlePrioritize,
		)

		v1.GET("/queues/:kind", a.handleQueue)
		v1.GET("/queues/:kind/rankings", a.handleRankings)
		v1.POST("/queues/:kind/refresh",
			a.limiter.EndpointRateLimitMiddleware("refresh", a.cfg.BatchRateLimitPerMin),
			a.handleRefreshQueue,
		)

		v1.POST("/records", a.handleCreateRecord)
		v1.GET("/records/:id", a.handleGetRecord)
		v1.PUT("/records/:id", a.handleUpdateRecord)
		v1.DELETE("/records/:id", a.handleArchiveRecord)
		v1.GET("/records/:id/score", a.handleScoreRecord)
		v1.GET("/records/:id/snapshot", a.handleLatestSnapshot)

		v1.GET("/config", a.handleGetConfig)
		v1.GET("/privacy/retention", a.handleRetention)
		v1.GET("/ratelimit/status", a.limiter.HandleRateLimitStatus())
	}

	admin := v1.Group("/admin")
	admin.Use(auth.RequireAdmin([]byte(a.cfg.AdminJWTSecret)))
	{
		admin.POST("/config", a.handleReconfigure)
		admin.DELETE("/records/:id", a.handleForgetRecord)
		admin.POST("/cleanup", a.handleCleanup)
		admin.GET("/ratelimits", a.limiter.HandleAdminRateLimits())
		admin.DELETE("/ratelimits/:ip", a.limiter.HandleAdminInvalidateIP())
	}

	return r
}
