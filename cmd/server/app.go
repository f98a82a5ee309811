package main

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/cache"
	"github.com/ZanzyTHEbar/leadpulse/internal/config"
	"github.com/ZanzyTHEbar/leadpulse/internal/database"
	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/middleware"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/privacy"
	"github.com/ZanzyTHEbar/leadpulse/internal/queue"
	"github.com/ZanzyTHEbar/leadpulse/internal/ratelimit"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/security"
)

// app holds every long-lived component of the server
type app struct {
	cfg     *config.Config
	logger  *monitoring.Logger
	metrics *monitoring.Metrics

	db       *database.DB
	repo     *database.Repository
	profiles *scoring.ProfileStore
	queue    *queue.Service
	privacy  *privacy.Service

	redis       *ratelimit.RedisClient
	limiter     *ratelimit.RateLimiter
	security    *security.SecurityMiddleware
	compression *middleware.CompressionMiddleware
	responses   *cache.Cache

	startedAt time.Time
}

// newApp loads the scoring profile and opens every backing store. A profile
// that fails validation stops startup.
func newApp(cfg *config.Config, logger *monitoring.Logger) (*app, error) {
	profiles := scoring.NewProfileStore(cfg.ProfileDir)
	scoringCfg, err := profiles.LoadProfile(cfg.ScoringProfile)
	if err != nil {
		return nil, err
	}
	engine, err := scoring.NewEngine(scoringCfg)
	if err != nil {
		return nil, err
	}
	logger.ConfigLogger("loaded", "", engine.Version())

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	repo := database.NewRepository(db)

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Continuing without Redis", "addr", cfg.RedisAddr, "error", err)
	}

	metrics := monitoring.NewMetrics()

	limits := ratelimit.DefaultConfig()
	limits.IPLimitPerMin = cfg.RateLimitPerMin
	limits.BatchLimitPerMin = cfg.BatchRateLimitPerMin

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		db:       db,
		repo:     repo,
		profiles: profiles,
		queue: queue.NewServiceWithCache(
			repo,
			engine,
			cache.NewResultCache(cfg.CacheTTL, metrics),
			queue.NewViewCache(cfg.CacheTTL),
			logger,
			metrics,
		),
		privacy: privacy.NewService(repo, privacy.DefaultRetentionPolicy()),
		redis:   redisClient,
		limiter: ratelimit.NewRateLimiter(redisClient, limits, metrics),
		security: security.NewSecurityMiddleware(security.SecurityConfig{
			AllowAllOrigins: cfg.CORSAllowAll,
			AllowedOrigins:  cfg.CORSOrigins,
		}),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		responses:   cache.NewCache(cfg.CacheTTL),
		startedAt:   time.Now(),
	}, nil
}

func (a *app) configVersion() string {
	return a.queue.Engine().Version()
}

// close stops background work and releases the stores
func (a *app) close() {
	a.queue.Close()
	a.limiter.Close()
	a.responses.Close()
	apperrors.SafeClose(a.redis, "redis")
	apperrors.SafeClose(a.db, "database")
}
