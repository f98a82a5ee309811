package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/resilience"
	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin     int           // requests per minute per client IP
	BatchLimitPerMin  int           // requests per minute per IP on batch endpoints
	BurstMultiplier   int           // in-memory burst capacity multiplier
	CleanupInterval   time.Duration // how often idle fallback limiters are dropped
	FallbackIdleAfter time.Duration
	RedisBreaker      resilience.CircuitBreakerConfig
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:     120,
		BatchLimitPerMin:  20,
		BurstMultiplier:   1,
		CleanupInterval:   10 * time.Minute,
		FallbackIdleAfter: time.Hour,
		RedisBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  15 * time.Second,
			SuccessThreshold: 1,
		},
	}
}

// Rate is a request budget per period
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	breaker      *resilience.CircuitBreaker
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*fallbackLimiter
	fallbackMutex    sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter creates a new rate limiter with Redis and in-memory fallback
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if redisClient == nil {
		redisClient = DisabledRedisClient()
	}
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if config.FallbackIdleAfter <= 0 {
		config.FallbackIdleAfter = DefaultConfig().FallbackIdleAfter
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		breaker:          resilience.NewCircuitBreaker(config.RedisBreaker),
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*fallbackLimiter),
		done:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// AllowIP checks the per-minute budget of a client IP
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, ipKey(ip), Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute})
}

// AllowEndpoint checks the per-minute budget of a client IP on one endpoint
func (rl *RateLimiter) AllowEndpoint(ctx context.Context, endpoint, ip string, limit int) (*Result, error) {
	return rl.Allow(ctx, endpointKey(endpoint, ip), Rate{Limit: limit, Period: time.Minute})
}

func ipKey(ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s", ip)
}

func endpointKey(endpoint, ip string) string {
	return fmt.Sprintf("ratelimit:endpoint:%s:%s", endpoint, ip)
}

// Allow checks key against r using Redis, or the in-memory limiter when Redis
// is disabled or failing. Repeated Redis failures open a circuit breaker so
// requests stop paying for a dead connection.
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		var result *Result
		err := rl.breaker.Call(func() error {
			var callErr error
			result, callErr = rl.allowRedis(ctx, key, r)
			return callErr
		})
		if err == nil {
			return result, nil
		}

		var open *resilience.CircuitBreakerError
		if !errors.As(err, &open) {
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitRedisError()
			}
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r), nil
}

// allowRedis performs rate limiting using the redis_rate GCRA limiter
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback performs rate limiting using an in-memory token bucket
func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := time.Now()
	burst := r.Limit * rl.config.BurstMultiplier

	rl.fallbackMutex.Lock()
	fl, exists := rl.fallbackLimiters[key]
	if !exists {
		every := r.Period / time.Duration(r.Limit)
		fl = &fallbackLimiter{limiter: rate.NewLimiter(rate.Every(every), burst)}
		rl.fallbackLimiters[key] = fl
	}
	fl.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{
		Limit:   r.Limit,
		ResetAt: now.Add(r.Period),
	}

	if fl.limiter.AllowN(now, 1) {
		result.Allowed = true
	} else {
		res := fl.limiter.ReserveN(now, 1)
		result.RetryAfter = res.DelayFrom(now)
		res.CancelAt(now)
	}

	remaining := int(fl.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	if remaining > r.Limit {
		remaining = r.Limit
	}
	result.Remaining = remaining

	return result
}

// cleanupFallbackLimiters periodically drops idle fallback limiters
func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			if n := rl.pruneFallback(now); n > 0 {
				slog.Debug("Dropped idle fallback rate limiters", "count", n)
			}
		}
	}
}

func (rl *RateLimiter) pruneFallback(now time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, fl := range rl.fallbackLimiters {
		if now.Sub(fl.lastSeen) > rl.config.FallbackIdleAfter {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":       rl.redisClient.IsEnabled(),
		"fallback_limiters":   fallbackCount,
		"ip_limit_per_min":    rl.config.IPLimitPerMin,
		"batch_limit_per_min": rl.config.BatchLimitPerMin,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
		stats["redis_breaker"] = rl.breaker.GetStats()
	}

	return stats
}
