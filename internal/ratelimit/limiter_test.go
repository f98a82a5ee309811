package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFallbackLimiter(t *testing.T, config Config) (*RateLimiter, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(DisabledRedisClient(), config, metrics)
	t.Cleanup(limiter.Close)
	return limiter, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter, metrics := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "test:ip:1", rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	result, err := limiter.Allow(ctx, "test:ip:1", rateLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))

	other, err := limiter.Allow(ctx, "test:ip:2", rateLimit)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "budgets are per key")

	assert.Equal(t, int64(7), metrics.GetRateLimitStats()["fallback_count"])
}

func TestRateLimiterBurstMultiplier(t *testing.T) {
	config := DefaultConfig()
	config.BurstMultiplier = 2
	limiter, _ := newFallbackLimiter(t, config)

	allowed := 0
	for i := 0; i < 15; i++ {
		result, err := limiter.Allow(context.Background(), "burst", Rate{Limit: 5, Period: time.Minute})
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}

func TestRateLimiterRejectsInvalidRate(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)
}

func TestPruneFallback(t *testing.T) {
	config := DefaultConfig()
	config.FallbackIdleAfter = time.Minute
	limiter, _ := newFallbackLimiter(t, config)

	_, err := limiter.AllowIP(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 0, limiter.pruneFallback(time.Now()))
	assert.Equal(t, 1, limiter.pruneFallback(time.Now().Add(2*time.Minute)))
}

func TestInvalidateIPFallback(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	ip := "192.168.1.1"

	for i := 0; i < 3; i++ {
		_, err := limiter.AllowEndpoint(ctx, "/v1/prioritize", ip, 3)
		require.NoError(t, err)
	}
	_, err := limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	_, err = limiter.AllowIP(ctx, "10.0.0.9")
	require.NoError(t, err)

	blocked, err := limiter.AllowEndpoint(ctx, "/v1/prioritize", ip, 3)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	removed, err := limiter.InvalidateIP(ctx, ip)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	fresh, err := limiter.AllowEndpoint(ctx, "/v1/prioritize", ip, 3)
	require.NoError(t, err)
	assert.True(t, fresh.Allowed)

	count, err := limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func newRedisLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	require.True(t, client.IsEnabled())
	t.Cleanup(func() { client.Close() })

	limiter := NewRateLimiter(client, DefaultConfig(), monitoring.NewMetrics())
	t.Cleanup(limiter.Close)
	return limiter, mr
}

func TestRedisLimiterEnforcesBudget(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()
	rateLimit := Rate{Limit: 3, Period: time.Minute}

	allowed := 0
	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, ipKey("203.0.113.7"), rateLimit)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestRedisInvalidateIP(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(ipKey("203.0.113.7"), "1"))
	require.NoError(t, mr.Set(endpointKey("/v1/prioritize", "203.0.113.7"), "1"))
	require.NoError(t, mr.Set(ipKey("198.51.100.1"), "1"))

	count, err := limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	removed, err := limiter.InvalidateIP(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, mr.Exists(ipKey("198.51.100.1")))

	removed, err = limiter.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRedisFailureOpensBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(client, DefaultConfig(), metrics)
	t.Cleanup(limiter.Close)

	mr.Close()

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		result, err := limiter.AllowIP(ctx, "192.0.2.10")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	stats := metrics.GetRateLimitStats()
	assert.Equal(t, int64(3), stats["redis_errors"], "breaker opens after three failures")
	assert.Equal(t, int64(6), stats["fallback_count"])
	assert.Equal(t, "open", limiter.GetStats()["redis_breaker"].(map[string]interface{})["state"])
}

func TestRedisClientWithoutAddress(t *testing.T) {
	client, err := NewRedisClient("", "", 0)
	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
	assert.Error(t, client.HealthCheck(context.Background()))
	assert.Equal(t, false, client.GetPoolStats()["enabled"])
}

func TestIPRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := DefaultConfig()
	config.IPLimitPerMin = 2
	limiter, metrics := newFallbackLimiter(t, config)

	router := gin.New()
	router.Use(limiter.IPRateLimitMiddleware())
	router.GET("/v1/config", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/config", nil))
		codes = append(codes, w.Code)
		last = w
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, int64(1), metrics.GetRateLimitStats()["ip_blocks"])
}

func TestEndpointRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, metrics := newFallbackLimiter(t, DefaultConfig())

	router := gin.New()
	router.POST("/v1/prioritize", limiter.EndpointRateLimitMiddleware("/v1/prioritize", 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/prioritize", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/prioritize", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, map[string]int64{"/v1/prioritize": 1}, metrics.GetRateLimitStats()["endpoint_blocks"])
}
