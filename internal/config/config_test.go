package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_ENV", "PORT", "DATA_DIR", "PROFILE_DIR", "SCORING_PROFILE", "LOG_LEVEL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "ADMIN_JWT_SECRET", "ADMIN_TOKEN_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_PER_MIN", "BATCH_RATE_LIMIT_PER_MIN",
	"QUEUE_REFRESH_INTERVAL", "CACHE_TTL",
}

// clearEnv blanks every key Load reads; getEnv treats empty as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, filepath.Join("./data", "profiles"), cfg.ProfileDir)
	assert.Equal(t, "default", cfg.ScoringProfile)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, 20, cfg.BatchRateLimitPerMin)
	assert.Equal(t, 10*time.Minute, cfg.QueueRefreshInterval)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.AdminTokenTTL)
	assert.Equal(t, devAdminSecret, cfg.AdminJWTSecret)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.False(t, cfg.CORSAllowAll)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("DATA_DIR", "/srv/leadpulse")
	t.Setenv("SCORING_PROFILE", "support")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example, *, ")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("QUEUE_REFRESH_INTERVAL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, filepath.Join("/srv/leadpulse", "profiles"), cfg.ProfileDir)
	assert.Equal(t, "support", cfg.ScoringProfile)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example", "*"}, cfg.CORSOrigins)
	assert.True(t, cfg.CORSAllowAll)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, 90*time.Second, cfg.QueueRefreshInterval)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables already present in the environment
	for _, key := range []string{"PORT", "SCORING_PROFILE"} {
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nSCORING_PROFILE=sales\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("SCORING_PROFILE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "sales", cfg.ScoringProfile)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad redis db", map[string]string{"REDIS_DB": "zero"}},
		{"bad rate limit", map[string]string{"RATE_LIMIT_PER_MIN": "many"}},
		{"non-positive rate limit", map[string]string{"RATE_LIMIT_PER_MIN": "-1"}},
		{"bad refresh interval", map[string]string{"QUEUE_REFRESH_INTERVAL": "soon"}},
		{"zero cache ttl", map[string]string{"CACHE_TTL": "0s"}},
		{"production without secret", map[string]string{"APP_ENV": "production"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProductionWithSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "s3cret", cfg.AdminJWTSecret)
}
