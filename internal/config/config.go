package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devAdminSecret = "leadpulse-dev-secret-change-me"

// Config is the process configuration read from the environment
type Config struct {
	Env                  string
	Port                 string
	DataDir              string
	ProfileDir           string
	ScoringProfile       string
	LogLevel             string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	AdminJWTSecret       string
	AdminTokenTTL        time.Duration
	CORSAllowAll         bool
	CORSOrigins          []string
	RateLimitPerMin      int
	BatchRateLimitPerMin int
	QueueRefreshInterval time.Duration
	CacheTTL             time.Duration
}

// Load reads .env files (when present) and then the environment
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	dataDir := getEnv("DATA_DIR", "./data")
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DataDir:        dataDir,
		ProfileDir:     getEnv("PROFILE_DIR", filepath.Join(dataDir, "profiles")),
		ScoringProfile: getEnv("SCORING_PROFILE", "default"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowAll:   containsWildcard(corsOrigins),
		CORSOrigins:    corsOrigins,
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMin, err = intEnv("RATE_LIMIT_PER_MIN", 120); err != nil {
		return nil, err
	}
	if cfg.BatchRateLimitPerMin, err = intEnv("BATCH_RATE_LIMIT_PER_MIN", 20); err != nil {
		return nil, err
	}
	if cfg.AdminTokenTTL, err = durationEnv("ADMIN_TOKEN_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.QueueRefreshInterval, err = durationEnv("QUEUE_REFRESH_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", "15m"); err != nil {
		return nil, err
	}

	if cfg.AdminJWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("ADMIN_JWT_SECRET is required in production")
		}
		cfg.AdminJWTSecret = devAdminSecret
	}
	if cfg.RateLimitPerMin <= 0 || cfg.BatchRateLimitPerMin <= 0 {
		return nil, fmt.Errorf("rate limits must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, v := range values {
		if v == "*" {
			return true
		}
	}
	return false
}
