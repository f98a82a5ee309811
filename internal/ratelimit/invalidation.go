package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InvalidateIP removes every rate limit key of an IP address, including its
// endpoint budgets
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		removed := 0
		for key := range rl.fallbackLimiters {
			if key == ipKey(ip) || (strings.HasPrefix(key, "ratelimit:endpoint:") && strings.HasSuffix(key, ":"+ip)) {
				delete(rl.fallbackLimiters, key)
				removed++
			}
		}

		slog.Info("Invalidated IP rate limits (in-memory)", "ip", ip, "count", removed)
		return removed, nil
	}

	removed, err := rl.deleteByPattern(ctx, ipKey(ip))
	if err != nil {
		return removed, err
	}
	n, err := rl.deleteByPattern(ctx, endpointKey("*", ip))
	return removed + n, err
}

// InvalidateAll removes all rate limit keys
func (rl *RateLimiter) InvalidateAll(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		count := len(rl.fallbackLimiters)
		rl.fallbackLimiters = make(map[string]*fallbackLimiter)

		slog.Warn("Invalidated all rate limits (in-memory)", "count", count)
		return count, nil
	}

	slog.Warn("Invalidating all rate limits", "pattern", "ratelimit:*")
	return rl.deleteByPattern(ctx, "ratelimit:*")
}

// GetKeyCount returns the number of live rate limit keys
func (rl *RateLimiter) GetKeyCount(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()
		return len(rl.fallbackLimiters), nil
	}

	count := 0
	err := rl.scan(ctx, "ratelimit:*", func(keys []string) error {
		count += len(keys)
		return nil
	})
	return count, err
}

// deleteByPattern deletes all Redis keys matching a pattern
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	client := rl.redisClient.GetClient()

	deletedCount := 0
	err := rl.scan(ctx, pattern, func(keys []string) error {
		deleted, err := client.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
		deletedCount += int(deleted)
		return nil
	})
	if err != nil {
		return deletedCount, err
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deletedCount)
	return deletedCount, nil
}

// scan walks matching keys with SCAN rather than KEYS
func (rl *RateLimiter) scan(ctx context.Context, pattern string, fn func([]string) error) error {
	client := rl.redisClient.GetClient()

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
