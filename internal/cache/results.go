package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

type resultItem struct {
	result    scoring.ScoreResult
	expiresAt time.Time
}

// ResultCache memoizes score results per record snapshot and configuration
// version. Cached results are shared and must be treated as read-only.
type ResultCache struct {
	mu        sync.RWMutex
	items     map[string]resultItem
	ttl       time.Duration
	nextSweep time.Time
	metrics   *monitoring.Metrics

	done      chan struct{}
	closeOnce sync.Once
}

// NewResultCache creates a result cache. metrics may be nil.
func NewResultCache(ttl time.Duration, metrics *monitoring.Metrics) *ResultCache {
	rc := &ResultCache{
		items:   make(map[string]resultItem),
		ttl:     ttl,
		metrics: metrics,
		done:    make(chan struct{}),
	}

	go rc.cleanup(5 * time.Minute)

	return rc
}

func (rc *ResultCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rc.done:
			return
		case <-ticker.C:
			rc.mu.Lock()
			rc.purgeExpiredLocked(time.Now())
			rc.mu.Unlock()
		}
	}
}

// purgeExpiredLocked drops expired results. Callers hold rc.mu.
func (rc *ResultCache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for key, item := range rc.items {
		if now.After(item.expiresAt) {
			delete(rc.items, key)
			removed++
		}
	}
	rc.nextSweep = now.Add(rc.ttl)
	return removed
}

// ResultKey hashes the full record snapshot under a config version
func ResultKey(version string, r types.Record) (string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return version + ":" + hex.EncodeToString(sum[:]), nil
}

// Get returns a live cached result
func (rc *ResultCache) Get(key string) (scoring.ScoreResult, bool) {
	rc.mu.RLock()
	item, ok := rc.items[key]
	rc.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		rc.count(false)
		return scoring.ScoreResult{}, false
	}
	rc.count(true)
	return item.result, true
}

// Set stores a result under key. At most once per TTL it also sweeps expired
// results, since every record edit produces a new key.
func (rc *ResultCache) Set(key string, res scoring.ScoreResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	if now.After(rc.nextSweep) {
		rc.purgeExpiredLocked(now)
	}
	rc.items[key] = resultItem{result: res, expiresAt: now.Add(rc.ttl)}
}

// Score returns the engine's result for r, reusing a cached one when the
// record and configuration are unchanged
func (rc *ResultCache) Score(e *scoring.Engine, r types.Record) (scoring.ScoreResult, bool, error) {
	key, err := ResultKey(e.Version(), r)
	if err != nil {
		res, scoreErr := e.ScoreRecord(r)
		return res, false, scoreErr
	}

	if res, ok := rc.Get(key); ok {
		return res, true, nil
	}

	res, err := e.ScoreRecord(r)
	if err != nil {
		return res, false, err
	}
	rc.Set(key, res)
	return res, false, nil
}

// Prune drops expired results and results of other config versions
func (rc *ResultCache) Prune(version string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	prefix := version + ":"
	removed := 0
	for key, item := range rc.items {
		if now.After(item.expiresAt) || len(key) < len(prefix) || key[:len(prefix)] != prefix {
			delete(rc.items, key)
			removed++
		}
	}
	return removed
}

// Clear removes all results
func (rc *ResultCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.items = make(map[string]resultItem)
}

// Close stops the cleanup goroutine
func (rc *ResultCache) Close() {
	rc.closeOnce.Do(func() { close(rc.done) })
}

// Size returns the number of stored results
func (rc *ResultCache) Size() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return len(rc.items)
}

func (rc *ResultCache) count(hit bool) {
	if rc.metrics == nil {
		return
	}
	if hit {
		rc.metrics.IncrementCacheHit()
	} else {
		rc.metrics.IncrementCacheMiss()
	}
}
