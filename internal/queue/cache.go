package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/cache"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

// ViewCache holds the latest evaluated view of each collection. Each kind
// carries a generation that moves on every invalidation, so a view built
// from records read before a write is never stored after it.
type ViewCache struct {
	cache *cache.Cache

	mu          sync.Mutex
	generations map[types.Kind]uint64
}

// NewViewCache creates a new view cache
func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{
		cache:       cache.NewCache(ttl),
		generations: make(map[types.Kind]uint64),
	}
}

// Generation returns the current generation of kind. Capture it before
// reading the records a view is built from.
func (vc *ViewCache) Generation(kind types.Kind) uint64 {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	return vc.generations[kind]
}

func (vc *ViewCache) key(kind types.Kind) string {
	return fmt.Sprintf("view:%s", kind)
}

// Get returns the cached view of kind if it was built under version
func (vc *ViewCache) Get(kind types.Kind, version string) (*View, bool) {
	data, found := vc.cache.Get(vc.key(kind))
	if !found {
		return nil, false
	}

	var view View
	if err := json.Unmarshal(data, &view); err != nil {
		slog.Error("Failed to unmarshal cached view", "error", err, "kind", kind)
		return nil, false
	}
	if view.ConfigVersion != version {
		return nil, false
	}

	return &view, true
}

// SetIfCurrent caches view unless its kind was invalidated after gen was
// captured. It reports whether the view was stored.
func (vc *ViewCache) SetIfCurrent(view *View, gen uint64) bool {
	data, err := json.Marshal(view)
	if err != nil {
		slog.Error("Failed to marshal view for cache", "error", err, "kind", view.Kind)
		return false
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()

	if vc.generations[view.Kind] != gen {
		return false
	}
	vc.cache.Set(vc.key(view.Kind), data)
	return true
}

// Invalidate drops the cached view of kind
func (vc *ViewCache) Invalidate(kind types.Kind) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	vc.generations[kind]++
	vc.cache.Delete(vc.key(kind))
}

// InvalidateAll drops every cached view
func (vc *ViewCache) InvalidateAll() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	for _, kind := range types.Kinds() {
		vc.generations[kind]++
	}
	vc.cache.Clear()
}

// GetStats returns cache statistics
func (vc *ViewCache) GetStats() map[string]interface{} {
	return vc.cache.Stats()
}

// Close stops the cache cleanup
func (vc *ViewCache) Close() {
	vc.cache.Close()
}
