package cache

import (
	"strings"
	"time"

	"habit-sync/internal/metrics"
	"habit-sync/internal/store"
)

// Prefix namespaces cache keys so they never collide with the auth token,
// preferences or the offline queue living in the same backend.
const Prefix = "cache_"

// DefaultTTL applies when Set is called with a zero ttl.
const DefaultTTL = 5 * time.Minute

// Cache is a namespaced view over a store.KV for named data sets.
type Cache struct {
	kv      *store.KV
	metrics *metrics.Registry
}

// New creates a Cache over kv.
func New(kv *store.KV, metricsRegistry *metrics.Registry) *Cache {
	return &Cache{kv: kv, metrics: metricsRegistry}
}

// Key returns the backend key used for a cache key.
func Key(key string) string {
	return Prefix + key
}

// Set caches data under key. A zero ttl uses DefaultTTL; a negative ttl
// stores the entry without expiry.
func (c *Cache) Set(key string, data any, ttl time.Duration) error {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return c.kv.Set(Key(key), data, ttl)
}

// Get decodes the cached data for key into dest and reports whether it was found.
func (c *Cache) Get(key string, dest any) (bool, error) {
	ok, err := c.kv.Get(Key(key), dest)
	if err != nil {
		return false, err
	}
	if ok {
		c.metrics.Inc(metrics.CacheHitsTotal)
	} else {
		c.metrics.Inc(metrics.CacheMissesTotal)
	}
	return ok, nil
}

// Remove drops the cached data for key.
func (c *Cache) Remove(key string) error {
	return c.kv.Remove(Key(key))
}

// ClearAll removes every cache entry and leaves other keys untouched.
func (c *Cache) ClearAll() (int, error) {
	keys, err := c.kv.Keys()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, Prefix) {
			continue
		}
		if err := c.kv.Remove(k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
