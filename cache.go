package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// This file contains the engine's two cache layers. forecastCache is the
// in-process TTL cache holding forecasts, capability scores and computed
// window sets, each kind with its own TTL. Cache (RedisCache) is an optional
// shared second layer so several instances can reuse one forecast fetch,
// mirroring the layering the engine uses for Redis-then-API lookups.

// Cache is the shared (second-layer) cache interface.
type Cache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
	}
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	p, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, p, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Flush(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

// cacheEntry is one record in the in-process cache. lastAccessed and
// accessCount are refreshed on every hit; size is an approximation used for
// eviction heuristics, not billing.
type cacheEntry struct {
	key          string
	scope        string
	payload      any
	createdAt    time.Time
	lastAccessed time.Time
	expiresAt    time.Time
	accessCount  int64
	size         int64
}

type scopeCounters struct {
	hits    int64
	misses  int64
	expired int64
}

// forecastCache is the single-process TTL cache. Expiry is checked lazily on
// every read in addition to the periodic Sweep, so a hit never returns an
// expired payload. The entry map is shared between concurrent fetches and is
// guarded by the mutex.
type forecastCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	counters map[string]*scopeCounters
	now      func() time.Time
}

func newForecastCache() *forecastCache {
	return &forecastCache{
		entries:  make(map[string]*cacheEntry),
		counters: make(map[string]*scopeCounters),
		now:      time.Now,
	}
}

func cacheKey(scope, key string) string {
	return scope + ":" + key
}

func (c *forecastCache) countersFor(scope string) *scopeCounters {
	counters, ok := c.counters[scope]
	if !ok {
		counters = &scopeCounters{}
		c.counters[scope] = counters
	}
	return counters
}

// Get returns the payload for (scope, key). An expired entry behaves as a
// miss and is evicted on the spot.
func (c *forecastCache) Get(scope, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counters := c.countersFor(scope)
	entry, ok := c.entries[cacheKey(scope, key)]
	if !ok {
		counters.misses++
		cacheEventsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	now := c.now()
	if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
		delete(c.entries, cacheKey(scope, key))
		counters.expired++
		counters.misses++
		cacheEventsTotal.WithLabelValues("expired").Inc()
		cacheEventsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	entry.lastAccessed = now
	entry.accessCount++
	counters.hits++
	cacheEventsTotal.WithLabelValues("hit").Inc()
	return entry.payload, true
}

// Set stores a payload under (scope, key). A non-positive ttl stores the
// entry without expiry.
func (c *forecastCache) Set(scope, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := &cacheEntry{
		key:          key,
		scope:        scope,
		payload:      value,
		createdAt:    now,
		lastAccessed: now,
		size:         approximateSize(value),
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.entries[cacheKey(scope, key)] = entry
}

// Delete removes one entry.
func (c *forecastCache) Delete(scope, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(scope, key))
}

// Sweep removes every expired entry and reports how many were evicted.
func (c *forecastCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			c.countersFor(entry.scope).expired++
			cacheEventsTotal.WithLabelValues("evicted").Inc()
			removed++
		}
	}
	return removed
}

// Flush drops all entries and counters.
func (c *forecastCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.counters = make(map[string]*scopeCounters)
}

// Stats reports the hit/miss counters and entry accounting for one scope.
func (c *forecastCache) Stats(scope string) CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	counters := c.countersFor(scope)
	stats := CacheStatistics{
		Hits:           counters.hits,
		Misses:         counters.misses,
		ExpiredEntries: counters.expired,
	}
	for _, entry := range c.entries {
		if entry.scope != scope {
			continue
		}
		stats.TotalEntries++
		stats.MemoryUsage += entry.size
	}
	if total := counters.hits + counters.misses; total > 0 {
		stats.HitRate = float64(counters.hits) / float64(total)
	}
	return stats
}

// approximateSize estimates a payload's footprint via its serialized length.
func approximateSize(value any) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
