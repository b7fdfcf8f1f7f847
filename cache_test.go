package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(start time.Time) (*forecastCache, *time.Time) {
	current := start
	cache := newForecastCache()
	cache.now = func() time.Time { return current }
	return cache, &current
}

func TestForecastCacheSetGet(t *testing.T) {
	cache, _ := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))

	forecast := testForecast(testField("field", 50, -100), 3, time.Hour)
	cache.Set("system", "forecast:abc:3", forecast, 30*time.Minute)

	payload, ok := cache.Get("system", "forecast:abc:3")
	require.True(t, ok)
	typed, ok := payload.(WeatherForecast)
	require.True(t, ok)
	assert.Equal(t, forecast.LocationID, typed.LocationID)
	assert.Len(t, typed.Samples, 3)
}

func TestForecastCacheMiss(t *testing.T) {
	cache, _ := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))

	_, ok := cache.Get("system", "absent")
	assert.False(t, ok)

	stats := cache.Stats("system")
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestForecastCacheLazyExpiry(t *testing.T) {
	cache, current := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "key", "payload", 10*time.Minute)

	*current = current.Add(11 * time.Minute)

	_, ok := cache.Get("system", "key")
	assert.False(t, ok, "expired entry must behave as a miss")

	stats := cache.Stats("system")
	assert.Equal(t, int64(1), stats.ExpiredEntries)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0, stats.TotalEntries, "expired entry is evicted on read")
}

func TestForecastCacheEntryValidUntilTTL(t *testing.T) {
	cache, current := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "key", "payload", 10*time.Minute)

	*current = current.Add(9 * time.Minute)
	_, ok := cache.Get("system", "key")
	assert.True(t, ok)
}

func TestForecastCacheZeroTTLNeverExpires(t *testing.T) {
	cache, current := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "key", "payload", 0)

	*current = current.AddDate(1, 0, 0)
	_, ok := cache.Get("system", "key")
	assert.True(t, ok)
}

func TestForecastCacheStatsPerScope(t *testing.T) {
	cache, _ := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "a", "payload", time.Hour)
	cache.Set("user-1", "b", "payload", time.Hour)

	_, _ = cache.Get("system", "a")
	_, _ = cache.Get("system", "a")
	_, _ = cache.Get("system", "absent")
	_, _ = cache.Get("user-1", "b")

	system := cache.Stats("system")
	assert.Equal(t, int64(2), system.Hits)
	assert.Equal(t, int64(1), system.Misses)
	assert.InDelta(t, 2.0/3.0, system.HitRate, 1e-9)
	assert.Equal(t, 1, system.TotalEntries)
	assert.Greater(t, system.MemoryUsage, int64(0))

	user := cache.Stats("user-1")
	assert.Equal(t, int64(1), user.Hits)
	assert.Equal(t, int64(0), user.Misses)
	assert.Equal(t, 1, user.TotalEntries)
}

func TestForecastCacheScopesAreIsolated(t *testing.T) {
	cache, _ := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("user-1", "windows:wheat", "payload", time.Hour)

	_, ok := cache.Get("user-2", "windows:wheat")
	assert.False(t, ok, "another user's scope must not expose the entry")
}

func TestForecastCacheTracksAccessCount(t *testing.T) {
	cache, _ := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "key", "payload", time.Hour)

	for i := 0; i < 3; i++ {
		_, ok := cache.Get("system", "key")
		require.True(t, ok)
	}

	entry := cache.entries[cacheKey("system", "key")]
	require.NotNil(t, entry)
	assert.Equal(t, int64(3), entry.accessCount)
	assert.False(t, entry.lastAccessed.IsZero())
}

func TestForecastCacheSweep(t *testing.T) {
	cache, current := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "short", "payload", 5*time.Minute)
	cache.Set("system", "long", "payload", time.Hour)
	cache.Set("system", "pinned", "payload", 0)

	*current = current.Add(10 * time.Minute)

	removed := cache.Sweep()
	assert.Equal(t, 1, removed)

	_, ok := cache.Get("system", "long")
	assert.True(t, ok)
	_, ok = cache.Get("system", "pinned")
	assert.True(t, ok)
}

func TestForecastCacheDeleteAndFlush(t *testing.T) {
	cache, _ := newTestCache(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	cache.Set("system", "a", "payload", time.Hour)
	cache.Set("system", "b", "payload", time.Hour)

	cache.Delete("system", "a")
	_, ok := cache.Get("system", "a")
	assert.False(t, ok)

	cache.Flush()
	_, ok = cache.Get("system", "b")
	assert.False(t, ok)
	stats := cache.Stats("system")
	assert.Equal(t, 0, stats.TotalEntries)
}

func TestRedisCacheSetGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client)
	ctx := context.Background()

	forecast := testForecast(testField("field", 50, -100), 2, time.Hour)
	payload, err := json.Marshal(forecast)
	require.NoError(t, err)

	mock.ExpectSet("system:forecast:abc:2", payload, 30*time.Minute).SetVal("OK")
	require.NoError(t, cache.Set(ctx, "system:forecast:abc:2", forecast, 30*time.Minute))

	mock.ExpectGet("system:forecast:abc:2").SetVal(string(payload))
	got, err := cache.Get(ctx, "system:forecast:abc:2")
	require.NoError(t, err)

	var decoded WeatherForecast
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, forecast.LocationID, decoded.LocationID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheGetMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client)

	mock.ExpectGet("absent").RedisNil()
	_, err := cache.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, redis.Nil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client)

	mock.ExpectDel("system:forecast:abc:2").SetVal(1)
	assert.NoError(t, cache.Delete(context.Background(), "system:forecast:abc:2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheFlush(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client)

	mock.ExpectFlushDB().SetVal("OK")
	assert.NoError(t, cache.Flush(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
