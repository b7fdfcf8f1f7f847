package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// This file contains the generic helper behind the engine's layered cache
// lookups. Every cached payload kind (forecasts, capability scores, computed
// window sets) flows through the same path:
// 1. The in-process forecast cache is checked first.
// 2. On a miss, the shared Redis layer is consulted when configured.
// 3. As a final fallback the supplied fetch function is invoked and both
//    layers are updated with the payload's declared TTL.
// A payload that fails the type or deserialization boundary is corrupted:
// it is evicted, logged, and the lookup proceeds as a miss.

func getCachedOrFetch[T any](
	ctx context.Context,
	local *forecastCache,
	shared Cache,
	logger *slog.Logger,
	scope string,
	key string,
	promoteTTL time.Duration,
	fetch func(context.Context) (T, time.Duration, error),
) (T, bool, error) {
	var zero T

	if payload, ok := local.Get(scope, key); ok {
		typed, ok := payload.(T)
		if ok {
			logger.Debug("cache hit", "scope", scope, "key", key)
			return typed, true, nil
		}
		local.Delete(scope, key)
		logger.Warn("evicting corrupted cache entry", "scope", scope, "key", key,
			"error", fmt.Errorf("%w: unexpected payload type %T", ErrCacheCorrupted, payload))
	}

	if shared != nil {
		sharedKey := cacheKey(scope, key)
		cached, err := shared.Get(ctx, sharedKey)
		if err == nil {
			var typed T
			if jsonErr := json.Unmarshal([]byte(cached), &typed); jsonErr == nil {
				logger.Debug("shared cache hit", "scope", scope, "key", key)
				local.Set(scope, key, typed, promoteTTL)
				return typed, true, nil
			} else {
				if delErr := shared.Delete(ctx, sharedKey); delErr != nil {
					logger.Warn("could not evict corrupted shared entry", "key", sharedKey, "error", delErr)
				}
				logger.Warn("evicting corrupted shared cache entry", "key", sharedKey,
					"error", fmt.Errorf("%w: %v", ErrCacheCorrupted, jsonErr))
			}
		} else if err != redis.Nil {
			logger.Warn("error getting from shared cache", "key", sharedKey, "error", err)
		}
	}

	value, ttl, err := fetch(ctx)
	if err != nil {
		return zero, false, err
	}
	logger.Debug("fetch successful", "scope", scope, "key", key)

	local.Set(scope, key, value, ttl)
	if shared != nil {
		if cacheErr := shared.Set(ctx, cacheKey(scope, key), value, ttl); cacheErr != nil {
			logger.Warn("error setting to shared cache", "scope", scope, "key", key, "error", cacheErr)
		}
	}

	return value, false, nil
}
