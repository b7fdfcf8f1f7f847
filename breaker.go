package main

import (
	"log/slog"
	"sync"
	"time"
)

// providerHealth is the circuit breaker shared by the weather gateway. It
// tracks consecutive failures per provider; once a provider reaches
// maxConsecutiveFailures it is skipped until the cooldown since its last
// failure elapses. The first call after the cooldown is a half-open probe:
// a success resets the counter, a failure re-opens the breaker.
type providerHealth struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	failures    map[string]int
	lastFailure map[string]time.Time
	now         func() time.Time
	logger      *slog.Logger
}

func newProviderHealth(maxFailures int, cooldown time.Duration, logger *slog.Logger) *providerHealth {
	return &providerHealth{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		failures:    make(map[string]int),
		lastFailure: make(map[string]time.Time),
		now:         time.Now,
		logger:      logger,
	}
}

// Available reports whether a provider should receive requests. A provider
// with an open breaker becomes available again once the cooldown since its
// last failure has elapsed; that next attempt acts as the half-open probe.
func (h *providerHealth) Available(provider string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures[provider] < h.maxFailures {
		return true
	}
	return h.now().Sub(h.lastFailure[provider]) > h.cooldown
}

// RecordSuccess resets the provider's failure counter.
func (h *providerHealth) RecordSuccess(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures[provider] >= h.maxFailures {
		h.logger.Info("provider recovered, closing breaker", "provider", provider)
	}
	h.failures[provider] = 0
	breakerOpen.WithLabelValues(provider).Set(0)
}

// RecordFailure increments the provider's consecutive failure counter and
// stamps the failure time.
func (h *providerHealth) RecordFailure(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[provider]++
	h.lastFailure[provider] = h.now()
	if h.failures[provider] == h.maxFailures {
		h.logger.Warn("provider unhealthy, opening breaker", "provider", provider, "failures", h.failures[provider])
		breakerOpen.WithLabelValues(provider).Set(1)
	}
}

// Failures returns the current consecutive failure count for a provider.
func (h *providerHealth) Failures(provider string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures[provider]
}
