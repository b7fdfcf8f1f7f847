package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// This file defines the Prometheus metrics that are exposed by the application.

// httpRequestsTotal tracks the total number of HTTP requests, partitioned by
// the request's URL path, HTTP method, and the resulting status code.
var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harvestiq_http_requests_total",
	Help: "Total number of HTTP requests by path, method and code.",
}, []string{"path", "method", "code"})

// providerRequestsTotal counts upstream weather API calls by provider and
// outcome (success, failure, skipped).
var providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harvestiq_provider_requests_total",
	Help: "Total number of weather provider attempts by provider and outcome.",
}, []string{"provider", "outcome"})

// cacheEventsTotal counts forecast-cache lookups by event kind.
var cacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harvestiq_cache_events_total",
	Help: "Total number of cache events (hit, miss, expired, evicted).",
}, []string{"event"})

// breakerOpen is 1 while a provider's circuit breaker is open.
var breakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "harvestiq_breaker_open",
	Help: "Whether the circuit breaker for a provider is currently open.",
}, []string{"provider"})

// externalRequestDuration observes the latency of outbound weather API
// requests, partitioned by target host.
var externalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "harvestiq_external_request_duration_seconds",
	Help:    "Duration of outbound weather provider requests by host.",
	Buckets: prometheus.DefBuckets,
}, []string{"host"})
