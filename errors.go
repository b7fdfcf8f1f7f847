package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// This file defines the error kinds surfaced by the weather acquisition path
// and the threshold engine. Transient errors are retried locally; everything
// else escalates to provider fallback and, ultimately, to the caller.

var (
	// ErrProviderRequestFailed covers network errors, timeouts and 5xx
	// responses. Retryable.
	ErrProviderRequestFailed = errors.New("provider request failed")

	// ErrProviderRateLimited is a 429 response. Retryable with backoff.
	ErrProviderRateLimited = errors.New("provider rate limited")

	// ErrProviderResponseInvalid is a malformed payload. Never retried.
	ErrProviderResponseInvalid = errors.New("invalid provider response")

	// ErrNoThresholdsForCrop is a configuration gap surfaced to the caller.
	ErrNoThresholdsForCrop = errors.New("no thresholds configured for crop")

	// ErrCacheCorrupted is a deserialization failure on a cache hit. The
	// entry is evicted and the lookup proceeds as a miss.
	ErrCacheCorrupted = errors.New("corrupted cache entry")
)

// AllProvidersError reports that every provider attempt failed for one
// location. It carries the attempt order and the last error per provider so
// the caller sees the full failure context.
type AllProvidersError struct {
	LocationID uuid.UUID
	Attempted  []string
	LastErrors map[string]error
}

func (e *AllProvidersError) Error() string {
	parts := make([]string, 0, len(e.Attempted))
	for _, name := range e.Attempted {
		if err, ok := e.LastErrors[name]; ok && err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", name, err))
		} else {
			parts = append(parts, name)
		}
	}
	return fmt.Sprintf("all weather providers failed for location %s: %s", e.LocationID, strings.Join(parts, "; "))
}

// Unwrap exposes the last error of the final attempt so callers can still
// match on the underlying kind with errors.Is.
func (e *AllProvidersError) Unwrap() error {
	if len(e.Attempted) == 0 {
		return nil
	}
	return e.LastErrors[e.Attempted[len(e.Attempted)-1]]
}
