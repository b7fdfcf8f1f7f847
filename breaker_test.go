package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderHealthStaysClosedBelowThreshold(t *testing.T) {
	health := newProviderHealth(5, 15*time.Minute, testLogger())

	for i := 0; i < 4; i++ {
		health.RecordFailure("Tomorrow.io API")
	}

	assert.True(t, health.Available("Tomorrow.io API"))
	assert.Equal(t, 4, health.Failures("Tomorrow.io API"))
}

func TestProviderHealthOpensAndRecovers(t *testing.T) {
	current := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	health := newProviderHealth(5, 15*time.Minute, testLogger())
	health.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		health.RecordFailure("Tomorrow.io API")
	}
	assert.False(t, health.Available("Tomorrow.io API"), "breaker should open after five consecutive failures")

	current = current.Add(14 * time.Minute)
	assert.False(t, health.Available("Tomorrow.io API"), "cooldown has not elapsed yet")

	current = current.Add(2 * time.Minute)
	assert.True(t, health.Available("Tomorrow.io API"), "provider becomes probeable after the cooldown")

	health.RecordSuccess("Tomorrow.io API")
	assert.True(t, health.Available("Tomorrow.io API"))
	assert.Equal(t, 0, health.Failures("Tomorrow.io API"))
}

func TestProviderHealthHalfOpenProbeFailureReopens(t *testing.T) {
	current := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	health := newProviderHealth(5, 15*time.Minute, testLogger())
	health.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		health.RecordFailure("NWS API")
	}

	current = current.Add(16 * time.Minute)
	assert.True(t, health.Available("NWS API"))

	// The probe fails, stamping a fresh failure time.
	health.RecordFailure("NWS API")
	assert.False(t, health.Available("NWS API"), "failed probe should re-open the breaker")

	current = current.Add(16 * time.Minute)
	assert.True(t, health.Available("NWS API"))
}

func TestProviderHealthCountersArePerProvider(t *testing.T) {
	health := newProviderHealth(5, 15*time.Minute, testLogger())

	health.RecordFailure("NWS API")
	health.RecordFailure("NWS API")
	health.RecordFailure("Tomorrow.io API")
	health.RecordSuccess("NWS API")

	assert.Equal(t, 0, health.Failures("NWS API"))
	assert.Equal(t, 1, health.Failures("Tomorrow.io API"))
}
