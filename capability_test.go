package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCapabilityProvider(t *testing.T) {
	provider := newStaticCapabilityProvider(map[string]CapabilityScore{
		"class-9": {CombineSpecID: "class-9", Overall: 0.85},
	})

	known, err := provider.Score("class-9")
	require.NoError(t, err)
	assert.Equal(t, 0.85, known.Overall)

	unknown, err := provider.Score("unlisted")
	require.NoError(t, err)
	assert.Equal(t, 1.0, unknown.Overall, "unknown specs fall back to a neutral score")
	assert.Equal(t, "unlisted", unknown.CombineSpecID)
}

func TestDefaultCapabilityMultiplier(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	full := CapabilityScore{Overall: 1.0}

	tests := []struct {
		name   string
		sample WeatherSample
		want   float64
	}{
		{"benign conditions keep the full score", dailySample(day, 22, 55, 0, 10), 1.0},
		{"rain discounts linearly", dailySample(day, 22, 55, 5, 10), 0.5},
		{"strong wind discounts", dailySample(day, 22, 55, 0, 35), 0.5},
		{"saturated air discounts", dailySample(day, 22, 90, 0, 10), 0.7},
		{"near-frost halves the score", dailySample(day, 0, 55, 0, 10), 0.5},
		{"missing readings use planning defaults", WeatherSample{Timestamp: day}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, defaultCapabilityMultiplier(full, tt.sample, "wheat"), 1e-9)
		})
	}
}

func TestDefaultCapabilityMultiplierCompounds(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	sample := dailySample(day, 0, 90, 5, 35)

	// rain 0.5 × wind 0.5 × humidity 0.7 × cold 0.5
	got := defaultCapabilityMultiplier(CapabilityScore{Overall: 1.0}, sample, "wheat")
	assert.InDelta(t, 0.0875, got, 1e-9)
}

func TestDefaultCapabilityMultiplierDeterministic(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	sample := dailySample(day, 18, 75, 1.5, 22)
	score := CapabilityScore{Overall: 0.9}

	first := defaultCapabilityMultiplier(score, sample, "canola")
	second := defaultCapabilityMultiplier(score, sample, "canola")
	assert.Equal(t, first, second)
}
