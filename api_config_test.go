package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_STRING_VAR", "value")
	assert.Equal(t, "value", getEnv("TEST_STRING_VAR", "fallback", testLogger()))
	assert.Equal(t, "fallback", getEnv("TEST_STRING_VAR_ABSENT", "fallback", testLogger()))
}

func TestGetRequiredEnv(t *testing.T) {
	t.Setenv("TEST_REQUIRED_VAR", "value")
	assert.Equal(t, "value", getRequiredEnv("TEST_REQUIRED_VAR", testLogger()))
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		set      bool
		fallback int
		want     int
	}{
		{"valid integer", "TEST_INT_VAR", "42", true, 7, 42},
		{"invalid integer falls back", "TEST_INT_VAR", "not-a-number", true, 7, 7},
		{"missing falls back", "TEST_INT_VAR_ABSENT", "", false, 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsInt(tt.key, tt.fallback, testLogger()))
		})
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		set      bool
		fallback float64
		want     float64
	}{
		{"valid float", "TEST_FLOAT_VAR", "2.5", true, 1.0, 2.5},
		{"invalid float falls back", "TEST_FLOAT_VAR", "not-a-number", true, 1.0, 1.0},
		{"missing falls back", "TEST_FLOAT_VAR_ABSENT", "", false, 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsFloat(tt.key, tt.fallback, testLogger()))
		})
	}
}

func TestConfig(t *testing.T) {
	t.Setenv("TOMORROW_WEATHER_URL", "https://api.example.com/v4/")
	t.Setenv("TOMORROW_KEY", "secret-key")
	t.Setenv("NWS_WEATHER_URL", "https://weather.example.gov/")
	t.Setenv("PORT", "9090")
	t.Setenv("WEATHER_CACHE_MIN", "10")
	t.Setenv("CACHE_SWEEP_INTERVAL_MIN", "5")
	t.Setenv("REQUEST_TIMEOUT_SEC", "15")

	cfg := config()
	require.NotNil(t, cfg)

	assert.Equal(t, "9090", cfg.port)
	assert.Equal(t, 15*time.Second, cfg.httpClient.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.sweepInterval)
	assert.NotNil(t, cfg.cache)
	assert.NotNil(t, cfg.gateway)
	assert.NotNil(t, cfg.engine)
	assert.NotNil(t, cfg.ledger)
	assert.NotNil(t, cfg.recommender)
	assert.Nil(t, cfg.sharedCache, "no REDIS_URL means no shared cache layer")

	require.Len(t, cfg.gateway.providers, 2)
	assert.Equal(t, "Tomorrow.io API", cfg.gateway.providers[0].Name())
	assert.Equal(t, "NWS API", cfg.gateway.providers[1].Name())
}

func TestConfigLoadsThresholdFile(t *testing.T) {
	path := t.TempDir() + "/thresholds.json"
	require.NoError(t, writeTestFile(path, `{"wheat": {"frost_temp": -1.0, "heat_stress_temp": 29.0, "moisture_optimal_min": 12.0, "moisture_optimal_max": 14.0, "moisture_storage_max": 14.0, "moisture_critical_max": 17.0, "wind_shatter": 30.0, "wind_operational_max": 40.0, "rain_light": 2.0, "rain_heavy": 10.0, "rain_critical": 20.0, "rain_window_hours": 24, "humidity_optimal_min": 40.0, "humidity_optimal_max": 70.0, "humidity_high": 85.0, "humidity_critical": 95.0}}`))

	t.Setenv("TOMORROW_WEATHER_URL", "https://api.example.com/v4/")
	t.Setenv("TOMORROW_KEY", "secret-key")
	t.Setenv("NWS_WEATHER_URL", "https://weather.example.gov/")
	t.Setenv("CROP_THRESHOLDS_FILE", path)

	cfg := config()
	require.NotNil(t, cfg)

	require.Contains(t, cfg.engine.thresholds, "wheat")
	assert.Equal(t, -1.0, cfg.engine.thresholds["wheat"].FrostTemp)
	assert.NotContains(t, cfg.engine.thresholds, "canola", "file override replaces the compiled-in table")
}
