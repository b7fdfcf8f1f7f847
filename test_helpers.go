package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// --- Mocks ---

// testLogger returns a logger that discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockProvider is a mock for the WeatherProvider interface that counts
// invocations.
type mockProvider struct {
	name            string
	mu              sync.Mutex
	forecastCalls   int
	currentCalls    int
	GetForecastFunc func(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error)
	GetCurrentFunc  func(ctx context.Context, location FieldLocation) (WeatherSample, error)
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error) {
	m.mu.Lock()
	m.forecastCalls++
	m.mu.Unlock()
	if m.GetForecastFunc != nil {
		return m.GetForecastFunc(ctx, location, days)
	}
	return WeatherForecast{}, errors.New("GetForecastFunc not implemented in mock")
}

func (m *mockProvider) GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error) {
	m.mu.Lock()
	m.currentCalls++
	m.mu.Unlock()
	if m.GetCurrentFunc != nil {
		return m.GetCurrentFunc(ctx, location)
	}
	return WeatherSample{}, errors.New("GetCurrentFunc not implemented in mock")
}

func (m *mockProvider) ForecastCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forecastCalls
}

// mockGateway is a mock for the forecastGateway interface.
type mockGateway struct {
	GetForecastFunc func(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error)
	GetCurrentFunc  func(ctx context.Context, location FieldLocation) (WeatherSample, error)
}

func (m *mockGateway) GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error) {
	if m.GetForecastFunc != nil {
		return m.GetForecastFunc(ctx, location, days)
	}
	return WeatherForecast{}, errors.New("GetForecastFunc not implemented in mock")
}

func (m *mockGateway) GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error) {
	if m.GetCurrentFunc != nil {
		return m.GetCurrentFunc(ctx, location)
	}
	return WeatherSample{}, errors.New("GetCurrentFunc not implemented in mock")
}

// mockRecommender is a mock for the recommender interface used by handlers.
type mockRecommender struct {
	GetRecommendationsFunc func(ctx context.Context, req RecommendationRequest) (RecommendationResult, error)
}

func (m *mockRecommender) GetRecommendations(ctx context.Context, req RecommendationRequest) (RecommendationResult, error) {
	if m.GetRecommendationsFunc != nil {
		return m.GetRecommendationsFunc(ctx, req)
	}
	return RecommendationResult{}, errors.New("GetRecommendationsFunc not implemented in mock")
}

// mockCache is a mock for the shared Cache interface.
type mockCache struct {
	getFunc    func(ctx context.Context, key string) (string, error)
	setFunc    func(ctx context.Context, key string, value any, expiration time.Duration) error
	deleteFunc func(ctx context.Context, key string) error
	flushFunc  func(ctx context.Context) error
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, key)
	}
	return "", redis.Nil
}

func (m *mockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, key, value, expiration)
	}
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, key)
	}
	return nil
}

func (m *mockCache) Flush(ctx context.Context) error {
	if m.flushFunc != nil {
		return m.flushFunc(ctx)
	}
	return nil
}

// errorTransport is an http.RoundTripper that always fails.
type errorTransport struct {
	err error
}

func (t *errorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, t.err
}

// writeTestFile writes a fixture file for tests that read from disk.
func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// dailySample builds a forecast sample for tests.
func dailySample(day time.Time, temp, humidity, rain, wind float64) WeatherSample {
	return WeatherSample{
		Timestamp:     day,
		Temperature:   ptr(temp),
		Humidity:      ptr(humidity),
		Precipitation: ptr(rain),
		WindSpeed:     ptr(wind),
	}
}

// testForecast builds a chronological forecast with the given number of
// benign daily samples.
func testForecast(location FieldLocation, days int, ttl time.Duration) WeatherForecast {
	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	samples := make([]WeatherSample, 0, days)
	for i := 0; i < days; i++ {
		samples = append(samples, dailySample(start.AddDate(0, 0, i), 22.0, 55.0, 0.0, 10.0))
	}
	return WeatherForecast{
		LocationID:  location.FieldID,
		GeneratedAt: start,
		SourceAPI:   "Tomorrow.io API",
		Samples:     samples,
		CacheTTL:    ttl,
	}
}
