package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// This file implements the per-provider weather clients. Each client issues
// one HTTP call through a shared resilient transport that applies the request
// timeout, the retry/backoff policy and the sliding-window rate limiter, then
// normalizes the provider-specific payload into the engine's weather types.

// WeatherProvider is one external weather data source.
type WeatherProvider interface {
	Name() string
	GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error)
	GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error)
}

// providerTransport bundles the HTTP client with the resilience policy shared
// by all providers. Retries cover timeouts, socket errors, 429 and 5xx; any
// other 4xx fails immediately. The rate limiter delays calls, never rejects.
type providerTransport struct {
	httpClient     *http.Client
	limiter        *slidingWindowLimiter
	maxRetries     int
	retryBaseDelay time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// do performs one logical API call with up to maxRetries attempts and returns
// the raw response body. buildRequest is invoked per attempt because a request
// body can only be read once.
func (t *providerTransport) do(ctx context.Context, provider string, buildRequest func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if attempt > 0 {
			delay := t.retryBaseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Int64N(int64(time.Second)))
			t.logger.Debug("retrying provider request", "provider", provider, "attempt", attempt, "delay", delay.String())
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := t.attempt(ctx, buildRequest)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		t.logger.Warn("provider request failed", "provider", provider, "attempt", attempt, "error", err)
	}

	return nil, lastErr
}

// attempt issues a single HTTP request under the per-call timeout.
func (t *providerTransport) attempt(ctx context.Context, buildRequest func(context.Context) (*http.Request, error)) ([]byte, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	req, err := buildRequest(reqCtx)
	if err != nil {
		return nil, false, err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", ErrProviderRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading response: %v", ErrProviderRequestFailed, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%w: %s", ErrProviderRateLimited, resp.Status)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: %s", ErrProviderRequestFailed, resp.Status)
	default:
		return nil, false, fmt.Errorf("%w: unexpected status %s", ErrProviderRequestFailed, resp.Status)
	}
}

// tomorrowProvider is the primary commercial provider. Forecasts are a POST
// with a field list and an ISO-8601 time range; realtime is a GET with query
// parameters.
type tomorrowProvider struct {
	name      string
	baseURL   string
	apiKey    string
	cacheTTL  time.Duration
	transport *providerTransport
	now       func() time.Time
}

func newTomorrowProvider(baseURL, apiKey string, cacheTTL time.Duration, transport *providerTransport) *tomorrowProvider {
	return &tomorrowProvider{
		name:      "Tomorrow.io API",
		baseURL:   baseURL,
		apiKey:    apiKey,
		cacheTTL:  cacheTTL,
		transport: transport,
		now:       time.Now,
	}
}

func (p *tomorrowProvider) Name() string { return p.name }

var tomorrowForecastFields = []string{
	"temperature", "temperatureMin", "temperatureMax", "humidity",
	"precipitationIntensity", "windSpeed", "windDirection", "dewPoint",
	"leafWetness", "evapotranspiration", "weatherCode",
}

func (p *tomorrowProvider) GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error) {
	start := p.now().UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, days)

	payload := map[string]any{
		"location":  fmt.Sprintf("%f,%f", location.Latitude, location.Longitude),
		"fields":    tomorrowForecastFields,
		"timesteps": []string{"1d"},
		"startTime": start.Format(time.RFC3339),
		"endTime":   end.Format(time.RFC3339),
		"units":     "metric",
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return WeatherForecast{}, err
	}

	body, err := p.transport.do(ctx, p.name, func(ctx context.Context) (*http.Request, error) {
		url := fmt.Sprintf("%stimelines?apikey=%s", p.baseURL, p.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return WeatherForecast{}, err
	}

	forecast, err := ParseForecastTomorrow(bytes.NewReader(body), location)
	if err != nil {
		return WeatherForecast{}, err
	}
	forecast.GeneratedAt = p.now().UTC()
	forecast.CacheTTL = p.cacheTTL
	return forecast, nil
}

func (p *tomorrowProvider) GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error) {
	body, err := p.transport.do(ctx, p.name, func(ctx context.Context) (*http.Request, error) {
		url := fmt.Sprintf("%srealtime?location=%f,%f&units=metric&apikey=%s", p.baseURL, location.Latitude, location.Longitude, p.apiKey)
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return WeatherSample{}, err
	}
	return ParseCurrentWeatherTomorrow(bytes.NewReader(body), location)
}

// nwsProvider is the fallback government provider. Both endpoints return
// GeoJSON feature collections.
type nwsProvider struct {
	name      string
	baseURL   string
	cacheTTL  time.Duration
	transport *providerTransport
	now       func() time.Time
}

func newNWSProvider(baseURL string, cacheTTL time.Duration, transport *providerTransport) *nwsProvider {
	return &nwsProvider{
		name:      "NWS API",
		baseURL:   baseURL,
		cacheTTL:  cacheTTL,
		transport: transport,
		now:       time.Now,
	}
}

func (p *nwsProvider) Name() string { return p.name }

func (p *nwsProvider) GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error) {
	body, err := p.transport.do(ctx, p.name, func(ctx context.Context) (*http.Request, error) {
		url := fmt.Sprintf("%sforecast?point=%f,%f&days=%d", p.baseURL, location.Latitude, location.Longitude, days)
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return WeatherForecast{}, err
	}

	forecast, err := ParseForecastNWS(bytes.NewReader(body), location)
	if err != nil {
		return WeatherForecast{}, err
	}
	forecast.GeneratedAt = p.now().UTC()
	forecast.CacheTTL = p.cacheTTL
	return forecast, nil
}

func (p *nwsProvider) GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error) {
	body, err := p.transport.do(ctx, p.name, func(ctx context.Context) (*http.Request, error) {
		url := fmt.Sprintf("%sobservations/latest?point=%f,%f", p.baseURL, location.Latitude, location.Longitude)
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return WeatherSample{}, err
	}
	return ParseCurrentWeatherNWS(bytes.NewReader(body), location)
}

var _ WeatherProvider = (*tomorrowProvider)(nil)
var _ WeatherProvider = (*nwsProvider)(nil)
