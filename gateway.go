package main

import (
	"context"
	"log/slog"
)

// weatherGateway composes the configured providers behind the circuit
// breaker into a single forecast/current-weather call with ordered fallback.
// The preference order is primary first, then the fallback; as a last resort
// the primary is tried once more even if its breaker is open.
type weatherGateway struct {
	providers []WeatherProvider
	health    *providerHealth
	logger    *slog.Logger
}

func newWeatherGateway(providers []WeatherProvider, health *providerHealth, logger *slog.Logger) *weatherGateway {
	return &weatherGateway{
		providers: providers,
		health:    health,
		logger:    logger,
	}
}

func (g *weatherGateway) GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error) {
	return gatewayAttempt(g, ctx, location, func(p WeatherProvider) (WeatherForecast, error) {
		return p.GetForecast(ctx, location, days)
	})
}

func (g *weatherGateway) GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error) {
	return gatewayAttempt(g, ctx, location, func(p WeatherProvider) (WeatherSample, error) {
		return p.GetCurrentWeather(ctx, location)
	})
}

// gatewayAttempt walks the provider preference order. An attempt against a
// provider with an open breaker is skipped unless it is the forced final
// retry of the primary. Success resets that provider's failure counter;
// failure records it and moves on. When every attempt fails the caller gets
// an aggregate error naming all attempted providers.
func gatewayAttempt[T any](g *weatherGateway, ctx context.Context, location FieldLocation, call func(WeatherProvider) (T, error)) (T, error) {
	type attempt struct {
		provider WeatherProvider
		forced   bool
	}

	attempts := make([]attempt, 0, len(g.providers)+1)
	for _, p := range g.providers {
		attempts = append(attempts, attempt{provider: p})
	}
	if len(g.providers) > 1 {
		attempts = append(attempts, attempt{provider: g.providers[0], forced: true})
	}

	var zero T
	attempted := make([]string, 0, len(attempts))
	lastErrors := make(map[string]error)

	for _, a := range attempts {
		name := a.provider.Name()

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !a.forced && !g.health.Available(name) {
			g.logger.Debug("skipping provider with open breaker", "provider", name)
			providerRequestsTotal.WithLabelValues(name, "skipped").Inc()
			continue
		}

		result, err := call(a.provider)
		if err == nil {
			g.health.RecordSuccess(name)
			providerRequestsTotal.WithLabelValues(name, "success").Inc()
			return result, nil
		}

		g.health.RecordFailure(name)
		providerRequestsTotal.WithLabelValues(name, "failure").Inc()
		g.logger.Warn("provider attempt failed", "provider", name, "location", location.FieldID, "forced", a.forced, "error", err)
		attempted = append(attempted, name)
		lastErrors[name] = err
	}

	return zero, &AllProvidersError{
		LocationID: location.FieldID,
		Attempted:  attempted,
		LastErrors: lastErrors,
	}
}
