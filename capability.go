package main

// This file defines the capability boundary. The scoring formula for a
// combine specification belongs to a collaborator; the engine only consumes
// the resulting score and the capability-weather multiplier function. The
// static provider and reference multiplier below let the service run
// stand-alone and are replaceable injection points.

// CapabilityProvider resolves a combine specification to its capability
// score.
type CapabilityProvider interface {
	Score(combineSpecID string) (CapabilityScore, error)
}

// CapabilityMultiplier combines a capability score with a weather sample
// into the scalar used to rate a harvest window.
type CapabilityMultiplier func(capability CapabilityScore, sample WeatherSample, crop string) float64

// staticCapabilityProvider serves scores from a fixed table, falling back to
// a neutral score for unknown specs.
type staticCapabilityProvider struct {
	scores map[string]CapabilityScore
}

func newStaticCapabilityProvider(scores map[string]CapabilityScore) *staticCapabilityProvider {
	return &staticCapabilityProvider{scores: scores}
}

func (p *staticCapabilityProvider) Score(combineSpecID string) (CapabilityScore, error) {
	if score, ok := p.scores[combineSpecID]; ok {
		return score, nil
	}
	return CapabilityScore{CombineSpecID: combineSpecID, Overall: 1.0}, nil
}

// defaultCapabilityMultiplier is the reference multiplier: it starts from
// the capability's overall score and discounts for rain, wind, humidity and
// cold. Deterministic for identical inputs.
func defaultCapabilityMultiplier(capability CapabilityScore, sample WeatherSample, crop string) float64 {
	multiplier := clamp01(capability.Overall)

	rain := valueOr(sample.Precipitation, defaultPrecipitation)
	if rain > 0 {
		multiplier *= clamp01(1.0 - rain/10.0)
	}

	wind := valueOr(sample.WindSpeed, defaultWindSpeed)
	if wind > 20 {
		multiplier *= clamp01(1.0 - (wind-20)/30.0)
	}

	humidity := valueOr(sample.Humidity, defaultHumidity)
	if humidity > 85 {
		multiplier *= 0.7
	}

	if sampleTempMin(sample) < 2 {
		multiplier *= 0.5
	}

	return multiplier
}
