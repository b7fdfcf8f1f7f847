package main

import (
	"log/slog"
	"sort"
	"time"
)

// This file turns per-day forecasts into ranked harvest windows. Each
// forecast day yields four fixed local-time slots; each slot is scored by
// the capability-weather multiplier, mapped to a recommendation, and "avoid"
// slots are discarded immediately. Selection is a greedy sweep over the
// candidates sorted by priority then confidence that drops anything
// overlapping an already accepted window.

// harvestSlots are the four fixed local-time windows per forecast day,
// expressed as start/end hours.
var harvestSlots = [4][2]int{
	{6, 10},
	{10, 14},
	{14, 18},
	{18, 20},
}

// Multiplier cutoffs for the recommendation bands.
const (
	optimalCutoff    = 0.8
	acceptableCutoff = 0.6
	marginalCutoff   = 0.4
)

// Priority bases per recommendation band. Priorities decrease with forecast
// distance so earlier days win ties between equally rated windows.
const (
	priorityOptimal    = 30
	priorityAcceptable = 20
	priorityMarginal   = 10
)

type windowScheduler struct {
	multiplier CapabilityMultiplier
	logger     *slog.Logger
}

func newWindowScheduler(multiplier CapabilityMultiplier, logger *slog.Logger) *windowScheduler {
	return &windowScheduler{
		multiplier: multiplier,
		logger:     logger,
	}
}

// GenerateWindows emits the scored slot candidates for every forecast day.
// Windows rated "avoid" are dropped here and never reach selection.
func (s *windowScheduler) GenerateWindows(capability CapabilityScore, forecast WeatherForecast, crop string) []HarvestWindow {
	windows := make([]HarvestWindow, 0, len(forecast.Samples)*len(harvestSlots))

	for dayIndex, sample := range forecast.Samples {
		day := sample.Timestamp
		for _, slot := range harvestSlots {
			start := time.Date(day.Year(), day.Month(), day.Day(), slot[0], 0, 0, 0, day.Location())
			end := time.Date(day.Year(), day.Month(), day.Day(), slot[1], 0, 0, 0, day.Location())

			multiplier := s.multiplier(capability, sample, crop)
			recommendation := recommendationFor(multiplier)
			if recommendation == WindowAvoid {
				continue
			}

			windows = append(windows, HarvestWindow{
				Start:          start,
				End:            end,
				Sample:         sample,
				Recommendation: recommendation,
				Confidence:     clamp01(multiplier),
				Priority:       priorityFor(recommendation) - dayIndex,
				Multiplier:     multiplier,
				Conditions: map[string]any{
					"temperature_c":    valueOr(sample.Temperature, defaultTemperature),
					"humidity_pct":     valueOr(sample.Humidity, defaultHumidity),
					"precipitation_mm": valueOr(sample.Precipitation, defaultPrecipitation),
					"wind_speed_kmh":   valueOr(sample.WindSpeed, defaultWindSpeed),
				},
			})
		}
	}

	return windows
}

func recommendationFor(multiplier float64) WindowRecommendation {
	switch {
	case multiplier >= optimalCutoff:
		return WindowOptimal
	case multiplier >= acceptableCutoff:
		return WindowAcceptable
	case multiplier >= marginalCutoff:
		return WindowMarginal
	default:
		return WindowAvoid
	}
}

func priorityFor(recommendation WindowRecommendation) int {
	switch recommendation {
	case WindowOptimal:
		return priorityOptimal
	case WindowAcceptable:
		return priorityAcceptable
	default:
		return priorityMarginal
	}
}

// selectBestWindows sorts candidates by priority, then confidence (stable,
// so first-seen order breaks remaining ties) and greedily accepts windows
// that do not overlap any already accepted one, stopping at maxCount.
func selectBestWindows(windows []HarvestWindow, maxCount int) []HarvestWindow {
	candidates := make([]HarvestWindow, len(windows))
	copy(candidates, windows)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Confidence > candidates[j].Confidence
	})

	selected := make([]HarvestWindow, 0, maxCount)
	for _, candidate := range candidates {
		if len(selected) >= maxCount {
			break
		}
		overlaps := false
		for _, accepted := range selected {
			if candidate.Overlaps(accepted) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			selected = append(selected, candidate)
		}
	}

	return selected
}
