package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// This file holds the per-crop threshold tables and the engine that turns
// raw weather into violations, warnings and opportunities plus the two
// scalar summaries (risk score and harvest readiness). The tables are plain
// data injected at startup so regional sets can be swapped without
// recompiling; defaultCropThresholds is the compiled-in set.

type cropThresholds struct {
	MoistureOptimalMin  float64 `json:"moisture_optimal_min"`
	MoistureOptimalMax  float64 `json:"moisture_optimal_max"`
	MoistureStorageMax  float64 `json:"moisture_storage_max"`
	MoistureCriticalMax float64 `json:"moisture_critical_max"`
	FrostTemp           float64 `json:"frost_temp"`
	HeatStressTemp      float64 `json:"heat_stress_temp"`
	WindShatter         float64 `json:"wind_shatter"`
	WindOperationalMax  float64 `json:"wind_operational_max"`
	RainLight           float64 `json:"rain_light"`
	RainHeavy           float64 `json:"rain_heavy"`
	RainCritical        float64 `json:"rain_critical"`
	RainWindowHours     int     `json:"rain_window_hours"`
	HumidityOptimalMin  float64 `json:"humidity_optimal_min"`
	HumidityOptimalMax  float64 `json:"humidity_optimal_max"`
	HumidityHigh        float64 `json:"humidity_high"`
	HumidityCritical    float64 `json:"humidity_critical"`

	// Crop-specific rules; a zero threshold disables the rule.
	ShatterRateMultiplier float64 `json:"shatter_rate_multiplier,omitempty"`
	SproutRainMin         float64 `json:"sprout_rain_min,omitempty"`
	SproutHumidityMin     float64 `json:"sprout_humidity_min,omitempty"`
	GerminationRainMin    float64 `json:"germination_rain_min,omitempty"`
}

var defaultCropThresholds = map[string]cropThresholds{
	"wheat": {
		MoistureOptimalMin: 12.5, MoistureOptimalMax: 14.5,
		MoistureStorageMax: 14.5, MoistureCriticalMax: 18.0,
		FrostTemp: -2.0, HeatStressTemp: 30.0,
		WindShatter: 35.0, WindOperationalMax: 45.0,
		RainLight: 2.0, RainHeavy: 10.0, RainCritical: 20.0, RainWindowHours: 24,
		HumidityOptimalMin: 40.0, HumidityOptimalMax: 70.0,
		HumidityHigh: 85.0, HumidityCritical: 95.0,
		SproutRainMin: 5.0, SproutHumidityMin: 80.0,
	},
	"barley": {
		MoistureOptimalMin: 12.0, MoistureOptimalMax: 14.8,
		MoistureStorageMax: 14.8, MoistureCriticalMax: 18.0,
		FrostTemp: -2.0, HeatStressTemp: 28.0,
		WindShatter: 30.0, WindOperationalMax: 40.0,
		RainLight: 2.0, RainHeavy: 8.0, RainCritical: 18.0, RainWindowHours: 24,
		HumidityOptimalMin: 40.0, HumidityOptimalMax: 70.0,
		HumidityHigh: 85.0, HumidityCritical: 95.0,
		GerminationRainMin: 6.0,
	},
	"canola": {
		MoistureOptimalMin: 8.0, MoistureOptimalMax: 10.0,
		MoistureStorageMax: 10.0, MoistureCriticalMax: 12.5,
		FrostTemp: -3.0, HeatStressTemp: 32.0,
		WindShatter: 25.0, WindOperationalMax: 40.0,
		RainLight: 1.5, RainHeavy: 8.0, RainCritical: 15.0, RainWindowHours: 24,
		HumidityOptimalMin: 40.0, HumidityOptimalMax: 70.0,
		HumidityHigh: 85.0, HumidityCritical: 95.0,
		ShatterRateMultiplier: 0.8,
	},
	"oats": {
		MoistureOptimalMin: 12.0, MoistureOptimalMax: 14.0,
		MoistureStorageMax: 14.0, MoistureCriticalMax: 17.0,
		FrostTemp: -2.0, HeatStressTemp: 28.0,
		WindShatter: 32.0, WindOperationalMax: 42.0,
		RainLight: 2.0, RainHeavy: 9.0, RainCritical: 18.0, RainWindowHours: 24,
		HumidityOptimalMin: 40.0, HumidityOptimalMax: 70.0,
		HumidityHigh: 85.0, HumidityCritical: 95.0,
	},
}

// loadCropThresholds reads a regional threshold table from a JSON file.
func loadCropThresholds(path string) (map[string]cropThresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read crop thresholds file: %w", err)
	}
	var thresholds map[string]cropThresholds
	if err := json.Unmarshal(data, &thresholds); err != nil {
		return nil, fmt.Errorf("could not parse crop thresholds file: %w", err)
	}
	return thresholds, nil
}

// Severity margins and classification constants.
const (
	frostCriticalMargin = 1.0 // °C beyond the frost threshold that makes it critical
	frostWarnMargin     = 2.0
	heatHighMargin      = 3.0
	heatWarnMargin      = 2.0
	windWarnMargin      = 5.0
	windCalmMax         = 15.0
	nearTermHorizon     = 6 * time.Hour
	forecastScanDays    = 7
	minOptimalRunDays   = 2

	// emcPerHumidityPct is a coarse equilibrium-moisture approximation:
	// grain moisture trends toward a fraction of ambient relative humidity.
	emcPerHumidityPct = 0.22
)

// Risk-score severity weights.
var riskWeights = map[Severity]float64{
	SeverityCritical: 0.4,
	SeverityHigh:     0.25,
	SeverityMedium:   0.1,
}

// Readiness penalties deliberately use a different, more lenient weighting
// than the risk score; the two summaries are independent formulas.
var readinessPenalties = map[Severity]float64{
	SeverityCritical: 0.5,
	SeverityHigh:     0.3,
	SeverityMedium:   0.15,
}

type thresholdEngine struct {
	thresholds map[string]cropThresholds
	logger     *slog.Logger
	now        func() time.Time
}

func newThresholdEngine(thresholds map[string]cropThresholds, logger *slog.Logger) *thresholdEngine {
	return &thresholdEngine{
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// Analyze classifies the current sample against the crop's thresholds and
// scans the forecast for advance warnings and multi-day opportunities.
func (e *thresholdEngine) Analyze(crop string, current WeatherSample, forecast []WeatherSample) (RiskAnalysis, error) {
	thresholds, ok := e.thresholds[strings.ToLower(crop)]
	if !ok {
		return RiskAnalysis{}, fmt.Errorf("%w: %q", ErrNoThresholdsForCrop, crop)
	}

	analysis := RiskAnalysis{
		Crop:       crop,
		Details:    make(map[string]any),
		AnalyzedAt: e.now().UTC(),
	}

	e.checkFrost(&analysis, thresholds, current)
	e.checkHeat(&analysis, thresholds, current)
	e.checkWind(&analysis, thresholds, current, crop)
	e.checkPrecipitation(&analysis, thresholds, current)
	e.checkHumidity(&analysis, thresholds, current)
	e.checkMoisture(&analysis, thresholds, current)
	e.checkCropRules(&analysis, thresholds, current)
	e.scanForecast(&analysis, thresholds, forecast)

	analysis.RiskScore = riskScore(analysis.Violations, analysis.Warnings)
	analysis.Readiness = readinessScore(analysis.Violations, analysis.Warnings, analysis.Opportunities)
	analysis.Details["violation_count"] = len(analysis.Violations)
	analysis.Details["warning_count"] = len(analysis.Warnings)
	analysis.Details["opportunity_count"] = len(analysis.Opportunities)

	return analysis, nil
}

// riskScore sums severity weights over violations plus 0.05 per warning,
// capped at 1.0.
func riskScore(violations []ThresholdViolation, warnings []ThresholdWarning) float64 {
	score := 0.0
	for _, v := range violations {
		score += riskWeights[v.Severity]
	}
	score += 0.05 * float64(len(warnings))
	return min(score, 1.0)
}

// readinessScore is 1.0 minus the (more lenient) severity penalties and the
// warning penalty, plus a bonus per opportunity, clamped to [0,1].
func readinessScore(violations []ThresholdViolation, warnings []ThresholdWarning, opportunities []ThresholdOpportunity) float64 {
	score := 1.0
	for _, v := range violations {
		score -= readinessPenalties[v.Severity]
	}
	score -= 0.05 * float64(len(warnings))
	score += 0.1 * float64(len(opportunities))
	return clamp01(score)
}

func clamp01(v float64) float64 {
	return min(max(v, 0.0), 1.0)
}

// sampleTempMin prefers the explicit daily minimum, then the spot reading.
func sampleTempMin(s WeatherSample) float64 {
	return valueOr(s.TemperatureMin, valueOr(s.Temperature, defaultTemperature))
}

func sampleTempMax(s WeatherSample) float64 {
	return valueOr(s.TemperatureMax, valueOr(s.Temperature, defaultTemperature))
}

func (e *thresholdEngine) checkFrost(analysis *RiskAnalysis, t cropThresholds, current WeatherSample) {
	tempMin := sampleTempMin(current)
	switch {
	case tempMin <= t.FrostTemp-frostCriticalMargin:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Frost Temperature",
			Value:          tempMin,
			Threshold:      t.FrostTemp,
			Severity:       SeverityCritical,
			Recommendation: "Immediate harvest required before frost damages the standing crop.",
		})
	case tempMin <= t.FrostTemp:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Frost Temperature",
			Value:          tempMin,
			Threshold:      t.FrostTemp,
			Severity:       SeverityHigh,
			Recommendation: "Frost conditions present; harvest as soon as equipment allows.",
		})
	case tempMin <= t.FrostTemp+frostWarnMargin:
		analysis.Warnings = append(analysis.Warnings, ThresholdWarning{
			Factor:         "Frost Temperature",
			Value:          tempMin,
			Threshold:      t.FrostTemp,
			Horizon:        nearTermHorizon,
			Recommendation: "Temperatures approaching frost threshold; monitor overnight lows.",
		})
	}
}

func (e *thresholdEngine) checkHeat(analysis *RiskAnalysis, t cropThresholds, current WeatherSample) {
	tempMax := sampleTempMax(current)
	switch {
	case tempMax >= t.HeatStressTemp+heatHighMargin:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Heat Stress",
			Value:          tempMax,
			Threshold:      t.HeatStressTemp,
			Severity:       SeverityHigh,
			Recommendation: "Severe heat stress; harvest early morning or evening only.",
		})
	case tempMax >= t.HeatStressTemp:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Heat Stress",
			Value:          tempMax,
			Threshold:      t.HeatStressTemp,
			Severity:       SeverityMedium,
			Recommendation: "Heat stress conditions; expect elevated shattering and operator fatigue.",
		})
	case tempMax >= t.HeatStressTemp-heatWarnMargin:
		analysis.Warnings = append(analysis.Warnings, ThresholdWarning{
			Factor:         "Heat Stress",
			Value:          tempMax,
			Threshold:      t.HeatStressTemp,
			Horizon:        nearTermHorizon,
			Recommendation: "Temperatures approaching heat-stress threshold.",
		})
	}
}

func (e *thresholdEngine) checkWind(analysis *RiskAnalysis, t cropThresholds, current WeatherSample, crop string) {
	wind := valueOr(current.WindSpeed, defaultWindSpeed)
	switch {
	case wind >= t.WindOperationalMax:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "High Wind Speed",
			Value:          wind,
			Threshold:      t.WindOperationalMax,
			Severity:       SeverityCritical,
			Recommendation: "Wind exceeds safe operating limits; suspend harvest operations.",
		})
	case wind >= t.WindShatter:
		recommendation := "Wind above shatter threshold; expect seed loss if harvesting continues."
		if t.ShatterRateMultiplier > 0 {
			shatterRate := (wind - t.WindShatter) * t.ShatterRateMultiplier
			analysis.Details["estimated_shatter_rate_pct"] = shatterRate
			recommendation = fmt.Sprintf("Wind above shatter threshold; estimated %.1f%% wind-driven shatter loss for %s.", shatterRate, crop)
		}
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "High Wind Speed",
			Value:          wind,
			Threshold:      t.WindShatter,
			Severity:       SeverityHigh,
			Recommendation: recommendation,
		})
	case wind >= t.WindShatter-windWarnMargin:
		analysis.Warnings = append(analysis.Warnings, ThresholdWarning{
			Factor:         "High Wind Speed",
			Value:          wind,
			Threshold:      t.WindShatter,
			Horizon:        nearTermHorizon,
			Recommendation: "Wind approaching shatter threshold; prioritize sheltered fields.",
		})
	case wind <= windCalmMax:
		analysis.Opportunities = append(analysis.Opportunities, ThresholdOpportunity{
			Factor:         "Calm Wind",
			Value:          wind,
			Threshold:      t.WindShatter,
			Recommendation: "Calm conditions favor low-loss harvesting.",
		})
	}
}

func (e *thresholdEngine) checkPrecipitation(analysis *RiskAnalysis, t cropThresholds, current WeatherSample) {
	rain := valueOr(current.Precipitation, defaultPrecipitation)
	switch {
	case rain >= t.RainCritical:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Heavy Precipitation",
			Value:          rain,
			Threshold:      t.RainCritical,
			Severity:       SeverityCritical,
			Recommendation: "Critical rainfall; fields will be inaccessible until they drain.",
		})
	case rain >= t.RainHeavy:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Heavy Precipitation",
			Value:          rain,
			Threshold:      t.RainHeavy,
			Severity:       SeverityHigh,
			Recommendation: "Heavy rainfall; expect grain moisture rebound and poor field access.",
		})
	case rain >= t.RainLight:
		analysis.Warnings = append(analysis.Warnings, ThresholdWarning{
			Factor:         "Heavy Precipitation",
			Value:          rain,
			Threshold:      t.RainHeavy,
			Horizon:        time.Duration(t.RainWindowHours) * time.Hour,
			Recommendation: "Light rain recorded; re-check grain moisture before resuming.",
		})
	case rain == 0:
		analysis.Opportunities = append(analysis.Opportunities, ThresholdOpportunity{
			Factor:         "Dry Conditions",
			Value:          rain,
			Threshold:      t.RainLight,
			Recommendation: "No precipitation; conditions favor continuous harvesting.",
		})
	}
}

func (e *thresholdEngine) checkHumidity(analysis *RiskAnalysis, t cropThresholds, current WeatherSample) {
	humidity := valueOr(current.Humidity, defaultHumidity)
	switch {
	case humidity >= t.HumidityCritical:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "High Humidity",
			Value:          humidity,
			Threshold:      t.HumidityCritical,
			Severity:       SeverityHigh,
			Recommendation: "Saturated air; grain will not dry down, delay harvest.",
		})
	case humidity >= t.HumidityHigh:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "High Humidity",
			Value:          humidity,
			Threshold:      t.HumidityHigh,
			Severity:       SeverityMedium,
			Recommendation: "High humidity slows dry-down; plan for aeration or drying.",
		})
	case humidity >= t.HumidityOptimalMin && humidity <= t.HumidityOptimalMax:
		analysis.Opportunities = append(analysis.Opportunities, ThresholdOpportunity{
			Factor:         "Optimal Humidity",
			Value:          humidity,
			Threshold:      t.HumidityOptimalMax,
			Recommendation: "Humidity inside the optimal harvesting band.",
		})
	}
}

// checkMoisture classifies an equilibrium grain-moisture estimate derived
// from ambient humidity and recent rain. A direct moisture probe reading
// would supersede this estimate, but weather feeds do not carry one.
func (e *thresholdEngine) checkMoisture(analysis *RiskAnalysis, t cropThresholds, current WeatherSample) {
	humidity := valueOr(current.Humidity, defaultHumidity)
	rain := valueOr(current.Precipitation, defaultPrecipitation)
	moisture := humidity*emcPerHumidityPct + rain*0.3
	analysis.Details["estimated_grain_moisture_pct"] = moisture

	switch {
	case moisture > t.MoistureCriticalMax:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Grain Moisture",
			Value:          moisture,
			Threshold:      t.MoistureCriticalMax,
			Severity:       SeverityHigh,
			Recommendation: "Estimated grain moisture well above the storage ceiling; budget for drying.",
		})
	case moisture > t.MoistureStorageMax:
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Grain Moisture",
			Value:          moisture,
			Threshold:      t.MoistureStorageMax,
			Severity:       SeverityMedium,
			Recommendation: "Estimated grain moisture above safe storage; harvest only with drying capacity.",
		})
	case moisture >= t.MoistureOptimalMin && moisture <= t.MoistureOptimalMax:
		analysis.Opportunities = append(analysis.Opportunities, ThresholdOpportunity{
			Factor:         "Optimal Grain Moisture",
			Value:          moisture,
			Threshold:      t.MoistureOptimalMax,
			Recommendation: "Estimated grain moisture inside the optimal band for straight cutting.",
		})
	}
}

// checkCropRules applies the crop-specific composite rules: wheat
// pre-harvest sprouting (rain and humidity together) and barley
// pre-germination (rain alone). Rules with zero thresholds are disabled.
func (e *thresholdEngine) checkCropRules(analysis *RiskAnalysis, t cropThresholds, current WeatherSample) {
	rain := valueOr(current.Precipitation, defaultPrecipitation)
	humidity := valueOr(current.Humidity, defaultHumidity)

	if t.SproutRainMin > 0 && rain >= t.SproutRainMin && humidity >= t.SproutHumidityMin {
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Pre-Harvest Sprouting Risk",
			Value:          rain,
			Threshold:      t.SproutRainMin,
			Severity:       SeverityHigh,
			Recommendation: "Rain and humidity together risk in-head sprouting; harvest at the first dry window.",
		})
	}

	if t.GerminationRainMin > 0 && rain >= t.GerminationRainMin {
		analysis.Violations = append(analysis.Violations, ThresholdViolation{
			Factor:         "Pre-Germination Risk",
			Value:          rain,
			Threshold:      t.GerminationRainMin,
			Severity:       SeverityHigh,
			Recommendation: "Rainfall sufficient to trigger pre-germination; malting quality is at risk.",
		})
	}
}

// scanForecast raises advance warnings for frost and heavy rain up to seven
// days ahead and flags the first optimal multi-day run as an opportunity.
func (e *thresholdEngine) scanForecast(analysis *RiskAnalysis, t cropThresholds, forecast []WeatherSample) {
	days := min(len(forecast), forecastScanDays)

	runStart := -1
	runLength := 0
	flaggedRun := false

	for i := 0; i < days; i++ {
		sample := forecast[i]
		daysAhead := i + 1
		tempMin := sampleTempMin(sample)
		rain := valueOr(sample.Precipitation, defaultPrecipitation)
		wind := valueOr(sample.WindSpeed, defaultWindSpeed)

		if tempMin <= t.FrostTemp {
			analysis.Warnings = append(analysis.Warnings, ThresholdWarning{
				Factor:         "Forecast Frost",
				Value:          tempMin,
				Threshold:      t.FrostTemp,
				Horizon:        time.Duration(daysAhead) * 24 * time.Hour,
				Recommendation: fmt.Sprintf("Frost expected in %d day(s); plan harvest ahead of it.", daysAhead),
			})
		}
		if rain >= t.RainHeavy {
			analysis.Warnings = append(analysis.Warnings, ThresholdWarning{
				Factor:         "Forecast Heavy Rain",
				Value:          rain,
				Threshold:      t.RainHeavy,
				Horizon:        time.Duration(daysAhead) * 24 * time.Hour,
				Recommendation: fmt.Sprintf("Heavy rain expected in %d day(s); prioritize exposed fields first.", daysAhead),
			})
		}

		goodDay := rain < t.RainLight && tempMin > t.FrostTemp && wind < t.WindShatter
		if goodDay {
			if runStart < 0 {
				runStart = i
			}
			runLength++
		} else {
			if !flaggedRun && runLength >= minOptimalRunDays {
				e.flagOptimalRun(analysis, forecast, runStart, runLength)
				flaggedRun = true
			}
			runStart = -1
			runLength = 0
		}
	}
	if !flaggedRun && runLength >= minOptimalRunDays {
		e.flagOptimalRun(analysis, forecast, runStart, runLength)
	}
}

func (e *thresholdEngine) flagOptimalRun(analysis *RiskAnalysis, forecast []WeatherSample, start, length int) {
	validFrom := forecast[start].Timestamp
	validUntil := forecast[start+length-1].Timestamp.Add(24 * time.Hour)
	analysis.Opportunities = append(analysis.Opportunities, ThresholdOpportunity{
		Factor:         "Extended Harvest Window",
		Value:          float64(length),
		Threshold:      minOptimalRunDays,
		Recommendation: fmt.Sprintf("%d consecutive favorable days in the forecast.", length),
		ValidFrom:      &validFrom,
		ValidUntil:     &validUntil,
	})
}
