package main

import (
	"time"

	"github.com/google/uuid"
)

// This file defines the core domain types of the harvest intelligence engine:
// field locations, weather samples and forecasts, location clusters, threshold
// findings, harvest windows and the cost ledger entries, plus the JSON shapes
// returned by the HTTP API.

type FieldLocation struct {
	FieldID   uuid.UUID `json:"field_id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UserID    string    `json:"user_id,omitempty"`
}

// WeatherSample is one observation or one forecast day. All numeric readings
// are pointers: providers omit fields they cannot measure, and absence is not
// the same as zero. Consumers apply the documented planning defaults instead.
type WeatherSample struct {
	LocationID         uuid.UUID `json:"location_id"`
	Timestamp          time.Time `json:"timestamp"`
	SourceAPI          string    `json:"source_api"`
	Temperature        *float64  `json:"temperature_c,omitempty"`
	TemperatureMin     *float64  `json:"temperature_min_c,omitempty"`
	TemperatureMax     *float64  `json:"temperature_max_c,omitempty"`
	Humidity           *float64  `json:"humidity,omitempty"`
	Precipitation      *float64  `json:"precipitation_mm,omitempty"`
	WindSpeed          *float64  `json:"wind_speed_kmh,omitempty"`
	WindDirection      *float64  `json:"wind_direction_deg,omitempty"`
	DewPoint           *float64  `json:"dew_point_c,omitempty"`
	LeafWetness        *float64  `json:"leaf_wetness,omitempty"`
	Evapotranspiration *float64  `json:"evapotranspiration_mm,omitempty"`
	ConditionCode      int32     `json:"condition_code,omitempty"`
	Description        string    `json:"description,omitempty"`
}

// Planning defaults applied when a provider omits a reading. These are
// planning assumptions, not physics.
const (
	defaultTemperature   = 20.0
	defaultHumidity      = 60.0
	defaultPrecipitation = 0.0
	defaultWindSpeed     = 0.0
)

// valueOr unwraps an optional reading, falling back to the planning default.
func valueOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func ptr(v float64) *float64 { return &v }

// WeatherForecast is an ordered run of daily samples for one location.
// A successfully returned forecast is never empty and its samples are
// chronologically increasing.
type WeatherForecast struct {
	LocationID  uuid.UUID       `json:"location_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	SourceAPI   string          `json:"source_api"`
	Samples     []WeatherSample `json:"samples"`
	CacheTTL    time.Duration   `json:"cache_ttl"`
}

// LocationCluster groups fields that share one representative weather fetch.
// Every member lies within the cluster radius of the representative.
type LocationCluster struct {
	ClusterID      uuid.UUID       `json:"cluster_id"`
	Representative FieldLocation   `json:"representative"`
	Members        []FieldLocation `json:"members"`
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

type ThresholdViolation struct {
	Factor         string   `json:"factor"`
	Value          float64  `json:"value"`
	Threshold      float64  `json:"threshold"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// ThresholdWarning flags a factor approaching its threshold. Horizon is how
// far ahead the violation is expected; zero means the current sample.
type ThresholdWarning struct {
	Factor         string        `json:"factor"`
	Value          float64       `json:"value"`
	Threshold      float64       `json:"threshold"`
	Horizon        time.Duration `json:"horizon"`
	Recommendation string        `json:"recommendation"`
}

type ThresholdOpportunity struct {
	Factor         string     `json:"factor"`
	Value          float64    `json:"value"`
	Threshold      float64    `json:"threshold"`
	Recommendation string     `json:"recommendation"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
}

// RiskAnalysis is derived per request and never persisted.
type RiskAnalysis struct {
	Crop          string                 `json:"crop"`
	Violations    []ThresholdViolation   `json:"violations"`
	Warnings      []ThresholdWarning     `json:"warnings"`
	Opportunities []ThresholdOpportunity `json:"opportunities"`
	RiskScore     float64                `json:"risk_score"`
	Readiness     float64                `json:"readiness"`
	Details       map[string]any         `json:"details,omitempty"`
	AnalyzedAt    time.Time              `json:"analyzed_at"`
}

type WindowRecommendation string

const (
	WindowOptimal    WindowRecommendation = "optimal"
	WindowAcceptable WindowRecommendation = "acceptable"
	WindowMarginal   WindowRecommendation = "marginal"
	WindowAvoid      WindowRecommendation = "avoid"
)

type HarvestWindow struct {
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
	Sample         WeatherSample        `json:"sample"`
	Recommendation WindowRecommendation `json:"recommendation"`
	Confidence     float64              `json:"confidence"`
	Priority       int                  `json:"priority"`
	Multiplier     float64              `json:"multiplier"`
	Conditions     map[string]any       `json:"conditions,omitempty"`
}

// Overlaps reports whether two windows share any instant.
func (w HarvestWindow) Overlaps(o HarvestWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// CapabilityScore is opaque to the engine: the scoring formula belongs to a
// collaborator. Overall is in [0,1].
type CapabilityScore struct {
	CombineSpecID string             `json:"combine_spec_id"`
	Overall       float64            `json:"overall"`
	Factors       map[string]float64 `json:"factors,omitempty"`
}

// ApiCallCost is one entry in the append-only cost ledger.
type ApiCallCost struct {
	Provider      string    `json:"provider"`
	Endpoint      string    `json:"endpoint"`
	Timestamp     time.Time `json:"timestamp"`
	Calls         int       `json:"calls"`
	EstimatedCost float64   `json:"estimated_cost"`
	LocationID    uuid.UUID `json:"location_id"`
	FromCache     bool      `json:"from_cache"`
}

type CostSummary struct {
	TotalCost       float64            `json:"total_cost"`
	CostsByProvider map[string]float64 `json:"costs_by_provider"`
	TotalCalls      int                `json:"total_calls"`
	CachedCalls     int                `json:"cached_calls"`
	CacheHitRate    float64            `json:"cache_hit_rate"`
}

type CacheStatistics struct {
	TotalEntries   int     `json:"total_entries"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	ExpiredEntries int64   `json:"expired_entries"`
	MemoryUsage    int64   `json:"memory_usage"`
}

// RecommendationRequest is the orchestrator input.
type RecommendationRequest struct {
	UserID       string          `json:"user_id"`
	Fields       []FieldLocation `json:"fields"`
	Crop         string          `json:"crop"`
	ForecastDays int             `json:"forecast_days"`
	CombineSpecs []string        `json:"combine_specs"`
}

// RecommendationResult is the orchestrator output: the ranked windows, the
// per-cluster risk analyses, and what the request cost.
type RecommendationResult struct {
	UserID       string          `json:"user_id"`
	Crop         string          `json:"crop"`
	Windows      []HarvestWindow `json:"windows"`
	Analyses     []RiskAnalysis  `json:"analyses"`
	Costs        []ApiCallCost   `json:"costs"`
	Summary      CostSummary     `json:"summary"`
	CacheHitRate float64         `json:"cache_hit_rate"`
	Incomplete   bool            `json:"incomplete"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// JSON shapes for the HTTP API.

type HarvestWindowJSON struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Priority       int     `json:"priority"`
	Multiplier     float64 `json:"multiplier"`
}

type RecommendationResponse struct {
	UserID       string              `json:"user_id"`
	Crop         string              `json:"crop"`
	Windows      []HarvestWindowJSON `json:"windows"`
	Analyses     []RiskAnalysis      `json:"analyses"`
	Summary      CostSummary         `json:"cost_summary"`
	CacheHitRate float64             `json:"cache_hit_rate"`
	Incomplete   bool                `json:"incomplete"`
	GeneratedAt  string              `json:"generated_at"`
}
