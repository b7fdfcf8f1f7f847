package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// This file contains the top-level façade that ties the engine together:
// cluster the fields, fetch forecasts through the layered cache and the
// gateway, run the threshold engine and the window scheduler, track what the
// request cost, and cache the computed window set. Forecast fetches for
// independent clusters run on a bounded worker pool so they cannot overwhelm
// the rate limiter.

// forecastGateway is the slice of the weather gateway the orchestrator uses.
type forecastGateway interface {
	GetForecast(ctx context.Context, location FieldLocation, days int) (WeatherForecast, error)
	GetCurrentWeather(ctx context.Context, location FieldLocation) (WeatherSample, error)
}

// costLedger is the append-only record of upstream API usage. Entries are
// never mutated after creation.
type costLedger struct {
	mu      sync.Mutex
	entries []ApiCallCost
}

func (l *costLedger) Append(entry ApiCallCost) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *costLedger) Entries() []ApiCallCost {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]ApiCallCost, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *costLedger) Summary() CostSummary {
	return summarizeCosts(l.Entries())
}

func summarizeCosts(entries []ApiCallCost) CostSummary {
	summary := CostSummary{CostsByProvider: make(map[string]float64)}
	for _, entry := range entries {
		summary.TotalCalls += entry.Calls
		summary.TotalCost += entry.EstimatedCost
		summary.CostsByProvider[entry.Provider] += entry.EstimatedCost
		if entry.FromCache {
			summary.CachedCalls += entry.Calls
		}
	}
	if summary.TotalCalls > 0 {
		summary.CacheHitRate = float64(summary.CachedCalls) / float64(summary.TotalCalls)
	}
	return summary
}

// windowSetPayload is the tagged cache variant for computed window sets, so
// a bad deserialization is caught at the type boundary.
type windowSetPayload struct {
	Windows  []HarvestWindow `json:"windows"`
	Analyses []RiskAnalysis  `json:"analyses"`
}

type orchestrator struct {
	gateway    forecastGateway
	cache      *forecastCache
	shared     Cache
	capability CapabilityProvider
	engine     *thresholdEngine
	scheduler  *windowScheduler
	ledger     *costLedger
	logger     *slog.Logger

	clusterRadiusKm      float64
	maxForecastDays      int
	maxWindows           int
	weatherCacheTTL      time.Duration
	capabilityCacheTTL   time.Duration
	windowCacheTTL       time.Duration
	costPerProvider      map[string]float64
	maxConcurrentFetches int
	now                  func() time.Time
}

// systemScope owns cache entries shared across users (forecasts, capability
// scores); computed window sets are scoped to the requesting user.
const systemScope = "system"

// GetRecommendations is the engine entry point. A cancelled caller context
// aborts outstanding fetches and yields a partial result with the Incomplete
// flag set; any other fetch failure aborts the whole request.
func (o *orchestrator) GetRecommendations(ctx context.Context, req RecommendationRequest) (RecommendationResult, error) {
	if len(req.Fields) == 0 {
		return RecommendationResult{}, errors.New("no field locations supplied")
	}
	if req.Crop == "" {
		return RecommendationResult{}, errors.New("no crop supplied")
	}
	days := req.ForecastDays
	if days <= 0 || days > o.maxForecastDays {
		days = o.maxForecastDays
	}

	scope := req.UserID
	if scope == "" {
		scope = systemScope
	}
	windowKey := windowSetKey(req, days)

	if payload, ok := o.cache.Get(scope, windowKey); ok {
		if cached, ok := payload.(windowSetPayload); ok {
			o.logger.Debug("serving precomputed window set", "user", req.UserID, "crop", req.Crop)
			return RecommendationResult{
				UserID:       req.UserID,
				Crop:         req.Crop,
				Windows:      cached.Windows,
				Analyses:     cached.Analyses,
				Costs:        []ApiCallCost{},
				Summary:      CostSummary{CostsByProvider: map[string]float64{}, CacheHitRate: 1.0},
				CacheHitRate: 1.0,
				GeneratedAt:  o.now().UTC(),
			}, nil
		}
		o.cache.Delete(scope, windowKey)
		o.logger.Warn("evicting corrupted window set entry", "scope", scope, "key", windowKey)
	}

	clusters := clusterLocations(req.Fields, o.clusterRadiusKm)
	o.logger.Debug("clustered fields", "fields", len(req.Fields), "clusters", len(clusters))

	requestLedger := &costLedger{}
	forecasts := make([]WeatherForecast, len(clusters))
	fetched := make([]bool, len(clusters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrentFetches)
	for i, cluster := range clusters {
		g.Go(func() error {
			forecast, err := o.forecastForCluster(gctx, cluster, days, requestLedger)
			if err != nil {
				return err
			}
			forecasts[i] = forecast
			fetched[i] = true
			return nil
		})
	}

	incomplete := false
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("recommendation request cancelled, returning partial results", "user", req.UserID, "crop", req.Crop)
			incomplete = true
		} else {
			return RecommendationResult{}, fmt.Errorf("recommendations for user %q crop %q: %w", req.UserID, req.Crop, err)
		}
	}

	combines := req.CombineSpecs
	if len(combines) == 0 {
		combines = []string{""}
	}

	var allWindows []HarvestWindow
	var analyses []RiskAnalysis
	for i := range clusters {
		if !fetched[i] {
			continue
		}
		forecast := forecasts[i]

		analysis, err := o.engine.Analyze(req.Crop, forecast.Samples[0], forecast.Samples[1:])
		if err != nil {
			return RecommendationResult{}, err
		}
		analyses = append(analyses, analysis)

		for _, combineSpec := range combines {
			capability, err := o.capabilityFor(ctx, combineSpec)
			if err != nil {
				return RecommendationResult{}, fmt.Errorf("capability score for %q: %w", combineSpec, err)
			}
			windows := o.scheduler.GenerateWindows(capability, forecast, req.Crop)
			allWindows = append(allWindows, windows...)
		}
	}

	selected := selectBestWindows(allWindows, o.maxWindows)

	if !incomplete {
		o.cache.Set(scope, windowKey, windowSetPayload{Windows: selected, Analyses: analyses}, o.windowCacheTTL)
	}

	costs := requestLedger.Entries()
	summary := summarizeCosts(costs)

	return RecommendationResult{
		UserID:       req.UserID,
		Crop:         req.Crop,
		Windows:      selected,
		Analyses:     analyses,
		Costs:        costs,
		Summary:      summary,
		CacheHitRate: summary.CacheHitRate,
		Incomplete:   incomplete,
		GeneratedAt:  o.now().UTC(),
	}, nil
}

// forecastForCluster resolves one cluster's forecast through the layered
// cache, falling through to the gateway, and appends the resulting cost
// entry to both the request and the global ledger.
func (o *orchestrator) forecastForCluster(ctx context.Context, cluster LocationCluster, days int, requestLedger *costLedger) (WeatherForecast, error) {
	representative := cluster.Representative
	key := fmt.Sprintf("forecast:%s:%d", representative.FieldID, days)

	forecast, fromCache, err := getCachedOrFetch(ctx, o.cache, o.shared, o.logger, systemScope, key, o.weatherCacheTTL,
		func(ctx context.Context) (WeatherForecast, time.Duration, error) {
			fetched, err := o.gateway.GetForecast(ctx, representative, days)
			if err != nil {
				return WeatherForecast{}, 0, err
			}
			ttl := fetched.CacheTTL
			if ttl <= 0 {
				ttl = o.weatherCacheTTL
			}
			return fetched, ttl, nil
		})
	if err != nil {
		return WeatherForecast{}, err
	}
	if len(forecast.Samples) == 0 {
		o.cache.Delete(systemScope, key)
		return WeatherForecast{}, fmt.Errorf("%w: empty forecast for location %s", ErrProviderResponseInvalid, representative.FieldID)
	}

	cost := ApiCallCost{
		Provider:   forecast.SourceAPI,
		Endpoint:   "forecast",
		Timestamp:  o.now().UTC(),
		Calls:      1,
		LocationID: representative.FieldID,
		FromCache:  fromCache,
	}
	if !fromCache {
		cost.EstimatedCost = o.costPerProvider[forecast.SourceAPI]
	}
	requestLedger.Append(cost)
	o.ledger.Append(cost)

	return forecast, nil
}

// capabilityFor resolves a combine spec's capability score through the
// cache; capability scores are stable, so they get the long TTL.
func (o *orchestrator) capabilityFor(ctx context.Context, combineSpec string) (CapabilityScore, error) {
	if combineSpec == "" {
		return CapabilityScore{Overall: 1.0}, nil
	}
	score, _, err := getCachedOrFetch(ctx, o.cache, o.shared, o.logger, systemScope, "capability:"+combineSpec, o.capabilityCacheTTL,
		func(ctx context.Context) (CapabilityScore, time.Duration, error) {
			fetched, err := o.capability.Score(combineSpec)
			if err != nil {
				return CapabilityScore{}, 0, err
			}
			return fetched, o.capabilityCacheTTL, nil
		})
	return score, err
}

// windowSetKey derives a deterministic cache key for a (user, fields, crop,
// days, combines) request. Field and combine identifiers are sorted so the
// key is independent of request ordering.
func windowSetKey(req RecommendationRequest, days int) string {
	fieldIDs := make([]string, 0, len(req.Fields))
	for _, field := range req.Fields {
		fieldIDs = append(fieldIDs, field.FieldID.String())
	}
	sort.Strings(fieldIDs)

	combines := make([]string, len(req.CombineSpecs))
	copy(combines, req.CombineSpecs)
	sort.Strings(combines)

	digest := sha256.Sum256([]byte(strings.Join(fieldIDs, ",") + "|" + strings.Join(combines, ",")))
	return fmt.Sprintf("windows:%s:%d:%s", strings.ToLower(req.Crop), days, hex.EncodeToString(digest[:8]))
}
