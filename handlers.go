package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// This file contains the HTTP handlers for the engine's API surface. Each
// handler validates the request, calls into the orchestrator or the cache
// and cost ledger, and writes the final JSON response.

// recommendationRequestJSON is the wire shape of a recommendation request.
type recommendationRequestJSON struct {
	UserID       string   `json:"user_id"`
	Crop         string   `json:"crop"`
	ForecastDays int      `json:"forecast_days"`
	CombineSpecs []string `json:"combine_specs"`
	Fields       []struct {
		FieldID   string  `json:"field_id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"fields"`
}

// handlerRecommendations serves POST /api/recommendations. It returns the
// ranked harvest windows for the supplied fields and crop, along with the
// per-cluster risk analyses and what the request cost upstream.
func (cfg *apiConfig) handlerRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		cfg.respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return
	}

	var body recommendationRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		cfg.respondWithError(w, http.StatusBadRequest, "Error decoding request body", err)
		return
	}
	if body.Crop == "" || len(body.Fields) == 0 {
		cfg.respondWithError(w, http.StatusBadRequest, "A crop and at least one field are required", nil)
		return
	}

	req := RecommendationRequest{
		UserID:       body.UserID,
		Crop:         body.Crop,
		ForecastDays: body.ForecastDays,
		CombineSpecs: body.CombineSpecs,
	}
	for _, field := range body.Fields {
		if field.Latitude < -90 || field.Latitude > 90 || field.Longitude < -180 || field.Longitude > 180 {
			cfg.respondWithError(w, http.StatusBadRequest, "Field coordinates out of range", nil)
			return
		}
		fieldID, err := uuid.Parse(field.FieldID)
		if err != nil {
			fieldID = uuid.New()
		}
		req.Fields = append(req.Fields, FieldLocation{
			FieldID:   fieldID,
			Name:      field.Name,
			Latitude:  field.Latitude,
			Longitude: field.Longitude,
			UserID:    body.UserID,
		})
	}
	cfg.logger.Debug("recommendation request", "user", req.UserID, "crop", req.Crop, "fields", len(req.Fields))

	result, err := cfg.recommender.GetRecommendations(ctx, req)
	if err != nil {
		cfg.respondWithError(w, http.StatusInternalServerError, "Error generating harvest recommendations", err)
		return
	}

	windows := make([]HarvestWindowJSON, len(result.Windows))
	for i, window := range result.Windows {
		windows[i] = HarvestWindowJSON{
			Start:          window.Start.Format(time.RFC3339),
			End:            window.End.Format(time.RFC3339),
			Recommendation: string(window.Recommendation),
			Confidence:     window.Confidence,
			Priority:       window.Priority,
			Multiplier:     window.Multiplier,
		}
	}

	response := RecommendationResponse{
		UserID:       result.UserID,
		Crop:         result.Crop,
		Windows:      windows,
		Analyses:     result.Analyses,
		Summary:      result.Summary,
		CacheHitRate: result.CacheHitRate,
		Incomplete:   result.Incomplete,
		GeneratedAt:  result.GeneratedAt.Format(time.RFC3339),
	}

	cfg.respondWithJSON(w, http.StatusOK, response)
}

// handlerCacheStats serves GET /api/cachestats?scope=<scope>.
func (cfg *apiConfig) handlerCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		cfg.respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = systemScope
	}

	cfg.respondWithJSON(w, http.StatusOK, cfg.cache.Stats(scope))
}

// handlerCostSummary serves GET /api/costsummary from the global ledger.
func (cfg *apiConfig) handlerCostSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		cfg.respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return
	}

	cfg.respondWithJSON(w, http.StatusOK, cfg.ledger.Summary())
}

// handlerFlushCache empties both cache layers. Registered in dev mode only.
func (cfg *apiConfig) handlerFlushCache(w http.ResponseWriter, r *http.Request) {
	cfg.cache.Flush()
	if cfg.sharedCache != nil {
		if err := cfg.sharedCache.Flush(r.Context()); err != nil {
			cfg.respondWithError(w, http.StatusInternalServerError, "Error flushing shared cache", err)
			return
		}
	}
	cfg.respondWithJSON(w, http.StatusOK, map[string]string{"status": "cache flushed"})
}
