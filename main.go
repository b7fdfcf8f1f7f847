package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config()
	cfg.logger.Debug("configuration loaded")

	go func() {
		ticker := time.NewTicker(cfg.sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			removed := cfg.cache.Sweep()
			if removed > 0 {
				cfg.logger.Debug("cache sweep complete", "removed", removed)
			}
		}
	}()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/recommendations", cfg.handlerRecommendations)
	mux.HandleFunc("/api/cachestats", cfg.handlerCacheStats)
	mux.HandleFunc("/api/costsummary", cfg.handlerCostSummary)
	mux.Handle("/metrics", promhttp.Handler())

	if cfg.devMode {
		cfg.logger.Debug("development mode enabled. Registering /dev/flush-cache endpoint.")
		mux.HandleFunc("/dev/flush-cache", cfg.handlerFlushCache)
	}

	server := &http.Server{
		Addr:    ":" + cfg.port,
		Handler: corsMiddleware(metricsMiddleware(mux)),
	}

	cfg.logger.Info("starting server", "port", cfg.port)
	err := server.ListenAndServe()
	if err != nil {
		cfg.logger.Error("server startup failed", "error", err)
		os.Exit(1)
	}
}
