package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type apiConfig struct {
	logger        *slog.Logger
	devMode       bool
	port          string
	httpClient    *http.Client
	cache         *forecastCache
	sharedCache   Cache
	gateway       *weatherGateway
	engine        *thresholdEngine
	ledger        *costLedger
	recommender   recommender
	sweepInterval time.Duration
}

// recommender is the slice of the orchestrator the HTTP layer depends on.
type recommender interface {
	GetRecommendations(ctx context.Context, req RecommendationRequest) (RecommendationResult, error)
}

// getRequiredEnv retrieves an environment variable by key, and fatals if it's not set.
func getRequiredEnv(key string, logger *slog.Logger) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		logger.Error("environment variable must be set", "key", key)
		os.Exit(1)
	}
	return val
}

// getEnv retrieves an environment variable by key, with a fallback value.
func getEnv(key, fallback string, logger *slog.Logger) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	logger.Info("environment variable not set, using fallback", "key", key, "fallback", fallback)
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer, with a fallback value.
func getEnvAsInt(key string, fallback int, logger *slog.Logger) int {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		logger.Info("environment variable not set, using fallback", "key", key, "fallback", fallback)
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		logger.Warn("invalid integer value for environment variable, using fallback", "key", key, "value", valStr, "error", err)
		return fallback
	}
	return val
}

// getEnvAsFloat retrieves an environment variable as a float, with a fallback value.
func getEnvAsFloat(key string, fallback float64, logger *slog.Logger) float64 {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		logger.Info("environment variable not set, using fallback", "key", key, "fallback", fallback)
		return fallback
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		logger.Warn("invalid float value for environment variable, using fallback", "key", key, "value", valStr, "error", err)
		return fallback
	}
	return val
}

func config() *apiConfig {
	devModeStr := os.Getenv("DEV_MODE")
	devMode, err := strconv.ParseBool(devModeStr)
	if err != nil {
		devMode = false
	}

	var logger *slog.Logger
	if devMode {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment variables")
	}

	requestTimeout := time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SEC", 30, logger)) * time.Second
	httpClient := &http.Client{
		Timeout:   requestTimeout,
		Transport: &metricsTransport{wrapped: http.DefaultTransport},
	}

	var sharedCache Cache
	if redisURL, ok := os.LookupEnv("REDIS_URL"); ok {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("could not parse Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opt)
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Error("could not connect to Redis", "error", err)
			os.Exit(1)
		}
		sharedCache = NewRedisCache(redisClient)
		logger.Info("shared Redis cache layer enabled")
	}

	thresholds := defaultCropThresholds
	if path, ok := os.LookupEnv("CROP_THRESHOLDS_FILE"); ok {
		loaded, err := loadCropThresholds(path)
		if err != nil {
			logger.Error("could not load crop thresholds", "path", path, "error", err)
			os.Exit(1)
		}
		thresholds = loaded
		logger.Info("loaded regional crop thresholds", "path", path, "crops", len(loaded))
	}

	weatherCacheTTL := time.Duration(getEnvAsInt("WEATHER_CACHE_MIN", 30, logger)) * time.Minute
	capabilityCacheTTL := time.Duration(getEnvAsInt("CAPABILITY_CACHE_MIN", 720, logger)) * time.Minute
	windowCacheTTL := time.Duration(getEnvAsInt("WINDOW_CACHE_MIN", 15, logger)) * time.Minute

	limiter := newSlidingWindowLimiter(getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100, logger), time.Minute)
	transport := &providerTransport{
		httpClient:     httpClient,
		limiter:        limiter,
		maxRetries:     getEnvAsInt("MAX_RETRIES", 3, logger),
		retryBaseDelay: time.Duration(getEnvAsInt("RETRY_BASE_DELAY_MS", 500, logger)) * time.Millisecond,
		requestTimeout: requestTimeout,
		logger:         logger,
	}

	primary := newTomorrowProvider(
		getRequiredEnv("TOMORROW_WEATHER_URL", logger),
		getRequiredEnv("TOMORROW_KEY", logger),
		weatherCacheTTL,
		transport,
	)
	fallback := newNWSProvider(
		getRequiredEnv("NWS_WEATHER_URL", logger),
		weatherCacheTTL,
		transport,
	)

	health := newProviderHealth(
		getEnvAsInt("MAX_CONSECUTIVE_FAILURES", 5, logger),
		time.Duration(getEnvAsInt("BREAKER_TIMEOUT_MIN", 15, logger))*time.Minute,
		logger,
	)
	gateway := newWeatherGateway([]WeatherProvider{primary, fallback}, health, logger)

	cache := newForecastCache()
	engine := newThresholdEngine(thresholds, logger)
	scheduler := newWindowScheduler(defaultCapabilityMultiplier, logger)
	ledger := &costLedger{}

	orch := &orchestrator{
		gateway:    gateway,
		cache:      cache,
		shared:     sharedCache,
		capability: newStaticCapabilityProvider(nil),
		engine:     engine,
		scheduler:  scheduler,
		ledger:     ledger,
		logger:     logger,

		clusterRadiusKm:      getEnvAsFloat("CLUSTER_RADIUS_KM", 10.0, logger),
		maxForecastDays:      getEnvAsInt("MAX_FORECAST_DAYS", 7, logger),
		maxWindows:           getEnvAsInt("MAX_HARVEST_WINDOWS", 10, logger),
		weatherCacheTTL:      weatherCacheTTL,
		capabilityCacheTTL:   capabilityCacheTTL,
		windowCacheTTL:       windowCacheTTL,
		costPerProvider: map[string]float64{
			primary.Name():  getEnvAsFloat("API_COST_TOMORROW", 0.001, logger),
			fallback.Name(): getEnvAsFloat("API_COST_NWS", 0.0, logger),
		},
		maxConcurrentFetches: getEnvAsInt("MAX_CONCURRENT_FETCHES", 3, logger),
		now:                  time.Now,
	}

	cfg := apiConfig{
		logger:        logger,
		devMode:       devMode,
		port:          getEnv("PORT", "8080", logger),
		httpClient:    httpClient,
		cache:         cache,
		sharedCache:   sharedCache,
		gateway:       gateway,
		engine:        engine,
		ledger:        ledger,
		recommender:   orch,
		sweepInterval: time.Duration(getEnvAsInt("CACHE_SWEEP_INTERVAL_MIN", 10, logger)) * time.Minute,
	}

	return &cfg
}
