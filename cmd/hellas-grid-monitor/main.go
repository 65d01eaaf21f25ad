package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/dpoulos/hellas-grid-monitor/internal/api/http"
	"github.com/dpoulos/hellas-grid-monitor/internal/config"
	"github.com/dpoulos/hellas-grid-monitor/internal/dashboard"
	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
	"github.com/dpoulos/hellas-grid-monitor/internal/providers"
	"github.com/dpoulos/hellas-grid-monitor/internal/scheduler"
	"github.com/dpoulos/hellas-grid-monitor/internal/store"
	"github.com/dpoulos/hellas-grid-monitor/internal/weather"
)

func main() {
	logger.Initialize(os.Getenv("LOG_LEVEL"))

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Initialize(cfg.LogLevel)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	cache, err := store.NewCache(store.Options{
		MaxEntries: cfg.CacheMaxEntries,
		SuccessTTL: cfg.CacheTTL,
		FailureTTL: cfg.CacheFailureTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cache")
	}

	resolver, err := grid.NewResolver(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load timezone")
	}

	policy, err := grid.ParseSnapshotPolicy(cfg.SnapshotPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid snapshot policy")
	}

	plants, err := weather.LoadPlants(cfg.PlantsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load plant table")
	}

	// Providers with resilience (rate limit + circuit breaker).
	entsoe := providers.NewENTSOEProvider(httpClient, providers.ENTSOEConfig{
		Token:     cfg.ENTSOEToken,
		Area:      cfg.ENTSOEArea,
		BaseURL:   cfg.ENTSOEBaseURL,
		RateLimit: cfg.ENTSOERateLimit,
	})
	owm := providers.NewOpenWeatherProvider(httpClient, cfg.OWMToken, cfg.OWMBaseURL)

	builder := dashboard.NewBuilder(
		grid.NewService(entsoe, cache, cfg.HTTPTimeout),
		weather.NewService(owm, cache, cfg.HTTPTimeout, cfg.WeatherConcurrency),
		resolver,
		grid.NewDeriver(grid.DefaultDerivationConfig()),
		policy,
		plants,
	)

	// Janitor that evicts expired cache entries.
	sched := scheduler.New(cache, cfg.JanitorInterval)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := httpapi.NewApp(builder)

	go func() {
		logger.Info().Str("port", cfg.Port).Int("plants", len(plants)).Msg("starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}
