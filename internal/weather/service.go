package weather

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
	"github.com/dpoulos/hellas-grid-monitor/internal/metrics"
	"github.com/dpoulos/hellas-grid-monitor/internal/store"
)

const (
	// DefaultTimeout bounds a single weather lookup.
	DefaultTimeout = 10 * time.Second

	// DefaultConcurrency is the number of plant lookups in flight at once.
	DefaultConcurrency = 8

	opWeather = "weather"
)

// PlantReport is a plant row enriched with its live weather reading.
type PlantReport struct {
	Plant
	Color   string  `json:"color"`
	Weather Reading `json:"weather"`
}

// Service looks up weather per location through the shared response cache.
// Lookups never fail: errors degrade to an unknown reading.
type Service struct {
	provider    Provider
	cache       *store.Cache
	timeout     time.Duration
	concurrency int
}

// NewService creates a new Service. Non-positive timeout and concurrency use the defaults.
func NewService(provider Provider, cache *store.Cache, timeout time.Duration, concurrency int) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		provider:    provider,
		cache:       cache,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Lookup returns the weather at (lat, lon) classified for the plant category.
func (s *Service) Lookup(ctx context.Context, lat, lon float64, category Category) Reading {
	return NewReading(s.observe(ctx, lat, lon), category)
}

func (s *Service) observe(ctx context.Context, lat, lon float64) Observation {
	if s.provider == nil {
		return UnknownObservation
	}

	key := fmt.Sprintf("%s|%s|%.4f|%.4f", opWeather, s.provider.Name(), lat, lon)
	obs, err := store.Fetch(s.cache, opWeather, key, func() (Observation, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.provider.Observe(callCtx, lat, lon)
	})
	if err != nil {
		metrics.WeatherDegraded.Inc()
		logger.Debug().
			Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("weather lookup degraded to unknown")
		return UnknownObservation
	}
	return obs
}

// LookupAll fans out one lookup per plant and returns the reports in input order.
// A failed lookup only affects its own row.
func (s *Service) LookupAll(ctx context.Context, plants []Plant) []PlantReport {
	reports := make([]PlantReport, len(plants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, p := range plants {
		g.Go(func() error {
			reports[i] = PlantReport{
				Plant:   p,
				Color:   p.Color(),
				Weather: s.Lookup(gctx, p.Lat, p.Lon, p.Category),
			}
			return nil
		})
	}

	// Lookups never return errors.
	_ = g.Wait()
	return reports
}
