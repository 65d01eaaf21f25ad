// Package metrics provides Prometheus collectors for the grid monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts fetches served from the response cache, by operation.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hellas_grid_cache_hits_total",
		Help: "Total number of provider fetches served from cache",
	}, []string{"op"})

	// CacheMisses counts fetches that reached a provider, by operation.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hellas_grid_cache_misses_total",
		Help: "Total number of provider fetches that missed the cache",
	}, []string{"op"})

	// CacheEntries tracks the number of stored cache entries.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hellas_grid_cache_entries",
		Help: "Number of entries currently held in the response cache",
	})

	// ProviderRequests counts provider calls by provider, operation and outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hellas_grid_provider_requests_total",
		Help: "Total number of upstream provider requests",
	}, []string{"provider", "op", "outcome"})

	// ProviderLatency tracks upstream call duration.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hellas_grid_provider_request_duration_seconds",
		Help:    "Duration of upstream provider requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "op"})

	// WeatherDegraded counts plant weather lookups that fell back to unknown.
	WeatherDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hellas_grid_weather_degraded_total",
		Help: "Total number of weather lookups degraded to unknown",
	})
)

// Outcome labels for ProviderRequests.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeBadData     = "bad_data"
)
