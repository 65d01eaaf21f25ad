package grid

import "context"

// Operation names identify provider queries in cache keys, logs and metrics.
const (
	OpGeneration         = "generation"
	OpLoad               = "load"
	OpDayAheadPrices     = "day_ahead_prices"
	OpGenerationForecast = "generation_forecast"
	OpLoadForecast       = "load_forecast"
)

// Provider abstracts the transmission-system-operator data source.
//
// Implementations return *ProviderUnavailableError or *ProviderDataError on failure
// and do not retry.
type Provider interface {
	Name() string
	Generation(ctx context.Context, r TimeRange) (SeriesSet, error)
	Load(ctx context.Context, r TimeRange) (Series, error)
	DayAheadPrices(ctx context.Context, r TimeRange) (Series, error)
	GenerationForecast(ctx context.Context, r TimeRange) (Series, error)
	LoadForecast(ctx context.Context, r TimeRange) (Series, error)
}
