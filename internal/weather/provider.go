package weather

import "context"

// Provider abstracts a current-weather data source (e.g. OpenWeatherMap).
// Implementations return an Observation with Known set on success.
type Provider interface {
	Name() string
	Observe(ctx context.Context, lat, lon float64) (Observation, error)
}
