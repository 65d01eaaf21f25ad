package grid

import (
	"context"
	"errors"
	"time"

	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
	"github.com/dpoulos/hellas-grid-monitor/internal/store"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 10 * time.Second

// Service memoizes provider queries keyed by operation and time range.
type Service struct {
	provider Provider
	cache    *store.Cache
	timeout  time.Duration
}

// NewService creates a new Service. A non-positive timeout uses DefaultTimeout.
func NewService(provider Provider, cache *store.Cache, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		provider: provider,
		cache:    cache,
		timeout:  timeout,
	}
}

// Generation returns the per-source actual generation for the range.
func (s *Service) Generation(ctx context.Context, r TimeRange) (SeriesSet, error) {
	return fetch(ctx, s, OpGeneration, r, s.provider.Generation)
}

// Load returns the actual total load for the range.
func (s *Service) Load(ctx context.Context, r TimeRange) (Series, error) {
	return fetch(ctx, s, OpLoad, r, s.provider.Load)
}

// DayAheadPrices returns the day-ahead price curve for the range.
func (s *Service) DayAheadPrices(ctx context.Context, r TimeRange) (Series, error) {
	return fetch(ctx, s, OpDayAheadPrices, r, s.provider.DayAheadPrices)
}

// GenerationForecast returns the scheduled generation for the range.
func (s *Service) GenerationForecast(ctx context.Context, r TimeRange) (Series, error) {
	return fetch(ctx, s, OpGenerationForecast, r, s.provider.GenerationForecast)
}

// LoadForecast returns the day-ahead load forecast for the range.
func (s *Service) LoadForecast(ctx context.Context, r TimeRange) (Series, error) {
	return fetch(ctx, s, OpLoadForecast, r, s.provider.LoadForecast)
}

// Refresh clears every cached response.
func (s *Service) Refresh() int {
	n := s.cache.Invalidate()
	logger.Info().Int("entries", n).Msg("cache invalidated")
	return n
}

func fetch[T any](
	ctx context.Context,
	s *Service,
	op string,
	r TimeRange,
	call func(context.Context, TimeRange) (T, error),
) (T, error) {
	key := op + "|" + s.provider.Name() + "|" + r.Key()

	return store.Fetch(s.cache, op, key, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		v, err := call(callCtx, r)
		if err != nil {
			err = classify(s.provider.Name(), op, err)
			logger.Warn().
				Err(err).
				Str("provider", s.provider.Name()).
				Str("op", op).
				Str("range", r.Key()).
				Msg("provider fetch failed")
		}
		return v, err
	})
}

// classify makes sure every provider failure carries one of the typed provider errors.
func classify(provider, op string, err error) error {
	if IsProviderError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProviderUnavailableError(provider, op, err)
	}
	return NewProviderDataError(provider, op, "", err)
}
