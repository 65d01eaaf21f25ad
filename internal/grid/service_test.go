package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpoulos/hellas-grid-monitor/internal/store"
)

type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time { return c.now }

type stubProvider struct {
	calls    map[string]int
	priceErr error
	blockFor time.Duration
}

func newStubProvider() *stubProvider {
	return &stubProvider{calls: make(map[string]int)}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generation(ctx context.Context, r TimeRange) (SeriesSet, error) {
	p.calls[OpGeneration]++
	return NewSeriesSet(Series{Label: SourceSolar, Points: []Point{{Time: r.Start, Value: Float(100)}}}), nil
}

func (p *stubProvider) Load(ctx context.Context, r TimeRange) (Series, error) {
	p.calls[OpLoad]++
	if p.blockFor > 0 {
		select {
		case <-ctx.Done():
			return Series{}, ctx.Err()
		case <-time.After(p.blockFor):
		}
	}
	return NewSeries("Actual Load", []Point{{Time: r.Start, Value: Float(5000)}}), nil
}

func (p *stubProvider) DayAheadPrices(ctx context.Context, r TimeRange) (Series, error) {
	p.calls[OpDayAheadPrices]++
	if p.priceErr != nil {
		return Series{}, p.priceErr
	}
	return NewSeries("Day-ahead Price", []Point{{Time: r.Start, Value: Float(95.5)}}), nil
}

func (p *stubProvider) GenerationForecast(ctx context.Context, r TimeRange) (Series, error) {
	p.calls[OpGenerationForecast]++
	return Series{Label: "Scheduled Generation"}, nil
}

func (p *stubProvider) LoadForecast(ctx context.Context, r TimeRange) (Series, error) {
	p.calls[OpLoadForecast]++
	return Series{Label: "Forecasted Load"}, nil
}

func newTestService(t *testing.T, p Provider, timeout time.Duration) (*Service, *stubClock) {
	t.Helper()
	clock := &stubClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	cache, err := store.NewCache(store.Options{Clock: clock})
	require.NoError(t, err)
	return NewService(p, cache, timeout), clock
}

func testRange(t *testing.T, start, end Date) TimeRange {
	t.Helper()
	r, err := NewResolver(DefaultTimezone)
	require.NoError(t, err)
	tr, err := r.Resolve(start, end)
	require.NoError(t, err)
	return tr
}

func TestServiceMemoizesByRange(t *testing.T) {
	p := newStubProvider()
	svc, clock := newTestService(t, p, 0)
	ctx := context.Background()

	r1 := testRange(t, Date{2025, time.April, 30}, Date{2025, time.May, 1})
	r2 := testRange(t, Date{2025, time.April, 29}, Date{2025, time.May, 1})

	_, err := svc.Generation(ctx, r1)
	require.NoError(t, err)
	_, err = svc.Generation(ctx, testRange(t, Date{2025, time.April, 30}, Date{2025, time.May, 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls[OpGeneration])

	_, err = svc.Generation(ctx, r2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls[OpGeneration])

	clock.now = clock.now.Add(store.DefaultSuccessTTL + time.Second)
	_, err = svc.Generation(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls[OpGeneration])
}

func TestServiceKeysOperationsSeparately(t *testing.T) {
	p := newStubProvider()
	svc, _ := newTestService(t, p, 0)
	ctx := context.Background()
	r := testRange(t, Date{2025, time.May, 1}, Date{2025, time.May, 1})

	_, _ = svc.Load(ctx, r)
	_, _ = svc.LoadForecast(ctx, r)
	_, _ = svc.GenerationForecast(ctx, r)
	_, _ = svc.Load(ctx, r)

	assert.Equal(t, 1, p.calls[OpLoad])
	assert.Equal(t, 1, p.calls[OpLoadForecast])
	assert.Equal(t, 1, p.calls[OpGenerationForecast])
}

func TestServiceCachesFailuresBriefly(t *testing.T) {
	p := newStubProvider()
	p.priceErr = NewProviderUnavailableError("stub", OpDayAheadPrices, errors.New("connection refused"))
	svc, clock := newTestService(t, p, 0)
	ctx := context.Background()
	r := testRange(t, Date{2025, time.May, 1}, Date{2025, time.May, 1})

	_, err := svc.DayAheadPrices(ctx, r)
	assert.True(t, IsProviderUnavailable(err))
	_, err = svc.DayAheadPrices(ctx, r)
	assert.True(t, IsProviderUnavailable(err))
	assert.Equal(t, 1, p.calls[OpDayAheadPrices])

	p.priceErr = nil
	clock.now = clock.now.Add(store.DefaultFailureTTL + time.Second)
	s, err := svc.DayAheadPrices(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, p.calls[OpDayAheadPrices])
}

func TestServiceTimeoutBecomesUnavailable(t *testing.T) {
	p := newStubProvider()
	p.blockFor = time.Second
	svc, _ := newTestService(t, p, 20*time.Millisecond)
	r := testRange(t, Date{2025, time.May, 1}, Date{2025, time.May, 1})

	_, err := svc.Load(context.Background(), r)
	require.Error(t, err)
	assert.True(t, IsProviderUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServiceUntypedErrorsBecomeDataErrors(t *testing.T) {
	p := newStubProvider()
	p.priceErr = errors.New("weird payload")
	svc, _ := newTestService(t, p, 0)
	r := testRange(t, Date{2025, time.May, 1}, Date{2025, time.May, 1})

	_, err := svc.DayAheadPrices(context.Background(), r)
	assert.True(t, IsProviderData(err))
}

func TestServiceRefreshForcesRefetch(t *testing.T) {
	p := newStubProvider()
	svc, _ := newTestService(t, p, 0)
	ctx := context.Background()
	r := testRange(t, Date{2025, time.May, 1}, Date{2025, time.May, 1})

	_, _ = svc.Load(ctx, r)
	assert.Equal(t, 1, svc.Refresh())
	_, _ = svc.Load(ctx, r)
	assert.Equal(t, 2, p.calls[OpLoad])
}
