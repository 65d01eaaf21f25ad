// Package dashboard assembles every dashboard section from the cached pipeline.
// Each section is fetched independently; a failing source only empties its own section.
package dashboard

import (
	"context"
	"time"

	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
	"github.com/dpoulos/hellas-grid-monitor/internal/weather"
)

// LabelTotalGeneration labels the summed actual generation in forecast comparisons.
const LabelTotalGeneration = "Total Generation"

// GenerationSection is the live mix, its derived metrics and the stacked trend.
type GenerationSection struct {
	Error    string                   `json:"error,omitempty"`
	Empty    bool                     `json:"empty"`
	DataTime *time.Time               `json:"dataTime,omitempty"`
	Snapshot *grid.GenerationSnapshot `json:"snapshot,omitempty"`
	Metrics  *grid.DerivedMetrics     `json:"metrics,omitempty"`
	Analysis grid.Analysis            `json:"analysis"`
	Trend    grid.StackedTrend        `json:"trend"`
}

// TrendSection is a single series with its extremes.
type TrendSection struct {
	Error string     `json:"error,omitempty"`
	Trend grid.Trend `json:"trend"`
}

// PriceSection is the day-ahead price curve and its latest value.
type PriceSection struct {
	Error      string         `json:"error,omitempty"`
	Latest     grid.NullFloat `json:"latest"`
	LatestTime *time.Time     `json:"latestTime,omitempty"`
	Trend      grid.Trend     `json:"trend"`
}

// ComparisonSection pairs an actual series with its forecast.
type ComparisonSection struct {
	Error      string          `json:"error,omitempty"`
	Comparison grid.Comparison `json:"comparison"`
}

// ForecastSection covers today and tomorrow.
type ForecastSection struct {
	Range      grid.TimeRange    `json:"range"`
	Generation ComparisonSection `json:"generation"`
	Load       ComparisonSection `json:"load"`
}

// Dashboard is the full display-ready structure for one date selection.
type Dashboard struct {
	Range      grid.TimeRange        `json:"range"`
	Start      string                `json:"start"`
	End        string                `json:"end"`
	Generation GenerationSection     `json:"generation"`
	Load       TrendSection          `json:"load"`
	Price      PriceSection          `json:"price"`
	Forecast   ForecastSection       `json:"forecast"`
	Plants     []weather.PlantReport `json:"plants"`
}

// Builder runs the fetch-then-derive pass for a date selection.
type Builder struct {
	grid     *grid.Service
	weather  *weather.Service
	resolver *grid.Resolver
	deriver  *grid.Deriver
	policy   grid.SnapshotPolicy
	plants   []weather.Plant
}

// NewBuilder creates a new Builder.
func NewBuilder(
	gridSvc *grid.Service,
	weatherSvc *weather.Service,
	resolver *grid.Resolver,
	deriver *grid.Deriver,
	policy grid.SnapshotPolicy,
	plants []weather.Plant,
) *Builder {
	return &Builder{
		grid:     gridSvc,
		weather:  weatherSvc,
		resolver: resolver,
		deriver:  deriver,
		policy:   policy,
		plants:   plants,
	}
}

// Resolver returns the builder's time range resolver.
func (b *Builder) Resolver() *grid.Resolver {
	return b.resolver
}

// Build assembles every section. Only an invalid selection is returned as an error.
func (b *Builder) Build(ctx context.Context, start, end grid.Date) (*Dashboard, error) {
	r, err := b.resolver.ResolveSelection(start, end)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Range: r,
		Start: start.String(),
		End:   end.String(),
	}
	d.Generation = b.Generation(ctx, r)
	d.Load = b.Load(ctx, r)
	d.Price = b.Price(ctx, r)
	d.Forecast = b.Forecast(ctx)
	d.Plants = b.Plants(ctx)

	logger.Debug().
		Str("range", r.Key()).
		Bool("generation_ok", d.Generation.Error == "").
		Bool("load_ok", d.Load.Error == "").
		Bool("price_ok", d.Price.Error == "").
		Int("plants", len(d.Plants)).
		Msg("dashboard built")
	return d, nil
}

// Generation builds the generation mix section.
func (b *Builder) Generation(ctx context.Context, r grid.TimeRange) GenerationSection {
	set, err := b.grid.Generation(ctx, r)
	if err != nil {
		return GenerationSection{
			Error:    errorText(err),
			Empty:    true,
			Analysis: grid.Analysis{Verdict: grid.VerdictUnknown},
			Trend:    grid.NewStackedTrend(grid.NewSeriesSet()),
		}
	}

	sec := GenerationSection{
		Trend:    grid.NewStackedTrend(set),
		Analysis: grid.Analysis{Verdict: grid.VerdictUnknown},
	}

	snap, ok := set.Snapshot(b.policy)
	if !ok {
		sec.Empty = true
		return sec
	}

	snap = b.deriver.Colorize(snap)
	m := b.deriver.Derive(snap)
	local := snap.Time.In(r.Location)

	sec.DataTime = &local
	sec.Snapshot = &snap
	sec.Metrics = &m
	sec.Analysis = b.deriver.Analyse(m)
	return sec
}

// Load builds the demand curve section.
func (b *Builder) Load(ctx context.Context, r grid.TimeRange) TrendSection {
	s, err := b.grid.Load(ctx, r)
	if err != nil {
		return TrendSection{Error: errorText(err), Trend: grid.NewTrend(grid.Series{})}
	}
	return TrendSection{Trend: grid.NewTrend(s)}
}

// Price builds the day-ahead price section. Latest is undefined when prices are unavailable.
func (b *Builder) Price(ctx context.Context, r grid.TimeRange) PriceSection {
	s, err := b.grid.DayAheadPrices(ctx, r)
	if err != nil {
		return PriceSection{Error: errorText(err), Latest: grid.Undefined, Trend: grid.NewTrend(grid.Series{})}
	}

	sec := PriceSection{Latest: grid.Undefined, Trend: grid.NewTrend(s)}
	if last, ok := s.Last(); ok {
		ts := last.Time.In(r.Location)
		sec.Latest = last.Value
		sec.LatestTime = &ts
	}
	return sec
}

// Forecast builds the today..tomorrow forecast section. Actual series missing for the
// future part of the range are expected and do not count as errors.
func (b *Builder) Forecast(ctx context.Context) ForecastSection {
	r := b.resolver.ForecastRange()
	sec := ForecastSection{Range: r}

	var actualGen grid.Series
	if set, err := b.grid.Generation(ctx, r); err == nil {
		actualGen = set.Total(LabelTotalGeneration)
	}
	genForecast, err := b.grid.GenerationForecast(ctx, r)
	if err != nil {
		sec.Generation.Error = errorText(err)
	}
	sec.Generation.Comparison = grid.Compare(actualGen, genForecast)

	actualLoad, _ := b.grid.Load(ctx, r)
	loadForecast, err := b.grid.LoadForecast(ctx, r)
	if err != nil {
		sec.Load.Error = errorText(err)
	}
	sec.Load.Comparison = grid.Compare(actualLoad, loadForecast)
	return sec
}

// Plants returns the plant table with live weather. Weather never fails a section.
func (b *Builder) Plants(ctx context.Context) []weather.PlantReport {
	if b.weather == nil {
		reports := make([]weather.PlantReport, len(b.plants))
		for i, p := range b.plants {
			reports[i] = weather.PlantReport{
				Plant:   p,
				Color:   p.Color(),
				Weather: weather.NewReading(weather.UnknownObservation, p.Category),
			}
		}
		return reports
	}
	return b.weather.LookupAll(ctx, b.plants)
}

// GenerationSet returns the raw generation series for export.
func (b *Builder) GenerationSet(ctx context.Context, start, end grid.Date) (grid.SeriesSet, grid.TimeRange, error) {
	r, err := b.resolver.ResolveSelection(start, end)
	if err != nil {
		return grid.SeriesSet{}, grid.TimeRange{}, err
	}
	set, err := b.grid.Generation(ctx, r)
	return set, r, err
}

// Refresh clears the response cache.
func (b *Builder) Refresh() int {
	return b.grid.Refresh()
}

func errorText(err error) string {
	switch {
	case grid.IsProviderUnavailable(err):
		return "data provider unavailable"
	case grid.IsProviderData(err):
		return "no data available for the selected date range"
	default:
		return err.Error()
	}
}
