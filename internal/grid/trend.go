package grid

import "time"

// Extremum is a series maximum or minimum and the instant it occurred.
type Extremum struct {
	Value NullFloat `json:"value"`
	Time  time.Time `json:"time,omitempty"`
}

// Trend is a display-ready series with its extremes.
type Trend struct {
	Series Series   `json:"series"`
	Max    Extremum `json:"max"`
	Min    Extremum `json:"min"`
	Empty  bool     `json:"empty"`
}

// NewTrend computes extremes over defined points. Ties resolve to the earliest instant.
func NewTrend(s Series) Trend {
	t := Trend{Series: s, Empty: len(s.Points) == 0}
	for _, p := range s.Points {
		if !p.Value.Valid {
			continue
		}
		if !t.Max.Value.Valid || p.Value.Float64 > t.Max.Value.Float64 {
			t.Max = Extremum{Value: p.Value, Time: p.Time}
		}
		if !t.Min.Value.Valid || p.Value.Float64 < t.Min.Value.Float64 {
			t.Min = Extremum{Value: p.Value, Time: p.Time}
		}
	}
	return t
}

// AlignedPoint pairs actual and forecast values at one instant.
type AlignedPoint struct {
	Time     time.Time `json:"time"`
	Actual   NullFloat `json:"actual"`
	Forecast NullFloat `json:"forecast"`
}

// Comparison holds an actual series against its forecast.
type Comparison struct {
	Actual   Trend          `json:"actual"`
	Forecast Trend          `json:"forecast"`
	Aligned  []AlignedPoint `json:"aligned"`
}

// Compare aligns actual and forecast on the union of their timestamps.
func Compare(actual, forecast Series) Comparison {
	set := NewSeriesSet(
		Series{Label: "actual", Points: actual.Points},
		Series{Label: "forecast", Points: forecast.Points},
	)
	timestamps := set.Timestamps()
	aligned := make([]AlignedPoint, len(timestamps))
	for i, ts := range timestamps {
		aligned[i] = AlignedPoint{Time: ts, Actual: actual.At(ts), Forecast: forecast.At(ts)}
	}
	return Comparison{
		Actual:   NewTrend(actual),
		Forecast: NewTrend(forecast),
		Aligned:  aligned,
	}
}

// StackedTrend is the per-source generation evolution with gaps zero-filled.
type StackedTrend struct {
	Sets  SeriesSet `json:"series"`
	Empty bool      `json:"empty"`
}

// NewStackedTrend prepares a SeriesSet for a stacked area chart.
func NewStackedTrend(ss SeriesSet) StackedTrend {
	return StackedTrend{Sets: ss.ZeroFilled(), Empty: ss.Empty()}
}
