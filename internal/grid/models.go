package grid

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// NullFloat is a number that may be undefined. Undefined values encode as JSON null
// and render as "N/A".
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float returns a defined NullFloat.
func Float(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// Undefined is the sentinel for values that cannot be computed.
var Undefined = NullFloat{}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Float(v)
	return nil
}

// String formats with one decimal place, or "N/A".
func (n NullFloat) String() string {
	return n.Sprintf("%.1f")
}

// Sprintf applies the verb to the value, or returns "N/A" when undefined.
func (n NullFloat) Sprintf(verb string) string {
	if !n.Valid {
		return "N/A"
	}
	return fmt.Sprintf(verb, n.Float64)
}

// Point is a single timestamped sample. Value is undefined for gaps.
type Point struct {
	Time  time.Time `json:"time"`
	Value NullFloat `json:"value"`
}

// Series is a chronologically ordered sequence of points for one source label.
type Series struct {
	Label  string  `json:"label"`
	Points []Point `json:"points"`
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Points)
}

// Last returns the most recent defined value.
func (s Series) Last() (Point, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if s.Points[i].Value.Valid {
			return s.Points[i], true
		}
	}
	return Point{}, false
}

// At returns the value at ts, or Undefined if the series has no sample there.
func (s Series) At(ts time.Time) NullFloat {
	i := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Time.Before(ts)
	})
	if i < len(s.Points) && s.Points[i].Time.Equal(ts) {
		return s.Points[i].Value
	}
	return Undefined
}

// normalize sorts points by time and drops duplicate timestamps, keeping the first.
func (s *Series) normalize() {
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Time.Before(s.Points[j].Time)
	})
	out := s.Points[:0]
	for i, p := range s.Points {
		if i > 0 && p.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, p)
	}
	s.Points = out
}

// Clip keeps only points with start <= t <= end.
func (s Series) Clip(r TimeRange) Series {
	out := Series{Label: s.Label, Points: make([]Point, 0, len(s.Points))}
	for _, p := range s.Points {
		if r.Contains(p.Time) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// NewSeries builds a normalized series from unordered points.
func NewSeries(label string, points []Point) Series {
	s := Series{Label: label, Points: append([]Point(nil), points...)}
	s.normalize()
	return s
}

// SeriesSet maps source labels to series sharing a nominal sampling interval.
// Labels keep their first-seen order. Values are treated as immutable once built.
type SeriesSet struct {
	labels []string
	series map[string]Series
}

// NewSeriesSet builds a set from the given series. Series with the same label are merged.
func NewSeriesSet(series ...Series) SeriesSet {
	set := SeriesSet{series: make(map[string]Series, len(series))}
	for _, s := range series {
		existing, ok := set.series[s.Label]
		if !ok {
			set.labels = append(set.labels, s.Label)
			set.series[s.Label] = NewSeries(s.Label, s.Points)
			continue
		}
		set.series[s.Label] = NewSeries(s.Label, append(existing.Points, s.Points...))
	}
	return set
}

// Labels returns the source labels in insertion order.
func (ss SeriesSet) Labels() []string {
	return append([]string(nil), ss.labels...)
}

// Get returns the series for a label.
func (ss SeriesSet) Get(label string) (Series, bool) {
	s, ok := ss.series[label]
	return s, ok
}

// Empty reports whether the set holds no points at all.
func (ss SeriesSet) Empty() bool {
	for _, s := range ss.series {
		if len(s.Points) > 0 {
			return false
		}
	}
	return true
}

// Timestamps returns the sorted union of all sample instants.
func (ss SeriesSet) Timestamps() []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range ss.series {
		for _, p := range s.Points {
			seen[p.Time.UnixNano()] = p.Time
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Row returns the value of every label at ts, in label order.
func (ss SeriesSet) Row(ts time.Time) []NullFloat {
	row := make([]NullFloat, len(ss.labels))
	for i, label := range ss.labels {
		row[i] = ss.series[label].At(ts)
	}
	return row
}

// ZeroFilled returns a copy aligned on the union of timestamps with gaps set to zero.
func (ss SeriesSet) ZeroFilled() SeriesSet {
	timestamps := ss.Timestamps()
	out := SeriesSet{labels: ss.Labels(), series: make(map[string]Series, len(ss.labels))}
	for _, label := range ss.labels {
		src := ss.series[label]
		points := make([]Point, len(timestamps))
		for i, ts := range timestamps {
			v := src.At(ts)
			if !v.Valid {
				v = Float(0)
			}
			points[i] = Point{Time: ts, Value: v}
		}
		out.series[label] = Series{Label: label, Points: points}
	}
	return out
}

// Total sums every series at each timestamp. Instants where all series have gaps stay undefined.
func (ss SeriesSet) Total(label string) Series {
	timestamps := ss.Timestamps()
	points := make([]Point, len(timestamps))
	for i, ts := range timestamps {
		var sum NullFloat
		for _, v := range ss.Row(ts) {
			if v.Valid {
				sum = Float(sum.Float64 + v.Float64)
			}
		}
		points[i] = Point{Time: ts, Value: sum}
	}
	return Series{Label: label, Points: points}
}

// Clip restricts every series to the range.
func (ss SeriesSet) Clip(r TimeRange) SeriesSet {
	out := SeriesSet{labels: ss.Labels(), series: make(map[string]Series, len(ss.labels))}
	for _, label := range ss.labels {
		out.series[label] = ss.series[label].Clip(r)
	}
	return out
}

func (ss SeriesSet) MarshalJSON() ([]byte, error) {
	ordered := make([]Series, 0, len(ss.labels))
	for _, label := range ss.labels {
		ordered = append(ordered, ss.series[label])
	}
	return json.Marshal(ordered)
}

// SourceOutput is one source's instantaneous generation in a snapshot.
type SourceOutput struct {
	Source string  `json:"source"`
	MW     float64 `json:"mw"`
	Color  string  `json:"color,omitempty"`
}

// GenerationSnapshot is a single row of a generation SeriesSet.
type GenerationSnapshot struct {
	Time    time.Time      `json:"time"`
	Sources []SourceOutput `json:"sources"`
}

// MW returns the output for a source label, zero when absent.
func (g GenerationSnapshot) MW(source string) float64 {
	for _, s := range g.Sources {
		if s.Source == source {
			return s.MW
		}
	}
	return 0
}

// SnapshotPolicy decides which row of a generation set becomes the snapshot.
type SnapshotPolicy string

const (
	// LatestComplete drops rows with any missing source and takes the last remaining one.
	LatestComplete SnapshotPolicy = "latest-complete"
	// LatestZeroFilled takes the last row and treats missing sources as zero.
	LatestZeroFilled SnapshotPolicy = "latest-zero-filled"
)

// Snapshot extracts the generation snapshot according to policy.
// It returns false when no row qualifies.
func (ss SeriesSet) Snapshot(policy SnapshotPolicy) (GenerationSnapshot, bool) {
	timestamps := ss.Timestamps()
	for i := len(timestamps) - 1; i >= 0; i-- {
		ts := timestamps[i]
		row := ss.Row(ts)

		complete := true
		for _, v := range row {
			if !v.Valid {
				complete = false
				break
			}
		}
		if !complete && policy != LatestZeroFilled {
			continue
		}

		snap := GenerationSnapshot{Time: ts, Sources: make([]SourceOutput, len(row))}
		for j, v := range row {
			mw := 0.0
			if v.Valid {
				mw = v.Float64
			}
			snap.Sources[j] = SourceOutput{Source: ss.labels[j], MW: mw}
		}
		return snap, true
	}
	return GenerationSnapshot{}, false
}

// ParseSnapshotPolicy validates a configured policy name.
func ParseSnapshotPolicy(s string) (SnapshotPolicy, error) {
	switch SnapshotPolicy(s) {
	case "", LatestComplete:
		return LatestComplete, nil
	case LatestZeroFilled:
		return LatestZeroFilled, nil
	default:
		return "", fmt.Errorf("unknown snapshot policy %q", s)
	}
}
