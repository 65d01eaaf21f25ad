package grid

import (
	"fmt"
	"time"
)

// DefaultTimezone is the dashboard's operating timezone.
const DefaultTimezone = "Europe/Athens"

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.midnightUTC().After(other.midnightUTC())
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.midnightUTC().Format(dateLayout)
}

// TimeRange is an inclusive span of instants tied to a timezone.
type TimeRange struct {
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
	Location *time.Location `json:"-"`
}

// Contains reports whether start <= t <= end.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Key is a canonical representation used for cache keys.
func (r TimeRange) Key() string {
	tz := "UTC"
	if r.Location != nil {
		tz = r.Location.String()
	}
	return r.Start.UTC().Format(time.RFC3339) + "/" + r.End.UTC().Format(time.RFC3339) + "@" + tz
}

func (r TimeRange) String() string {
	return r.Key()
}

// Resolver turns calendar dates into time ranges in a fixed timezone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver loads the named timezone.
func NewResolver(timezone string) (*Resolver, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Resolver{loc: loc, now: time.Now}, nil
}

// WithClock overrides the resolver's notion of "now".
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	cp := *r
	cp.now = now
	return &cp
}

// Location returns the operating timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Today returns the current calendar date in the operating timezone.
func (r *Resolver) Today() Date {
	return DateOf(r.now().In(r.loc))
}

// Resolve maps [start, end] calendar dates to start 00:00:00 and end 23:59:59 local time.
func (r *Resolver) Resolve(start, end Date) (TimeRange, error) {
	if start.After(end) {
		return TimeRange{}, &InvalidRangeError{Start: start, End: end}
	}
	from := time.Date(start.Year, start.Month, start.Day, 0, 0, 0, 0, r.loc)
	// Next local midnight minus one second stays correct across DST changes.
	to := time.Date(end.Year, end.Month, end.Day+1, 0, 0, 0, 0, r.loc).Add(-time.Second)
	return TimeRange{Start: from, End: to, Location: r.loc}, nil
}

// ResolveSelection is Resolve for user input, where neither date may be after today.
func (r *Resolver) ResolveSelection(start, end Date) (TimeRange, error) {
	today := r.Today()
	if start.After(today) || end.After(today) {
		return TimeRange{}, &InvalidRangeError{Start: start, End: end, Reason: "dates must not be after today"}
	}
	return r.Resolve(start, end)
}

// DefaultSelection is yesterday..today.
func (r *Resolver) DefaultSelection() (Date, Date) {
	today := r.Today()
	return today.AddDays(-1), today
}

// ForecastRange covers today and tomorrow.
func (r *Resolver) ForecastRange() TimeRange {
	today := r.Today()
	tr, _ := r.Resolve(today, today.AddDays(1))
	return tr
}
