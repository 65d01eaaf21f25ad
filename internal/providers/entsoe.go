package providers

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dpoulos/hellas-grid-monitor/internal/common"
	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
)

const (
	DefaultENTSOEBaseURL = "https://web-api.tp.entsoe.eu/api"

	// DefaultArea is the Greek bidding zone.
	DefaultArea = "10YGR-HTSO-----Y"

	// DefaultENTSOERateLimit is requests per second, under the per-token quota.
	DefaultENTSOERateLimit = 6.0
)

// Series labels for the non-generation queries.
const (
	LabelActualLoad          = "Actual Load"
	LabelForecastedLoad      = "Forecasted Load"
	LabelScheduledGeneration = "Scheduled Generation"
	LabelDayAheadPrice       = "Day-ahead Price"
)

const (
	periodLayout    = "200601021504"
	intervalLayout  = "2006-01-02T15:04Z07:00"
	curveVariable   = "A03"
	noMatchingCode  = "999"
	ackDocumentName = "Acknowledgement_MarketDocument"
)

// psrTypes maps ENTSO-E production type codes to source labels.
var psrTypes = map[string]string{
	"B01": grid.SourceBiomass,
	"B02": grid.SourceLignite,
	"B03": "Fossil Coal-derived gas",
	"B04": grid.SourceGas,
	"B05": grid.SourceHardCoal,
	"B06": "Fossil Oil",
	"B07": "Fossil Oil shale",
	"B08": "Fossil Peat",
	"B09": grid.SourceGeothermal,
	"B10": "Hydro Pumped Storage",
	"B11": grid.SourceHydroRunOfRiver,
	"B12": grid.SourceHydroReservoir,
	"B13": "Marine",
	"B14": "Nuclear",
	"B15": "Other renewable",
	"B16": grid.SourceSolar,
	"B17": "Waste",
	"B18": "Wind Offshore",
	"B19": grid.SourceWindOnshore,
	"B20": "Other",
}

// PSRLabel returns the source label for a production type code, or the code itself.
func PSRLabel(code string) string {
	if label, ok := psrTypes[code]; ok {
		return label
	}
	return code
}

// ENTSOEConfig configures the transparency platform client.
type ENTSOEConfig struct {
	Token     string
	Area      string
	BaseURL   string
	RateLimit float64
}

// ENTSOEProvider implements grid.Provider against the ENTSO-E transparency platform.
type ENTSOEProvider struct {
	name    string
	token   string
	area    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

var _ grid.Provider = (*ENTSOEProvider)(nil)

func NewENTSOEProvider(client *http.Client, cfg ENTSOEConfig) *ENTSOEProvider {
	if cfg.Area == "" {
		cfg.Area = DefaultArea
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultENTSOEBaseURL
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &ENTSOEProvider{
		name:    "entsoe",
		token:   cfg.Token,
		area:    cfg.Area,
		baseURL: cfg.BaseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("entsoe"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *ENTSOEProvider) Name() string {
	return p.name
}

func (p *ENTSOEProvider) Generation(ctx context.Context, r grid.TimeRange) (grid.SeriesSet, error) {
	started := time.Now()
	set, err := p.generation(ctx, r)
	err = classify(p.name, grid.OpGeneration, err)
	observe(p.name, grid.OpGeneration, started, err)
	return set, err
}

func (p *ENTSOEProvider) generation(ctx context.Context, r grid.TimeRange) (grid.SeriesSet, error) {
	doc, err := p.query(ctx, grid.OpGeneration, r, url.Values{
		"documentType": {"A75"},
		"processType":  {"A16"},
		"in_Domain":    {p.area},
	})
	if err != nil {
		return grid.SeriesSet{}, err
	}

	var series []grid.Series
	for _, ts := range doc.TimeSeries {
		// Consumption by generation units is published on the out domain.
		if ts.OutDomain != "" {
			continue
		}
		points, err := ts.points()
		if err != nil {
			return grid.SeriesSet{}, grid.NewProviderDataError(p.name, grid.OpGeneration, "malformed period", err)
		}
		series = append(series, grid.NewSeries(PSRLabel(ts.PSRType), points))
	}

	set := grid.NewSeriesSet(series...).Clip(r)
	if set.Empty() {
		return grid.SeriesSet{}, grid.NewProviderDataError(p.name, grid.OpGeneration, "empty result", grid.ErrNoData)
	}
	return set, nil
}

func (p *ENTSOEProvider) Load(ctx context.Context, r grid.TimeRange) (grid.Series, error) {
	return p.single(ctx, grid.OpLoad, r, LabelActualLoad, url.Values{
		"documentType":          {"A65"},
		"processType":           {"A16"},
		"outBiddingZone_Domain": {p.area},
	})
}

func (p *ENTSOEProvider) LoadForecast(ctx context.Context, r grid.TimeRange) (grid.Series, error) {
	return p.single(ctx, grid.OpLoadForecast, r, LabelForecastedLoad, url.Values{
		"documentType":          {"A65"},
		"processType":           {"A01"},
		"outBiddingZone_Domain": {p.area},
	})
}

func (p *ENTSOEProvider) GenerationForecast(ctx context.Context, r grid.TimeRange) (grid.Series, error) {
	return p.single(ctx, grid.OpGenerationForecast, r, LabelScheduledGeneration, url.Values{
		"documentType": {"A71"},
		"processType":  {"A01"},
		"in_Domain":    {p.area},
	})
}

func (p *ENTSOEProvider) DayAheadPrices(ctx context.Context, r grid.TimeRange) (grid.Series, error) {
	return p.single(ctx, grid.OpDayAheadPrices, r, LabelDayAheadPrice, url.Values{
		"documentType":                  {"A44"},
		"in_Domain":                     {p.area},
		"out_Domain":                    {p.area},
		"contract_MarketAgreement.type": {"A01"},
	})
}

// single runs a query whose time series collapse into one labelled series.
// When several resolutions are published, the finest one wins.
func (p *ENTSOEProvider) single(ctx context.Context, op string, r grid.TimeRange, label string, params url.Values) (grid.Series, error) {
	started := time.Now()
	s, err := func() (grid.Series, error) {
		doc, err := p.query(ctx, op, r, params)
		if err != nil {
			return grid.Series{}, err
		}

		byResolution := make(map[time.Duration][]grid.Point)
		for _, ts := range doc.TimeSeries {
			if op == grid.OpGenerationForecast && ts.OutDomain != "" {
				continue
			}
			for _, per := range ts.Periods {
				res, err := parseResolution(per.Resolution)
				if err != nil {
					return grid.Series{}, grid.NewProviderDataError(p.name, op, "malformed period", err)
				}
				points, err := per.points(ts.CurveType)
				if err != nil {
					return grid.Series{}, grid.NewProviderDataError(p.name, op, "malformed period", err)
				}
				byResolution[res] = append(byResolution[res], points...)
			}
		}

		var finest time.Duration
		for res := range byResolution {
			if finest == 0 || res < finest {
				finest = res
			}
		}

		s := grid.NewSeries(label, byResolution[finest]).Clip(r)
		if s.Len() == 0 {
			return grid.Series{}, grid.NewProviderDataError(p.name, op, "empty result", grid.ErrNoData)
		}
		return s, nil
	}()

	err = classify(p.name, op, err)
	observe(p.name, op, started, err)
	return s, err
}

func (p *ENTSOEProvider) query(ctx context.Context, op string, r grid.TimeRange, params url.Values) (*marketDocument, error) {
	if p.token == "" {
		return nil, fmt.Errorf("entsoe security token: %w", errNoCredentials)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, grid.NewProviderUnavailableError(p.name, op, err)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		for k, v := range params {
			values[k] = v
		}
		values.Set("securityToken", p.token)
		values.Set("periodStart", formatPeriod(r.Start))
		values.Set("periodEnd", formatPeriod(r.End))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	logger.Debug().Str("provider", p.name).Str("op", op).Str("range", r.String()).Msg("querying transparency platform")

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			if ackErr := acknowledgementError(p.name, op, se.Body); ackErr != nil {
				return nil, ackErr
			}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc marketDocument
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return nil, grid.NewProviderDataError(p.name, op, "undecodable document", err)
	}
	if doc.XMLName.Local == ackDocumentName {
		return nil, doc.Reason.err(p.name, op)
	}
	return &doc, nil
}

// acknowledgementError decodes an error body into a data error, or returns nil
// when the body is not an acknowledgement document.
func acknowledgementError(provider, op string, body []byte) error {
	var doc marketDocument
	if err := xml.Unmarshal(body, &doc); err != nil || doc.XMLName.Local != ackDocumentName {
		return nil
	}
	return doc.Reason.err(provider, op)
}

func formatPeriod(t time.Time) string {
	return t.UTC().Round(time.Hour).Format(periodLayout)
}

type marketDocument struct {
	XMLName    xml.Name
	TimeSeries []timeSeries `xml:"TimeSeries"`
	Reason     reason       `xml:"Reason"`
}

type reason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

func (r reason) err(provider, op string) error {
	if r.Code == noMatchingCode || common.HasAny(r.Text, "No matching data", "no matching data") {
		return grid.NewProviderDataError(provider, op, "no matching data", grid.ErrNoData)
	}
	return grid.NewProviderDataError(provider, op, strings.TrimSpace(r.Code+" "+r.Text), nil)
}

type timeSeries struct {
	InDomain  string   `xml:"inBiddingZone_Domain.mRID"`
	OutDomain string   `xml:"outBiddingZone_Domain.mRID"`
	CurveType string   `xml:"curveType"`
	PSRType   string   `xml:"MktPSRType>psrType"`
	Periods   []period `xml:"Period"`
}

func (ts timeSeries) points() ([]grid.Point, error) {
	var out []grid.Point
	for _, per := range ts.Periods {
		pts, err := per.points(ts.CurveType)
		if err != nil {
			return nil, err
		}
		out = append(out, pts...)
	}
	return out, nil
}

type period struct {
	Start      string     `xml:"timeInterval>start"`
	End        string     `xml:"timeInterval>end"`
	Resolution string     `xml:"resolution"`
	Points     []xmlPoint `xml:"Point"`
}

type xmlPoint struct {
	Position int      `xml:"position"`
	Quantity *float64 `xml:"quantity"`
	Price    *float64 `xml:"price.amount"`
}

func (p xmlPoint) value() (float64, bool) {
	switch {
	case p.Quantity != nil:
		return *p.Quantity, true
	case p.Price != nil:
		return *p.Price, true
	}
	return 0, false
}

// points expands a period into timestamped points. Variable-sized block curves
// carry each value forward until the next published position.
func (per period) points(curveType string) ([]grid.Point, error) {
	start, err := time.Parse(intervalLayout, per.Start)
	if err != nil {
		return nil, fmt.Errorf("period start %q: %w", per.Start, err)
	}
	end, err := time.Parse(intervalLayout, per.End)
	if err != nil {
		return nil, fmt.Errorf("period end %q: %w", per.End, err)
	}
	res, err := parseResolution(per.Resolution)
	if err != nil {
		return nil, err
	}
	slots := int(end.Sub(start) / res)

	values := make(map[int]float64, len(per.Points))
	for _, pt := range per.Points {
		if v, ok := pt.value(); ok {
			values[pt.Position] = v
		}
	}

	var out []grid.Point
	if curveType == curveVariable {
		var (
			last float64
			seen bool
		)
		for pos := 1; pos <= slots; pos++ {
			if v, ok := values[pos]; ok {
				last, seen = v, true
			}
			if !seen {
				continue
			}
			out = append(out, grid.Point{Time: start.Add(time.Duration(pos-1) * res), Value: grid.Float(last)})
		}
		return out, nil
	}

	for _, pt := range per.Points {
		v, ok := pt.value()
		if !ok || pt.Position < 1 {
			continue
		}
		out = append(out, grid.Point{Time: start.Add(time.Duration(pt.Position-1) * res), Value: grid.Float(v)})
	}
	return out, nil
}

// parseResolution handles the ISO 8601 durations the platform publishes (PT15M, PT30M, PT60M, PT1H, P1D).
func parseResolution(s string) (time.Duration, error) {
	switch {
	case strings.HasPrefix(s, "PT") && len(s) > 3:
		n, err := strconv.Atoi(s[2 : len(s)-1])
		if err != nil || n <= 0 {
			break
		}
		switch s[len(s)-1] {
		case 'M':
			return time.Duration(n) * time.Minute, nil
		case 'H':
			return time.Duration(n) * time.Hour, nil
		}
	case strings.HasPrefix(s, "P") && strings.HasSuffix(s, "D") && len(s) > 2:
		n, err := strconv.Atoi(s[1 : len(s)-1])
		if err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	return 0, fmt.Errorf("unsupported resolution %q", s)
}
