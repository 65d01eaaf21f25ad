package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
)

const generationDoc = `<?xml version="1.0" encoding="UTF-8"?>
<GL_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-6:generationloaddocument:3:0">
  <mRID>gen-1</mRID>
  <TimeSeries>
    <curveType>A01</curveType>
    <inBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</inBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B16</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-04-30T20:00Z</start><end>2025-05-01T00:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>5</quantity></Point>
      <Point><position>2</position><quantity>0</quantity></Point>
      <Point><position>3</position><quantity>10</quantity></Point>
      <Point><position>4</position><quantity>20</quantity></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <curveType>A03</curveType>
    <inBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</inBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B02</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-04-30T21:00Z</start><end>2025-05-01T00:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>900</quantity></Point>
      <Point><position>3</position><quantity>950</quantity></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <curveType>A01</curveType>
    <outBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</outBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B10</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-04-30T21:00Z</start><end>2025-04-30T22:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>300</quantity></Point>
    </Period>
  </TimeSeries>
</GL_MarketDocument>`

const priceDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">
  <TimeSeries>
    <curveType>A03</curveType>
    <Period>
      <timeInterval><start>2025-04-30T21:00Z</start><end>2025-04-30T23:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><price.amount>100.5</price.amount></Point>
      <Point><position>2</position><price.amount>90</price.amount></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <curveType>A01</curveType>
    <Period>
      <timeInterval><start>2025-04-30T21:00Z</start><end>2025-04-30T21:30Z</end></timeInterval>
      <resolution>PT15M</resolution>
      <Point><position>1</position><price.amount>101</price.amount></Point>
      <Point><position>2</position><price.amount>99</price.amount></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

const noDataAck = `<?xml version="1.0" encoding="UTF-8"?>
<Acknowledgement_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-1:acknowledgementdocument:7:0">
  <mRID>ack-1</mRID>
  <Reason>
    <code>999</code>
    <text>No matching data found for Data item ACTUAL_GENERATION_PER_PRODUCTION_TYPE</text>
  </Reason>
</Acknowledgement_MarketDocument>`

func athensDay(t *testing.T) grid.TimeRange {
	t.Helper()
	res, err := grid.NewResolver(grid.DefaultTimezone)
	require.NoError(t, err)
	r, err := res.Resolve(grid.Date{Year: 2025, Month: time.May, Day: 1}, grid.Date{Year: 2025, Month: time.May, Day: 1})
	require.NoError(t, err)
	return r
}

func newTestENTSOE(t *testing.T, handler http.HandlerFunc) (*ENTSOEProvider, *[]url.Values) {
	t.Helper()
	var queries []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewENTSOEProvider(srv.Client(), ENTSOEConfig{Token: "secret", BaseURL: srv.URL})
	return p, &queries
}

func writeXML(body string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestENTSOEGeneration(t *testing.T) {
	p, queries := newTestENTSOE(t, writeXML(generationDoc, http.StatusOK))

	set, err := p.Generation(context.Background(), athensDay(t))
	require.NoError(t, err)

	require.Len(t, *queries, 1)
	q := (*queries)[0]
	assert.Equal(t, "A75", q.Get("documentType"))
	assert.Equal(t, "A16", q.Get("processType"))
	assert.Equal(t, DefaultArea, q.Get("in_Domain"))
	assert.Equal(t, "secret", q.Get("securityToken"))
	assert.Equal(t, "202504302100", q.Get("periodStart"))
	assert.Equal(t, "202505012100", q.Get("periodEnd"))

	assert.ElementsMatch(t, []string{grid.SourceSolar, grid.SourceLignite}, set.Labels())

	solar, ok := set.Get(grid.SourceSolar)
	require.True(t, ok)
	require.Equal(t, 3, solar.Len())
	assert.Equal(t, time.Date(2025, 4, 30, 21, 0, 0, 0, time.UTC), solar.Points[0].Time.UTC())
	assert.Equal(t, grid.Float(0), solar.Points[0].Value)

	lignite, ok := set.Get(grid.SourceLignite)
	require.True(t, ok)
	require.Equal(t, 3, lignite.Len())
	assert.Equal(t, grid.Float(900), lignite.Points[1].Value)
	assert.Equal(t, grid.Float(950), lignite.Points[2].Value)
}

func TestENTSOEPricesKeepFinestResolution(t *testing.T) {
	p, queries := newTestENTSOE(t, writeXML(priceDoc, http.StatusOK))

	s, err := p.DayAheadPrices(context.Background(), athensDay(t))
	require.NoError(t, err)

	q := (*queries)[0]
	assert.Equal(t, "A44", q.Get("documentType"))
	assert.Equal(t, DefaultArea, q.Get("out_Domain"))
	assert.Equal(t, "A01", q.Get("contract_MarketAgreement.type"))

	assert.Equal(t, LabelDayAheadPrice, s.Label)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 15*time.Minute, s.Points[1].Time.Sub(s.Points[0].Time))
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 99.0, last.Value.Float64)
}

func TestENTSOELoadQueries(t *testing.T) {
	p, queries := newTestENTSOE(t, writeXML(priceDoc, http.StatusOK))
	ctx := context.Background()
	r := athensDay(t)

	load, err := p.Load(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, LabelActualLoad, load.Label)

	_, err = p.LoadForecast(ctx, r)
	require.NoError(t, err)
	_, err = p.GenerationForecast(ctx, r)
	require.NoError(t, err)

	require.Len(t, *queries, 3)
	assert.Equal(t, "A16", (*queries)[0].Get("processType"))
	assert.Equal(t, DefaultArea, (*queries)[0].Get("outBiddingZone_Domain"))
	assert.Equal(t, "A01", (*queries)[1].Get("processType"))
	assert.Equal(t, "A71", (*queries)[2].Get("documentType"))
}

func TestENTSOENoMatchingData(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest} {
		p, _ := newTestENTSOE(t, writeXML(noDataAck, status))

		_, err := p.Generation(context.Background(), athensDay(t))
		require.Error(t, err)
		assert.True(t, grid.IsProviderData(err), "status %d", status)
		assert.ErrorIs(t, err, grid.ErrNoData)
	}
}

func TestENTSOEEmptyDocumentIsDataError(t *testing.T) {
	p, _ := newTestENTSOE(t, writeXML(`<GL_MarketDocument></GL_MarketDocument>`, http.StatusOK))

	_, err := p.Load(context.Background(), athensDay(t))
	assert.True(t, grid.IsProviderData(err))
	assert.ErrorIs(t, err, grid.ErrNoData)
}

func TestENTSOEMalformedDocumentIsDataError(t *testing.T) {
	p, _ := newTestENTSOE(t, writeXML(`not xml at all <`, http.StatusOK))

	_, err := p.DayAheadPrices(context.Background(), athensDay(t))
	assert.True(t, grid.IsProviderData(err))
}

func TestENTSOEUnavailable(t *testing.T) {
	cases := map[string]int{
		"server error": http.StatusServiceUnavailable,
		"rate limited": http.StatusTooManyRequests,
		"unauthorized": http.StatusUnauthorized,
	}
	for name, status := range cases {
		t.Run(name, func(t *testing.T) {
			p, _ := newTestENTSOE(t, writeXML("", status))

			_, err := p.Load(context.Background(), athensDay(t))
			assert.True(t, grid.IsProviderUnavailable(err))
		})
	}
}

func TestENTSOEMissingTokenSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("request should not be sent")
	}))
	defer srv.Close()

	p := NewENTSOEProvider(srv.Client(), ENTSOEConfig{BaseURL: srv.URL})
	_, err := p.Generation(context.Background(), athensDay(t))
	assert.True(t, grid.IsProviderUnavailable(err))
	assert.True(t, errors.Is(err, errNoCredentials))
}

func TestENTSOETimeout(t *testing.T) {
	p, _ := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Load(ctx, athensDay(t))
	assert.True(t, grid.IsProviderUnavailable(err))
}

func TestPeriodPointsForwardFillsVariableBlocks(t *testing.T) {
	per := period{
		Start:      "2025-05-01T00:00Z",
		End:        "2025-05-01T01:00Z",
		Resolution: "PT15M",
		Points: []xmlPoint{
			{Position: 1, Quantity: ptr(10)},
			{Position: 4, Quantity: ptr(40)},
		},
	}

	filled, err := per.points(curveVariable)
	require.NoError(t, err)
	require.Len(t, filled, 4)
	assert.Equal(t, grid.Float(10), filled[2].Value)
	assert.Equal(t, grid.Float(40), filled[3].Value)

	sparse, err := per.points("A01")
	require.NoError(t, err)
	assert.Len(t, sparse, 2)
}

func TestParseResolution(t *testing.T) {
	cases := map[string]time.Duration{
		"PT15M": 15 * time.Minute,
		"PT60M": time.Hour,
		"PT1H":  time.Hour,
		"P1D":   24 * time.Hour,
	}
	for in, want := range cases {
		got, err := parseResolution(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "PT", "PTxM", "P1W", "15M"} {
		_, err := parseResolution(bad)
		assert.Error(t, err, bad)
	}
}

func TestPSRLabel(t *testing.T) {
	assert.Equal(t, grid.SourceWindOnshore, PSRLabel("B19"))
	assert.Equal(t, "Other", PSRLabel("B20"))
	assert.Equal(t, "B99", PSRLabel("B99"))
}

func ptr(v float64) *float64 { return &v }
