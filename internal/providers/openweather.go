package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dpoulos/hellas-grid-monitor/internal/weather"
)

const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

const opCurrentWeather = "current_weather"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Provider = (*OpenWeatherProvider)(nil)

func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Observe(ctx context.Context, lat, lon float64) (weather.Observation, error) {
	started := time.Now()
	obs, err := p.observe(ctx, lat, lon)
	err = classify(p.name, opCurrentWeather, err)
	observe(p.name, opCurrentWeather, started, err)
	return obs, err
}

func (p *OpenWeatherProvider) observe(ctx context.Context, lat, lon float64) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.UnknownObservation, fmt.Errorf("openweather api key: %w", errNoCredentials)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.UnknownObservation, err
	}
	defer resp.Body.Close()

	var payload struct {
		Main *struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Wind *struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
		Clouds *struct {
			All *float64 `json:"all"`
		} `json:"clouds"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.UnknownObservation, err
	}

	switch {
	case payload.Main == nil || payload.Main.Temp == nil:
		return weather.UnknownObservation, fmt.Errorf("response missing main.temp")
	case payload.Wind == nil || payload.Wind.Speed == nil:
		return weather.UnknownObservation, fmt.Errorf("response missing wind.speed")
	case payload.Clouds == nil || payload.Clouds.All == nil:
		return weather.UnknownObservation, fmt.Errorf("response missing clouds.all")
	}

	return weather.Observation{
		TemperatureC:  *payload.Main.Temp,
		WindSpeedMS:   *payload.Wind.Speed,
		CloudCoverPct: *payload.Clouds.All,
		Known:         true,
	}, nil
}
