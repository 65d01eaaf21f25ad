package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dpoulos/hellas-grid-monitor/internal/common"
	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
	"github.com/dpoulos/hellas-grid-monitor/internal/metrics"
)

// BackoffConfig controls exponential backoff behaviour. MaxRetries defaults to zero:
// retry policy belongs to the cache layer, not to individual provider calls.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// defaultHTTPConfig disables retries.
func defaultHTTPConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      0,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

const maxErrorBody = 8 << 10

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errNoCredentials = errors.New("credentials not configured")
)

// statusError is a non-2xx response that is not a provider outage (4xx other than 429).
type statusError struct {
	Code int
	Body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// doRequestWithResilience executes the HTTP request through a circuit breaker, with
// optional exponential backoff. Client-side 4xx responses do not count against the breaker
// and are returned as *statusError with the body attached.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				defer resp.Body.Close()
				body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
				return nil, &statusError{Code: resp.StatusCode, Body: body}
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// classify maps transport and status failures onto the typed provider errors.
func classify(provider, op string, err error) error {
	if err == nil || grid.IsProviderError(err) {
		return err
	}

	var se *statusError
	if errors.As(err, &se) {
		if se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden {
			return grid.NewProviderUnavailableError(provider, op, err)
		}
		return grid.NewProviderDataError(provider, op, fmt.Sprintf("status %d", se.Code), err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, errCircuitOpen),
		errors.Is(err, errRateLimited),
		errors.Is(err, errServerError),
		errors.Is(err, errNoCredentials),
		errors.Is(err, errNoHTTPClient),
		errors.As(err, &netErr):
		return grid.NewProviderUnavailableError(provider, op, err)
	}

	if common.HasAny(err.Error(), "connection refused", "no such host", "i/o timeout", "connection reset") {
		return grid.NewProviderUnavailableError(provider, op, err)
	}
	return grid.NewProviderDataError(provider, op, "", err)
}

// observe records the outcome and duration of a provider call.
func observe(provider, op string, started time.Time, err error) {
	metrics.ProviderLatency.WithLabelValues(provider, op).Observe(time.Since(started).Seconds())

	outcome := metrics.OutcomeOK
	switch {
	case grid.IsProviderUnavailable(err):
		outcome = metrics.OutcomeUnavailable
	case err != nil:
		outcome = metrics.OutcomeBadData
	}
	metrics.ProviderRequests.WithLabelValues(provider, op, outcome).Inc()
}
