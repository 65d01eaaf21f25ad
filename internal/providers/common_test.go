package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
)

func TestDoRequestWithResilienceClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	cb := newCircuitBreaker("test")
	cfg := defaultHTTPConfig(srv.Client())
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	for i := 0; i < 10; i++ {
		_, err := doRequestWithResilience(context.Background(), cfg, cb, build)
		var se *statusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.Code)
		assert.Equal(t, "bad request", string(se.Body))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, int32(10), calls.Load())
}

func TestDoRequestWithResilienceOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := newCircuitBreaker("test")
	cfg := defaultHTTPConfig(srv.Client())
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	var err error
	for i := 0; i < 8; i++ {
		_, err = doRequestWithResilience(context.Background(), cfg, cb, build)
	}
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(6), calls.Load())
}

func TestDoRequestWithResilienceRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	}
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	resp, err := doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), build)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRequestWithResilienceConfigErrors(t *testing.T) {
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, "http://example.invalid", nil) }

	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, newCircuitBreaker("test"), build)
	assert.ErrorIs(t, err, errNoHTTPClient)

	cfg := HTTPClientConfig{Client: http.DefaultClient, Backoff: BackoffConfig{MaxRetries: -1, InitialInterval: time.Second}}
	_, err = doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), build)
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"circuit open", fmt.Errorf("%w: open", errCircuitOpen), true},
		{"server error", fmt.Errorf("%w: 503", errServerError), true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"bad request", &statusError{Code: http.StatusBadRequest}, false},
		{"forbidden", &statusError{Code: http.StatusForbidden}, true},
		{"decode", errors.New("invalid character 'x'"), false},
		{"truncated body", io.ErrUnexpectedEOF, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("p", "op", tc.err)
			assert.Equal(t, tc.unavailable, grid.IsProviderUnavailable(err))
			assert.Equal(t, !tc.unavailable, grid.IsProviderData(err))
		})
	}

	typed := grid.NewProviderDataError("p", "op", "x", nil)
	assert.Same(t, typed, classify("p", "op", typed))
	assert.NoError(t, classify("p", "op", nil))
}
