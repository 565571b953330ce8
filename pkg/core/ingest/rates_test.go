package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRatesServer(t *testing.T, handler http.HandlerFunc) *RatesClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRatesClient(RatesConfig{BaseURL: srv.URL, Timeout: time.Second, SelicSeries: 432, IPCASeries: 433})
}

func TestBenchmark(t *testing.T) {
	var path string
	client := newRatesServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "?" + r.URL.RawQuery
		fmt.Fprint(w, `[{"data":"15/05/2024","valor":"10.50"}]`)
	})

	rate, err := client.Benchmark(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.105, rate, 1e-12)
	assert.Equal(t, "/bcdata.sgs.432/dados/ultimos/1?formato=json", path)
}

func TestTrailingInflationCompounds(t *testing.T) {
	client := newRatesServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "bcdata.sgs.433/dados/ultimos/12"))
		points := make([]string, 12)
		for i := range points {
			points[i] = fmt.Sprintf(`{"data":"01/%02d/2023","valor":"1.00"}`, i+1)
		}
		// trailing comma exercises the lenient decoder
		fmt.Fprint(w, "["+strings.Join(points, ",")+",]")
	})

	got, err := client.TrailingInflation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.12682503013196977, got, 1e-9)
}

func TestTrailingInflationShortSeries(t *testing.T) {
	client := newRatesServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"data":"01/01/2024","valor":"0.42"}]`)
	})
	_, err := client.TrailingInflation(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRatesStatusError(t *testing.T) {
	client := newRatesServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.Latest(context.Background(), 432)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 432, statusErr.Series)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestRatesEmptyResponse(t *testing.T) {
	client := newRatesServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	_, err := client.Latest(context.Background(), 432)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRatesContextCanceled(t *testing.T) {
	client := newRatesServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"data":"15/05/2024","valor":"10.50"}]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Latest(ctx, 432)
	assert.ErrorIs(t, err, context.Canceled)
}
