package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smallbiz_analytics/pkg/core/utils"
)

// RatesConfig configures the central-bank time-series client.
type RatesConfig struct {
	BaseURL     string
	Timeout     time.Duration
	SelicSeries int
	IPCASeries  int
}

// RatePoint is one observation converted to a decimal rate (1.5% -> 0.015).
type RatePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// RatesClient reads series from the BCB SGS API. It never substitutes a
// default when the service fails.
type RatesClient struct {
	cfg        RatesConfig
	httpClient *http.Client
}

// NewRatesClient creates a client with the configured timeout.
func NewRatesClient(cfg RatesConfig) *RatesClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RatesClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// sgsPoint is the wire format: {"data":"02/01/2024","valor":"0.043739"}.
type sgsPoint struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// LastN returns the last n observations of a series, oldest first.
func (c *RatesClient) LastN(ctx context.Context, series, n int) ([]RatePoint, error) {
	url := fmt.Sprintf("%s/bcdata.sgs.%d/dados/ultimos/%d?formato=json",
		strings.TrimRight(c.cfg.BaseURL, "/"), series, n)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate series %d: %w", series, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Series: series, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("rate series %d: failed to read body: %w", series, err)
	}

	var raw []sgsPoint
	if _, err := utils.SmartParse(string(body), &raw); err != nil {
		return nil, fmt.Errorf("rate series %d: %w", series, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("rate series %d: %w", series, ErrNoData)
	}

	points := make([]RatePoint, 0, len(raw))
	for _, p := range raw {
		date, err := time.Parse("02/01/2006", strings.TrimSpace(p.Data))
		if err != nil {
			return nil, fmt.Errorf("rate series %d: invalid date %q", series, p.Data)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(p.Valor))
		if err != nil {
			return nil, fmt.Errorf("rate series %d: invalid value %q", series, p.Valor)
		}
		points = append(points, RatePoint{Date: date, Value: v.Div(decimal.NewFromInt(100)).InexactFloat64()})
	}
	return points, nil
}

// Latest returns the most recent observation of a series.
func (c *RatesClient) Latest(ctx context.Context, series int) (RatePoint, error) {
	points, err := c.LastN(ctx, series, 1)
	if err != nil {
		return RatePoint{}, err
	}
	return points[len(points)-1], nil
}

// Benchmark returns the current Selic rate as an annual decimal.
func (c *RatesClient) Benchmark(ctx context.Context) (float64, error) {
	p, err := c.Latest(ctx, c.cfg.SelicSeries)
	if err != nil {
		return 0, err
	}
	return p.Value, nil
}

// TrailingInflation compounds the last 12 monthly IPCA observations.
func (c *RatesClient) TrailingInflation(ctx context.Context) (float64, error) {
	points, err := c.LastN(ctx, c.cfg.IPCASeries, 12)
	if err != nil {
		return 0, err
	}
	if len(points) < 12 {
		return 0, fmt.Errorf("rate series %d: %d of 12 months: %w", c.cfg.IPCASeries, len(points), ErrNoData)
	}
	acc := decimal.NewFromInt(1)
	for _, p := range points {
		acc = acc.Mul(decimal.NewFromFloat(1 + p.Value))
	}
	return acc.Sub(decimal.NewFromInt(1)).InexactFloat64(), nil
}
