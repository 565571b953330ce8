// Package projection extends the latest annual revenue and expense forward
// at a fixed compound growth rate.
package projection

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"smallbiz_analytics/pkg/models"
)

var (
	// ErrInvalidHorizon is returned for a non-positive number of years.
	ErrInvalidHorizon = errors.New("projection horizon must be positive")
	// ErrInvalidRate is returned for a growth rate at or below -100%.
	ErrInvalidRate = errors.New("growth rate must be greater than -1")
	// ErrNoHistory is returned when there is no annual record to project from.
	ErrNoHistory = errors.New("no annual history")
)

// GrowthStrategy compounds a base value: Value(k) = Base * (1 + Rate)^k.
type GrowthStrategy struct {
	Rate float64 `json:"growth_rate"`
}

// Validate checks the rate.
func (s GrowthStrategy) Validate() error {
	if s.Rate <= -1 || math.IsNaN(s.Rate) {
		return fmt.Errorf("%g: %w", s.Rate, ErrInvalidRate)
	}
	return nil
}

// Calculate returns the value k years after base.
func (s GrowthStrategy) Calculate(base float64, k int) float64 {
	return base * math.Pow(1+s.Rate, float64(k))
}

// Project returns horizon projected years after lastYear. Revenue and
// expense grow at the same rate; margin is their difference.
func Project(lastYear int, revenue, expense, rate float64, horizon int) ([]models.ProjectionRecord, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%d: %w", horizon, ErrInvalidHorizon)
	}
	strategy := GrowthStrategy{Rate: rate}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	out := make([]models.ProjectionRecord, 0, horizon)
	for k := 1; k <= horizon; k++ {
		rev := strategy.Calculate(revenue, k)
		exp := strategy.Calculate(expense, k)
		out = append(out, models.ProjectionRecord{
			Year:      lastYear + k,
			Revenue:   rev,
			Expense:   exp,
			Margin:    rev - exp,
			Projected: true,
		})
	}
	return out, nil
}

// ProjectFromHistory returns the annual history followed by the projection
// from its last year.
func ProjectFromHistory(annual []models.CashFlowRecord, rate float64, horizon int) ([]models.ProjectionRecord, error) {
	if len(annual) == 0 {
		return nil, ErrNoHistory
	}

	out := make([]models.ProjectionRecord, 0, len(annual)+horizon)
	for _, a := range annual {
		year, err := strconv.Atoi(a.Period)
		if err != nil {
			year = a.Start.Year()
		}
		out = append(out, models.ProjectionRecord{
			Year:    year,
			Revenue: a.Revenue,
			Expense: a.Expense,
			Margin:  a.Revenue - a.Expense,
		})
	}

	last := out[len(out)-1]
	projected, err := Project(last.Year, last.Revenue, last.Expense, rate, horizon)
	if err != nil {
		return nil, err
	}
	return append(out, projected...), nil
}
