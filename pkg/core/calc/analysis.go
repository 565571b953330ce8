package calc

import (
	"errors"
	"math"
)

// ErrDegenerate is returned when a ratio's denominator is zero and zero is
// not a meaningful answer.
var ErrDegenerate = errors.New("degenerate ratio")

// =============================================================================
// LIQUIDITY
// =============================================================================

// CurrentRatio = Current Assets / Current Liabilities
func CurrentRatio(currentAssets, currentLiabilities float64) (float64, error) {
	return strictDiv(currentAssets, currentLiabilities)
}

// QuickRatio = (Current Assets - Inventory) / Current Liabilities
func QuickRatio(currentAssets, inventory, currentLiabilities float64) (float64, error) {
	return strictDiv(currentAssets-inventory, currentLiabilities)
}

// ImmediateRatio = Cash and Equivalents / Current Liabilities
func ImmediateRatio(cash, currentLiabilities float64) (float64, error) {
	return strictDiv(cash, currentLiabilities)
}

// =============================================================================
// PROFITABILITY
// =============================================================================

// NetMargin is net income as a percentage of revenue; zero revenue gives 0.
func NetMargin(netIncome, revenue float64) float64 {
	return safeDiv(netIncome, revenue) * 100
}

// =============================================================================
// GROWTH METRICS
// =============================================================================

func GrowthRate(current, prior float64) float64 {
	if prior == 0 {
		return 0
	}
	return (current - prior) / math.Abs(prior)
}

func CAGR(endingValue, beginningValue float64, years int) float64 {
	if beginningValue == 0 || years == 0 {
		return 0
	}
	return math.Pow(endingValue/beginningValue, 1.0/float64(years)) - 1
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func safeDiv(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func strictDiv(numerator, denominator float64) (float64, error) {
	if denominator == 0 {
		return 0, ErrDegenerate
	}
	return numerator / denominator, nil
}
