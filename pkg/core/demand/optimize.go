// Package demand fits a smooth, monotone decreasing demand curve per item
// and finds the revenue-maximizing price on the observed range.
package demand

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"smallbiz_analytics/pkg/models"
)

const (
	// MinDistinctPrices is the smallest sample the five-function basis can fit.
	MinDistinctPrices = 5
	// GridSize is the number of candidate prices evaluated.
	GridSize = 100

	basisSize   = 5
	basisDegree = 3
)

// ErrInsufficientData is returned for items with too few distinct prices.
var ErrInsufficientData = errors.New("insufficient data")

// ItemError is a per-item failure that does not stop the other items.
type ItemError struct {
	Item string
	Err  error
}

func (e ItemError) Error() string { return fmt.Sprintf("%s: %v", e.Item, e.Err) }
func (e ItemError) Unwrap() error { return e.Err }

// Optimizer runs the demand fit and grid search with fixed options.
type Optimizer struct {
	Options FitOptions
}

// NewOptimizer creates an optimizer with default fit options.
func NewOptimizer() *Optimizer {
	return &Optimizer{Options: DefaultFitOptions()}
}

// Optimize fits every item of the sales summary. Items sort by name.
func (o *Optimizer) Optimize(summary []models.SalesSummaryRow) ([]models.OptimalPriceRecord, []models.DemandCurve, []ItemError) {
	byItem := make(map[string][]models.SalesSummaryRow)
	for _, r := range summary {
		byItem[r.Item] = append(byItem[r.Item], r)
	}
	items := make([]string, 0, len(byItem))
	for item := range byItem {
		items = append(items, item)
	}
	sort.Strings(items)

	var (
		records []models.OptimalPriceRecord
		curves  []models.DemandCurve
		errs    []ItemError
	)
	for _, item := range items {
		rec, curve, err := o.OptimizeItem(item, byItem[item])
		if err != nil {
			errs = append(errs, ItemError{Item: item, Err: err})
			continue
		}
		records = append(records, rec)
		curves = append(curves, curve)
	}
	return records, curves, errs
}

// Optimize runs the default optimizer.
func Optimize(summary []models.SalesSummaryRow) ([]models.OptimalPriceRecord, []models.DemandCurve, []ItemError) {
	return NewOptimizer().Optimize(summary)
}

// OptimizeItem fits one item's demand and evaluates revenue over an evenly
// spaced price grid between the lowest and highest observed price.
func (o *Optimizer) OptimizeItem(item string, rows []models.SalesSummaryRow) (models.OptimalPriceRecord, models.DemandCurve, error) {
	// 1. Aggregate counts per distinct price
	counts := make(map[float64]float64)
	for _, r := range rows {
		counts[r.Price] += float64(r.Quantity)
	}
	if len(counts) < MinDistinctPrices {
		return models.OptimalPriceRecord{}, models.DemandCurve{},
			fmt.Errorf("%d distinct prices, need %d: %w", len(counts), MinDistinctPrices, ErrInsufficientData)
	}
	prices := make([]float64, 0, len(counts))
	for p := range counts {
		prices = append(prices, p)
	}
	sort.Float64s(prices)
	quantities := make([]float64, len(prices))
	for i, p := range prices {
		quantities[i] = counts[p]
	}
	lo, hi := prices[0], prices[len(prices)-1]

	// 2. Fit the smooth
	basis, err := NewBasis(lo, hi, basisSize, basisDegree)
	if err != nil {
		return models.OptimalPriceRecord{}, models.DemandCurve{}, err
	}
	model, err := SelectLambda(basis, prices, quantities, o.Options)
	if err != nil {
		return models.OptimalPriceRecord{}, models.DemandCurve{}, err
	}

	// 3. Evaluate the grid
	grid := floats.Span(make([]float64, GridSize), lo, hi)
	q := make([]float64, GridSize)
	rev := make([]float64, GridSize)
	for i, p := range grid {
		q[i] = model.Predict(p)
		rev[i] = p * q[i]
	}
	best := argmax(rev)
	e := gradient(grid, q)

	rec := models.OptimalPriceRecord{
		Item:              item,
		OptimalPrice:      grid[best],
		ExpectedQuantity:  q[best],
		ExpectedRevenue:   rev[best],
		OptimalElasticity: math.Abs(e[best] * grid[best] / q[best]),
		MinPrice:          lo,
		MaxPrice:          hi,
	}
	curve := models.DemandCurve{
		Item:         item,
		Prices:       grid,
		Quantities:   q,
		Revenues:     rev,
		OptimalIndex: best,
		Lambda:       model.Lambda,
	}
	return rec, curve, nil
}

// argmax returns the first index of the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// gradient is dy/dx by central differences, one-sided at both ends.
func gradient(x, y []float64) []float64 {
	n := len(y)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = (y[1] - y[0]) / (x[1] - x[0])
	g[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / (x[i+1] - x[i-1])
	}
	return g
}

// Compare lines up each optimal price with the item's current price.
// Items without a current price are left out.
func Compare(optimal []models.OptimalPriceRecord, latest map[string]float64) []models.ComparisonRow {
	out := make([]models.ComparisonRow, 0, len(optimal))
	for _, r := range optimal {
		cur, ok := latest[r.Item]
		if !ok {
			continue
		}
		diff := 0.0
		if cur != 0 {
			diff = (r.OptimalPrice - cur) / cur * 100
		}
		out = append(out, models.ComparisonRow{
			Item:              r.Item,
			CurrentPrice:      cur,
			OptimalPrice:      r.OptimalPrice,
			PercentDifference: diff,
			ExpectedQuantity:  r.ExpectedQuantity,
			EstimatedRevenue:  r.OptimalPrice * r.ExpectedQuantity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}
