// Package elasticity estimates constant price elasticity of demand per item
// from a log-log least-squares fit of quantity on price.
package elasticity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"smallbiz_analytics/pkg/models"
)

var (
	// ErrInsufficientData is returned when an item has fewer than two distinct prices.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerate is returned when the predicted quantity at the current price is zero.
	ErrDegenerate = errors.New("degenerate prediction")
	// ErrNoCurrentPrice is returned when an item has no latest price.
	ErrNoCurrentPrice = errors.New("no current price")
	// ErrNonPositiveRows marks a fit that ignored rows with price or quantity <= 0.
	// The item still gets a record.
	ErrNonPositiveRows = errors.New("rows with non-positive price or quantity ignored")
)

// ItemError is a per-item failure that does not stop the other items.
type ItemError struct {
	Item string
	Err  error
}

func (e ItemError) Error() string { return fmt.Sprintf("%s: %v", e.Item, e.Err) }
func (e ItemError) Unwrap() error { return e.Err }

// Fit holds the coefficients of log q = Intercept + Slope * log p.
type Fit struct {
	Intercept float64
	Slope     float64
	Points    int
	Dropped   int // rows left out because log p or log q is undefined
}

// FitLogLog regresses log quantity on log price over one item's rows.
func FitLogLog(rows []models.SalesSummaryRow) (Fit, error) {
	distinct := make(map[float64]bool)
	x := make([]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		if r.Price <= 0 || r.Quantity <= 0 {
			dropped++
			continue
		}
		distinct[r.Price] = true
		x = append(x, math.Log(r.Price))
		y = append(y, math.Log(float64(r.Quantity)))
	}
	if len(distinct) < 2 {
		return Fit{Dropped: dropped}, fmt.Errorf("%d distinct prices: %w", len(distinct), ErrInsufficientData)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Fit{Intercept: alpha, Slope: beta, Points: len(x), Dropped: dropped}, nil
}

// At evaluates the point elasticity at price p0. The predicted quantity is
// the fitted line evaluated at p0 itself, not at log p0.
func (f Fit) At(p0 float64) (q0, elasticity float64, err error) {
	q0 = f.Intercept + f.Slope*p0
	if q0 == 0 {
		return 0, 0, ErrDegenerate
	}
	return q0, math.Abs(f.Slope * p0 / q0), nil
}

// Estimate computes one record per item with a latest price. Items that
// cannot be estimated are returned as ItemErrors. An item fitted without
// some of its rows also gets an ItemError wrapping ErrNonPositiveRows,
// alongside its record.
func Estimate(summary []models.SalesSummaryRow, latest map[string]float64) ([]models.ElasticityRecord, []ItemError) {
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
		records []models.ElasticityRecord
		errs    []ItemError
	)
	for _, item := range items {
		p0, ok := latest[item]
		if !ok {
			errs = append(errs, ItemError{Item: item, Err: ErrNoCurrentPrice})
			continue
		}
		fit, err := FitLogLog(byItem[item])
		if fit.Dropped > 0 && err == nil {
			errs = append(errs, ItemError{Item: item, Err: fmt.Errorf("%d of %d: %w", fit.Dropped, fit.Dropped+fit.Points, ErrNonPositiveRows)})
		}
		if err != nil {
			errs = append(errs, ItemError{Item: item, Err: err})
			continue
		}
		q0, e, err := fit.At(p0)
		if err != nil {
			errs = append(errs, ItemError{Item: item, Err: err})
			continue
		}
		records = append(records, models.ElasticityRecord{
			Item:              item,
			CurrentPrice:      p0,
			PredictedQuantity: q0,
			Elasticity:        e,
		})
	}
	return records, errs
}
