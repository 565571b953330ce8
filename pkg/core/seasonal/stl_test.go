package seasonal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smallbiz_analytics/pkg/core/aggregate"
)

var weekly = []float64{3, -1, -2, 0, 1, -4, 3}

func linearWeekly(n int) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = 10 + 0.5*float64(i) + weekly[i%7]
	}
	return y
}

func TestDecomposeRecoversExactComponents(t *testing.T) {
	opts := DefaultOptions()
	opts.Robust = false
	y := linearWeekly(56)

	res, err := Decompose(y, opts)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, 10+0.5*float64(i), res.Trend[i], 1e-8, "trend %d", i)
		assert.InDelta(t, weekly[i%7], res.Seasonal[i], 1e-8, "seasonal %d", i)
		assert.InDelta(t, 0.0, res.Residual[i], 1e-8)
		assert.Equal(t, 1.0, res.Weights[i])
	}
}

func TestDecomposeReconstructs(t *testing.T) {
	y := linearWeekly(40)
	for i := range y {
		y[i] += 2 * math.Sin(1.7*float64(i))
	}
	res, err := Decompose(y, DefaultOptions())
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], res.Trend[i]+res.Seasonal[i]+res.Residual[i], 1e-9)
	}
}

func TestRobustDownweightsOutlier(t *testing.T) {
	y := linearWeekly(56)
	for i := range y {
		y[i] += 0.2 * math.Sin(2.1*float64(i))
	}
	const spike = 20
	y[spike] += 50
	want := 10 + 0.5*float64(spike)

	robust, err := Decompose(y, DefaultOptions())
	require.NoError(t, err)
	plainOpts := DefaultOptions()
	plainOpts.Robust = false
	plain, err := Decompose(y, plainOpts)
	require.NoError(t, err)

	assert.Equal(t, 0.0, robust.Weights[spike])
	robustErr := math.Abs(robust.Trend[spike] - want)
	plainErr := math.Abs(plain.Trend[spike] - want)
	assert.Less(t, robustErr, 1.0)
	assert.Less(t, robustErr, plainErr)
}

func TestDecomposeInsufficientData(t *testing.T) {
	_, err := Decompose(make([]float64, 13), DefaultOptions())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 4}, movingAverage([]float64{1, 2, 3, 4, 5}, 3))
}

func TestRobustnessWeights(t *testing.T) {
	y := []float64{0, 0, 0, 0, 100}
	fit := []float64{1, -1, 1, -1, 0}
	rw := make([]float64, 5)
	robustnessWeights(y, fit, rw)
	// median |r| = 1, cmad = 6
	assert.InDelta(t, math.Pow(1-1.0/36, 2), rw[0], 1e-12)
	assert.Equal(t, 0.0, rw[4])
}

func TestDecomposeAllZeroFills(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	daily := []aggregate.ItemDailyRevenue{
		{Date: start, Item: "Latte", Revenue: 10},
		{Date: start.AddDate(0, 0, 19), Item: "Latte", Revenue: 12},
		{Date: start, Item: "Mocha", Revenue: 5},
		{Date: start.AddDate(0, 0, 5), Item: "Mocha", Revenue: 5},
	}
	records, errs := DecomposeAll(daily, DefaultOptions())

	require.Len(t, errs, 1)
	assert.Equal(t, "Mocha", errs[0].Item)
	assert.ErrorIs(t, errs[0], ErrInsufficientData)

	require.Len(t, records, 20)
	assert.Equal(t, start, records[0].Date)
	assert.Equal(t, 10.0, records[0].Observed)
	assert.Equal(t, 0.0, records[1].Observed)
	assert.Equal(t, 12.0, records[19].Observed)
	for _, r := range records {
		assert.InDelta(t, r.Observed, r.Trend+r.Seasonal+r.Residual, 1e-9)
	}
}
