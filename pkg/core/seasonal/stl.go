// Package seasonal splits a daily series into trend, weekly seasonal and
// residual components with robust STL (Cleveland et al., 1990).
package seasonal

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInsufficientData is returned for series shorter than two periods.
var ErrInsufficientData = errors.New("insufficient data")

// Options are the STL smoothing parameters. Spans are forced odd and at
// least 3.
type Options struct {
	Period      int
	Seasonal    int
	Trend       int
	LowPass     int
	SeasonalDeg int
	TrendDeg    int
	LowPassDeg  int
	Inner       int
	Outer       int
	Robust      bool
}

// DefaultOptions is the weekly setup for daily data.
func DefaultOptions() Options {
	return Options{
		Period:      7,
		Seasonal:    7,
		Trend:       15,
		LowPass:     9,
		SeasonalDeg: 1,
		TrendDeg:    1,
		LowPassDeg:  1,
		Inner:       2,
		Outer:       15,
		Robust:      true,
	}
}

// Result holds the components; Observed == Trend + Seasonal + Residual.
type Result struct {
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Residual []float64
	Weights  []float64
}

func odd(span int) int {
	if span < 3 {
		span = 3
	}
	if span%2 == 0 {
		span++
	}
	return span
}

// Decompose runs STL on y.
func Decompose(y []float64, opts Options) (*Result, error) {
	n := len(y)
	np := opts.Period
	if np < 2 {
		return nil, fmt.Errorf("period %d: must be at least 2", np)
	}
	if n < 2*np {
		return nil, fmt.Errorf("%d observations, need %d: %w", n, 2*np, ErrInsufficientData)
	}
	opts.Seasonal = odd(opts.Seasonal)
	opts.Trend = odd(opts.Trend)
	opts.LowPass = odd(opts.LowPass)

	outer := opts.Outer
	if !opts.Robust {
		outer = 0
	}

	trend := make([]float64, n)
	season := make([]float64, n)
	rw := make([]float64, n)
	fit := make([]float64, n)
	userw := false

	for k := 0; ; k++ {
		step(y, opts, userw, rw, season, trend)
		if k >= outer {
			break
		}
		for i := range fit {
			fit[i] = trend[i] + season[i]
		}
		robustnessWeights(y, fit, rw)
		userw = true
	}
	if !userw {
		for i := range rw {
			rw[i] = 1
		}
	}

	res := &Result{
		Observed: append([]float64(nil), y...),
		Trend:    trend,
		Seasonal: season,
		Residual: make([]float64, n),
		Weights:  rw,
	}
	for i := range y {
		res.Residual[i] = y[i] - trend[i] - season[i]
	}
	return res, nil
}

// step is one pass of the inner loop.
func step(y []float64, opts Options, userw bool, rw, season, trend []float64) {
	n, np := len(y), opts.Period
	detrended := make([]float64, n)
	cycle := make([]float64, n+2*np)
	lowpass := make([]float64, n)
	deseasoned := make([]float64, n)

	for it := 0; it < opts.Inner; it++ {
		// 1. Detrend
		for i := range y {
			detrended[i] = y[i] - trend[i]
		}
		// 2. Smooth each cycle subseries, extended one period each side
		cycleSubseries(detrended, np, opts.Seasonal, opts.SeasonalDeg, userw, rw, cycle)
		// 3. Low-pass filter the cycle series
		lp := movingAverages(cycle, np)
		loess(lp, opts.LowPass, opts.LowPassDeg, false, nil, lowpass)
		// 4. Seasonal = cycle - low-pass
		for i := 0; i < n; i++ {
			season[i] = cycle[np+i] - lowpass[i]
		}
		// 5. Deseasonalize and smooth the trend
		for i := range y {
			deseasoned[i] = y[i] - season[i]
		}
		loess(deseasoned, opts.Trend, opts.TrendDeg, userw, rw, trend)
	}
}

// cycleSubseries smooths every phase of the period and extrapolates one
// point before and after; out has len(y)+2*np values.
func cycleSubseries(y []float64, np, span, deg int, userw bool, rw, out []float64) {
	n := len(y)
	for j := 0; j < np; j++ {
		k := (n-j-1)/np + 1
		sub := make([]float64, k)
		subw := make([]float64, k)
		for i := 0; i < k; i++ {
			sub[i] = y[i*np+j]
			if userw {
				subw[i] = rw[i*np+j]
			}
		}

		smoothed := make([]float64, k+2)
		loess(sub, span, deg, userw, subw, smoothed[1:k+1])

		w := make([]float64, k)
		if v, ok := estimate(sub, span, deg, 0, 1, min(span, k), w, userw, subw); ok {
			smoothed[0] = v
		} else {
			smoothed[0] = smoothed[1]
		}
		if v, ok := estimate(sub, span, deg, float64(k+1), max(1, k-span+1), k, w, userw, subw); ok {
			smoothed[k+1] = v
		} else {
			smoothed[k+1] = smoothed[k]
		}

		for m := 0; m < k+2; m++ {
			out[m*np+j] = smoothed[m]
		}
	}
}

// movingAverages applies moving averages of length np, np and 3, shortening
// x by 2*np.
func movingAverages(x []float64, np int) []float64 {
	return movingAverage(movingAverage(movingAverage(x, np), np), 3)
}

func movingAverage(x []float64, length int) []float64 {
	out := make([]float64, len(x)-length+1)
	sum := 0.0
	for i := 0; i < length; i++ {
		sum += x[i]
	}
	out[0] = sum / float64(length)
	for i := 1; i < len(out); i++ {
		sum += x[i+length-1] - x[i-1]
		out[i] = sum / float64(length)
	}
	return out
}

// loess smooths y at every position with a window of span points.
func loess(y []float64, span, deg int, userw bool, rw, ys []float64) {
	n := len(y)
	if n < 2 {
		ys[0] = y[0]
		return
	}
	w := make([]float64, n)
	nleft, nright := 1, n
	if span < n {
		nright = span
	}
	half := (span + 1) / 2
	for i := 1; i <= n; i++ {
		if span < n && i > half && nright != n {
			nleft++
			nright++
		}
		if v, ok := estimate(y, span, deg, float64(i), nleft, nright, w, userw, rw); ok {
			ys[i-1] = v
		} else {
			ys[i-1] = y[i-1]
		}
	}
}

// estimate fits a tricube-weighted local polynomial of degree 0 or 1 over
// positions nleft..nright (1-based) and evaluates it at xs.
func estimate(y []float64, span, deg int, xs float64, nleft, nright int, w []float64, userw bool, rw []float64) (float64, bool) {
	n := len(y)
	rng := float64(n) - 1
	h := math.Max(xs-float64(nleft), float64(nright)-xs)
	if span > n {
		h += float64((span - n) / 2)
	}
	h9, h1 := 0.999*h, 0.001*h

	a := 0.0
	for j := nleft; j <= nright; j++ {
		w[j-1] = 0
		r := math.Abs(float64(j) - xs)
		if r > h9 {
			continue
		}
		if r <= h1 {
			w[j-1] = 1
		} else {
			w[j-1] = math.Pow(1-math.Pow(r/h, 3), 3)
		}
		if userw {
			w[j-1] *= rw[j-1]
		}
		a += w[j-1]
	}
	if a <= 0 {
		return 0, false
	}

	for j := nleft; j <= nright; j++ {
		w[j-1] /= a
	}
	if h > 0 && deg > 0 {
		a = 0
		for j := nleft; j <= nright; j++ {
			a += w[j-1] * float64(j)
		}
		b := xs - a
		c := 0.0
		for j := nleft; j <= nright; j++ {
			c += w[j-1] * (float64(j) - a) * (float64(j) - a)
		}
		if math.Sqrt(c) > 0.001*rng {
			b /= c
			for j := nleft; j <= nright; j++ {
				w[j-1] *= b*(float64(j)-a) + 1
			}
		}
	}

	ys := 0.0
	for j := nleft; j <= nright; j++ {
		ys += w[j-1] * y[j-1]
	}
	return ys, true
}

// robustnessWeights sets bisquare weights on residuals scaled by six times
// their median absolute value.
func robustnessWeights(y, fit, rw []float64) {
	n := len(y)
	abs := make([]float64, n)
	for i := range y {
		abs[i] = math.Abs(y[i] - fit[i])
	}
	sorted := append([]float64(nil), abs...)
	sort.Float64s(sorted)
	mid1 := n / 2
	mid2 := n - mid1 - 1
	cmad := 3 * (sorted[mid1] + sorted[mid2])
	c9, c1 := 0.999*cmad, 0.001*cmad

	for i, r := range abs {
		switch {
		case r <= c1:
			rw[i] = 1
		case r <= c9:
			u := r / cmad
			rw[i] = (1 - u*u) * (1 - u*u)
		default:
			rw[i] = 0
		}
	}
}
