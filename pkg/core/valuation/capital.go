// Package valuation implements capital-budgeting measures over a series of
// periodic cash flows: NPV, IRR and MIRR.
package valuation

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoConvergence is wrapped by ConvergenceError.
	ErrNoConvergence = errors.New("rate search did not converge")
	// ErrTooFewPeriods is returned for fewer than two cash flows.
	ErrTooFewPeriods = errors.New("at least two periods are required")
	// ErrNoNegativeFlow is returned when no flow is an outlay.
	ErrNoNegativeFlow = errors.New("no negative cash flow")
	// ErrNoPositiveFlow is returned when no flow is an inflow.
	ErrNoPositiveFlow = errors.New("no positive cash flow")
)

// ConvergenceError reports the state of an IRR search that hit its cap.
type ConvergenceError struct {
	LastRate   float64
	NPV        float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("IRR search stopped after %d iterations at rate %.6f (NPV %.6g)", e.Iterations, e.LastRate, e.NPV)
}

func (e *ConvergenceError) Unwrap() error { return ErrNoConvergence }

// NPV = Σ cf_t / (1 + rate)^t, with the first flow at t = 0.
func NPV(rate float64, flows []float64) float64 {
	npv := 0.0
	discount := 1.0
	for _, cf := range flows {
		npv += cf / discount
		discount *= 1 + rate
	}
	return npv
}

// IRROptions tunes the rate search.
type IRROptions struct {
	Guess     float64
	Step      float64
	Tolerance float64
	MaxIter   int
}

// DefaultIRROptions starts at 10% with 10% steps and a 1e-7 NPV tolerance.
func DefaultIRROptions() IRROptions {
	return IRROptions{Guess: 0.1, Step: 0.1, Tolerance: 1e-7, MaxIter: 1000}
}

// IRR finds the rate where NPV is zero by stepping toward the sign change
// and halving the step each time NPV crosses zero. The rate never goes to
// -100% or below.
func IRR(flows []float64, opts IRROptions) (float64, error) {
	if len(flows) < 2 {
		return 0, ErrTooFewPeriods
	}

	// NPV falls with the rate when the first non-zero flow is an outlay.
	falling := true
	for _, cf := range flows {
		if cf != 0 {
			falling = cf < 0
			break
		}
	}

	rate, step := opts.Guess, opts.Step
	npv := NPV(rate, flows)
	for i := 1; i <= opts.MaxIter; i++ {
		if math.Abs(npv) < opts.Tolerance {
			return rate, nil
		}

		up := (npv > 0) == falling
		next := rate - step
		if up {
			next = rate + step
		}
		if next <= -1 {
			next = (rate - 1) / 2
			if next <= -1 {
				return 0, &ConvergenceError{LastRate: rate, NPV: npv, Iterations: i}
			}
		}

		nextNPV := NPV(next, flows)
		if math.Signbit(nextNPV) != math.Signbit(npv) {
			step /= 2
		}
		rate, npv = next, nextNPV
	}
	if math.Abs(npv) < opts.Tolerance {
		return rate, nil
	}
	return 0, &ConvergenceError{LastRate: rate, NPV: npv, Iterations: opts.MaxIter}
}

// MIRR is the modified internal rate of return: outlays are discounted at
// financeRate to t = 0, inflows compounded at reinvestRate to the last
// period, and MIRR = (FV / |PV|)^(1/(n-1)) - 1.
func MIRR(flows []float64, financeRate, reinvestRate float64) (float64, error) {
	n := len(flows)
	if n < 2 {
		return 0, ErrTooFewPeriods
	}

	var pv, fv float64
	for t, cf := range flows {
		switch {
		case cf < 0:
			pv += cf / math.Pow(1+financeRate, float64(t))
		case cf > 0:
			fv += cf * math.Pow(1+reinvestRate, float64(n-1-t))
		}
	}
	if pv == 0 {
		return 0, ErrNoNegativeFlow
	}
	if fv == 0 {
		return 0, ErrNoPositiveFlow
	}
	return math.Pow(fv/math.Abs(pv), 1/float64(n-1)) - 1, nil
}
