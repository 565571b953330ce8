package demand

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned when penalized IRLS fails to settle.
var ErrNoConvergence = errors.New("fit did not converge")

// FitOptions tunes the penalized Poisson fit.
type FitOptions struct {
	MaxIter       int
	Tol           float64
	ConstraintLam float64 // weight of the monotone-decreasing penalty
	Ridge         float64
	UBREGamma     float64
	LambdaGrid    []float64
}

// DefaultFitOptions mirrors the usual P-spline GAM defaults: 11 log-spaced
// smoothing values from 1e-3 to 1e3 and a UBRE inflation of 1.4.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		MaxIter:       100,
		Tol:           1e-4,
		ConstraintLam: 1e6,
		Ridge:         1e-6,
		UBREGamma:     1.4,
		LambdaGrid:    floats.LogSpan(make([]float64, 11), 1e-3, 1e3),
	}
}

// Model is a fitted log-link smooth of count on price.
type Model struct {
	Basis    *Basis
	Coef     []float64
	Lambda   float64
	Deviance float64
	EDoF     float64
	UBRE     float64
	Iter     int
}

// Predict returns the expected count at price x.
func (m *Model) Predict(x float64) float64 {
	return math.Exp(clampEta(floats.Dot(m.Basis.Eval(x), m.Coef)))
}

func clampEta(eta float64) float64 {
	return math.Max(-30, math.Min(30, eta))
}

// differenceMatrix returns the order-th difference operator on k coefficients.
func differenceMatrix(k, order int) *mat.Dense {
	d := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		d.Set(i, i, 1)
	}
	for o := 0; o < order; o++ {
		r, c := d.Dims()
		next := mat.NewDense(r-1, c, nil)
		for i := 0; i < r-1; i++ {
			for j := 0; j < c; j++ {
				next.Set(i, j, d.At(i+1, j)-d.At(i, j))
			}
		}
		d = next
	}
	return d
}

// gram returns DᵀD.
func gram(d *mat.Dense) *mat.Dense {
	var g mat.Dense
	g.Mul(d.T(), d)
	return &g
}

// PoissonDeviance is 2 Σ [y log(y/mu) - (y - mu)], with y log y = 0 at y = 0.
func PoissonDeviance(y, mu []float64) float64 {
	dev := 0.0
	for i := range y {
		if y[i] > 0 {
			dev += y[i] * math.Log(y[i]/mu[i])
		}
		dev -= y[i] - mu[i]
	}
	return 2 * dev
}

// FitPenalized fits a Poisson smooth with fixed smoothing weight lambda by
// penalized iteratively reweighted least squares. Coefficients are kept
// non-increasing by re-penalizing every positive first difference and
// clipping whatever increase survives the penalty.
func FitPenalized(basis *Basis, x, y []float64, lambda float64, opts FitOptions) (*Model, error) {
	n, k := len(x), basis.Size()
	if n != len(y) || n == 0 {
		return nil, fmt.Errorf("invalid sample: %d prices, %d counts", len(x), len(y))
	}

	B := mat.NewDense(n, k, nil)
	for i, row := range basis.Design(x) {
		B.SetRow(i, row)
	}
	D1 := differenceMatrix(k, 1)
	smooth := gram(differenceMatrix(k, 2))
	smooth.Scale(lambda, smooth)

	// 1. Initialize from the data
	mean := floats.Sum(y) / float64(n)
	mu := make([]float64, n)
	eta := make([]float64, n)
	for i := range y {
		mu[i] = (y[i] + mean) / 2
		if mu[i] <= 0 {
			mu[i] = 0.1
		}
		eta[i] = math.Log(mu[i])
	}

	var (
		coef    []float64
		active  = make([]bool, k-1)
		dev     = math.Inf(1)
		A       *mat.SymDense
		xtwx    *mat.Dense
		iter    int
		settled bool
	)
	for iter = 1; iter <= opts.MaxIter; iter++ {
		// 2. Working weights and response
		W := mat.NewDiagDense(n, nil)
		z := mat.NewVecDense(n, nil)
		for i := range y {
			W.SetDiag(i, mu[i])
			z.SetVec(i, eta[i]+(y[i]-mu[i])/mu[i])
		}

		// 3. Penalized normal equations
		var bw mat.Dense
		bw.Mul(B.T(), W)
		xtwx = &mat.Dense{}
		xtwx.Mul(&bw, B)
		var rhs mat.VecDense
		rhs.MulVec(&bw, z)

		lhs := mat.NewDense(k, k, nil)
		lhs.Add(xtwx, smooth)
		lhs.Add(lhs, constraintPenalty(D1, active, opts.ConstraintLam))
		for j := 0; j < k; j++ {
			lhs.Set(j, j, lhs.At(j, j)+opts.Ridge)
		}
		A = symmetrize(lhs)

		sol, err := solve(A, &rhs)
		if err != nil {
			return nil, err
		}
		coef = sol

		// 4. Update the linear predictor
		for i := 0; i < n; i++ {
			eta[i] = clampEta(floats.Dot(B.RawRowView(i), coef))
			mu[i] = math.Exp(eta[i])
		}
		newDev := PoissonDeviance(y, mu)
		change := math.Abs(newDev-dev) / (math.Abs(newDev) + 0.1)
		dev = newDev

		// A penalized difference stays penalized, so the active set only
		// grows and the iteration cannot cycle.
		grown := false
		for j, v := range violations(coef) {
			if v && !active[j] {
				active[j] = true
				grown = true
			}
		}
		if change < opts.Tol && !grown {
			settled = true
			break
		}
	}
	if !settled {
		return nil, fmt.Errorf("lambda %g after %d iterations: %w", lambda, opts.MaxIter, ErrNoConvergence)
	}

	// 5. Clip what the penalty left of any increase. Non-increasing
	// coefficients give a non-increasing spline.
	if monotoneClip(coef) {
		for i := 0; i < n; i++ {
			eta[i] = clampEta(floats.Dot(B.RawRowView(i), coef))
			mu[i] = math.Exp(eta[i])
		}
		dev = PoissonDeviance(y, mu)
	}

	edof, err := effectiveDoF(A, xtwx)
	if err != nil {
		return nil, err
	}
	return &Model{
		Basis:    basis,
		Coef:     coef,
		Lambda:   lambda,
		Deviance: dev,
		EDoF:     edof,
		UBRE:     dev/float64(n) - 1 + 2*opts.UBREGamma*edof/float64(n),
		Iter:     iter,
	}, nil
}

// SelectLambda fits every smoothing value of the grid and keeps the model
// with the lowest UBRE score; ties keep the earlier grid value.
func SelectLambda(basis *Basis, x, y []float64, opts FitOptions) (*Model, error) {
	var (
		best    *Model
		lastErr error
	)
	for _, lam := range opts.LambdaGrid {
		m, err := FitPenalized(basis, x, y, lam, opts)
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || m.UBRE < best.UBRE {
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no smoothing value could be fitted: %w", lastErr)
	}
	return best, nil
}

// monotoneClip replaces coef with its running minimum and reports whether
// anything changed.
func monotoneClip(coef []float64) bool {
	changed := false
	for j := 1; j < len(coef); j++ {
		if coef[j] > coef[j-1] {
			coef[j] = coef[j-1]
			changed = true
		}
	}
	return changed
}

// violations marks the first differences that increase.
func violations(coef []float64) []bool {
	out := make([]bool, len(coef)-1)
	for j := range out {
		out[j] = coef[j+1]-coef[j] > 0
	}
	return out
}

func constraintPenalty(d1 *mat.Dense, active []bool, weight float64) *mat.Dense {
	_, k := d1.Dims()
	p := mat.NewDense(k, k, nil)
	for j, on := range active {
		if !on {
			continue
		}
		row := mat.NewDense(1, k, d1.RawRowView(j))
		var outer mat.Dense
		outer.Mul(row.T(), row)
		p.Add(p, &outer)
	}
	p.Scale(weight, p)
	return p
}

func symmetrize(m *mat.Dense) *mat.SymDense {
	k, _ := m.Dims()
	s := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}

// solve uses Cholesky and falls back to LU when A is not positive definite.
// Near-singular systems still return their solution.
func solve(A *mat.SymDense, b *mat.VecDense) ([]float64, error) {
	var x mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(A) {
		if err := chol.SolveVecTo(&x, b); usable(err) {
			return x.RawVector().Data, nil
		}
	}
	var lu mat.LU
	lu.Factorize(A)
	if err := lu.SolveVecTo(&x, false, b); !usable(err) {
		return nil, fmt.Errorf("singular penalized system: %w", err)
	}
	return x.RawVector().Data, nil
}

// effectiveDoF is trace((XᵀWX + P)⁻¹ XᵀWX).
func effectiveDoF(A *mat.SymDense, xtwx *mat.Dense) (float64, error) {
	var infl mat.Dense
	var chol mat.Cholesky
	if chol.Factorize(A) {
		if err := chol.SolveTo(&infl, xtwx); usable(err) {
			return mat.Trace(&infl), nil
		}
	}
	var lu mat.LU
	lu.Factorize(A)
	if err := lu.SolveTo(&infl, false, xtwx); !usable(err) {
		return 0, fmt.Errorf("singular penalized system: %w", err)
	}
	return mat.Trace(&infl), nil
}

// usable accepts ill-conditioning warnings but not exact singularity.
func usable(err error) bool {
	if err == nil {
		return true
	}
	var cond mat.Condition
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}
