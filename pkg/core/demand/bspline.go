package demand

import "fmt"

// Basis is a cubic B-spline basis on uniform knots spanning [Lo, Hi].
// Inputs are scaled to [0, 1]; the knot vector is extended by Degree
// spacings on both sides so every point of the range is covered by
// Size() full-support functions, which sum to one.
type Basis struct {
	Lo, Hi float64
	Degree int
	knots  []float64
	size   int
}

// NewBasis builds a basis of n functions of the given degree.
func NewBasis(lo, hi float64, n, degree int) (*Basis, error) {
	if hi <= lo {
		return nil, fmt.Errorf("empty basis range [%g, %g]", lo, hi)
	}
	interior := n - degree + 1
	if interior < 2 {
		return nil, fmt.Errorf("need at least %d functions for degree %d", degree+1, degree)
	}

	spacing := 1.0 / float64(interior-1)
	knots := make([]float64, 0, interior+2*degree)
	for k := degree; k >= 1; k-- {
		knots = append(knots, -spacing*float64(k))
	}
	for i := 0; i < interior; i++ {
		knots = append(knots, spacing*float64(i))
	}
	for k := 1; k <= degree; k++ {
		knots = append(knots, 1+spacing*float64(k))
	}

	return &Basis{Lo: lo, Hi: hi, Degree: degree, knots: knots, size: n}, nil
}

// Size is the number of basis functions.
func (b *Basis) Size() int { return b.size }

// Eval returns the value of every basis function at x.
func (b *Basis) Eval(x float64) []float64 {
	u := (x - b.Lo) / (b.Hi - b.Lo)
	t := b.knots

	// degree 0
	n := make([]float64, len(t)-1)
	for i := range n {
		if t[i] <= u && u < t[i+1] {
			n[i] = 1
		}
	}

	// Cox-de Boor recursion
	for d := 1; d <= b.Degree; d++ {
		next := make([]float64, len(t)-1-d)
		for i := range next {
			var left, right float64
			if den := t[i+d] - t[i]; den != 0 {
				left = (u - t[i]) / den * n[i]
			}
			if den := t[i+d+1] - t[i+1]; den != 0 {
				right = (t[i+d+1] - u) / den * n[i+1]
			}
			next[i] = left + right
		}
		n = next
	}
	return n[:b.size]
}

// Design evaluates the basis at every x, one row per point.
func (b *Basis) Design(xs []float64) [][]float64 {
	rows := make([][]float64, len(xs))
	for i, x := range xs {
		rows[i] = b.Eval(x)
	}
	return rows
}
