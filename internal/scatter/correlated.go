package scatter

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrCorrelation is returned for a correlation coefficient outside [-1, 1].
var ErrCorrelation = errors.New("scatter: correlation coefficient must lie in [-1, 1]")

// Joint holds a pair of co-indexed multiplicative scatter factors drawn from
// a bivariate log-normal distribution.
type Joint struct {
	A, B []float64
	// Cov is the log-space covariance matrix the factors were drawn from.
	Cov *mat.SymDense
	// Applied is false when one of the widths was non-positive and both
	// factor slices are all ones.
	Applied bool
}

// Covariance builds the 2×2 log-space covariance matrix for widths dexA and
// dexB (in dex) and correlation rho.
func Covariance(rho, dexA, dexB float64) *mat.SymDense {
	sa, sb := Sigma(dexA), Sigma(dexB)
	return mat.NewSymDense(2, []float64{
		sa * sa, rho * sa * sb,
		rho * sa * sb, sb * sb,
	})
}

// Correlated draws n pairs of jointly log-normal scatter factors. The
// log-space deviations follow a zero-mean bivariate normal with the
// covariance from Covariance, and each marginal carries the mean-preserving
// offset, so each factor has a linear-space mean of one.
//
// If either width is non-positive the returned factors are all ones and
// Applied is false.
func Correlated(n int, rho, dexA, dexB float64, seed int64) (Joint, error) {
	if math.IsNaN(rho) || rho < -1 || rho > 1 {
		return Joint{}, ErrCorrelation
	}

	cov := Covariance(rho, dexA, dexB)
	j := Joint{
		A:   make([]float64, n),
		B:   make([]float64, n),
		Cov: cov,
	}
	if dexA <= 0 || dexB <= 0 {
		for i := range j.A {
			j.A[i], j.B[i] = 1, 1
		}
		return j, nil
	}

	// Lower Cholesky factor of the 2×2 covariance, written out so that the
	// degenerate |rho| = 1 case still works.
	sa := math.Sqrt(cov.At(0, 0))
	sb := math.Sqrt(cov.At(1, 1))
	l21 := cov.At(1, 0) / sa
	l22 := math.Sqrt(math.Max(sb*sb-l21*l21, 0))

	muA, muB := meanOffset(sa), meanOffset(sb)
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: NewSource(seed)}
	for i := 0; i < n; i++ {
		z1, z2 := std.Rand(), std.Rand()
		j.A[i] = math.Exp(muA + sa*z1)
		j.B[i] = math.Exp(muB + l21*z1 + l22*z2)
	}
	j.Applied = true
	return j, nil
}

// Apply multiplies a and b in place by the joint factors. Both slices must
// have the length the factors were drawn for.
func (j Joint) Apply(a, b []float64) {
	for i := range a {
		a[i] *= j.A[i]
	}
	for i := range b {
		b[i] *= j.B[i]
	}
}
