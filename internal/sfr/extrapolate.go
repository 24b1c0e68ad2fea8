package sfr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxDegree is the per-axis polynomial degree of the smoothing surface.
const maxDegree = 4

// fillSentinels fits a tensor-product polynomial surface in log SFR to the
// cells that are not Sentinel and overwrites sfr at the Sentinel cells with
// the fitted values. Cells with tabulated values are left untouched.
func fillSentinels(mAxis, zAxis []float64, logSFR, sfr [][]float64) error {
	degM := min(maxDegree, len(mAxis)-1)
	degZ := min(maxDegree, len(zAxis)-1)
	nTerms := (degM + 1) * (degZ + 1)

	normM := normaliser(mAxis)
	normZ := normaliser(zAxis)

	var good, bad int
	for i := range logSFR {
		for j := range logSFR[i] {
			switch {
			case logSFR[i][j] == Sentinel:
				bad++
			case logSFR[i][j] > Sentinel:
				good++
			}
		}
	}
	if bad == 0 {
		return nil
	}
	if good < nTerms {
		return fmt.Errorf("sfr: %d well-defined cells cannot constrain a %d-term extrapolation surface", good, nTerms)
	}

	a := mat.NewDense(good, nTerms, nil)
	b := mat.NewVecDense(good, nil)
	row := 0
	for i := range logSFR {
		for j := range logSFR[i] {
			if logSFR[i][j] <= Sentinel {
				continue
			}
			a.SetRow(row, basis(normM(mAxis[i]), normZ(zAxis[j]), degM, degZ))
			b.SetVec(row, logSFR[i][j])
			row++
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return fmt.Errorf("sfr: fitting extrapolation surface: %w", err)
	}

	for i := range logSFR {
		for j := range logSFR[i] {
			if logSFR[i][j] != Sentinel {
				continue
			}
			phi := basis(normM(mAxis[i]), normZ(zAxis[j]), degM, degZ)
			sfr[i][j] = math.Pow(10, mat.Dot(mat.NewVecDense(nTerms, phi), &coef))
		}
	}
	return nil
}

// basis evaluates the monomials x^p y^q for p ≤ degX, q ≤ degY.
func basis(x, y float64, degX, degY int) []float64 {
	out := make([]float64, 0, (degX+1)*(degY+1))
	xp := 1.0
	for p := 0; p <= degX; p++ {
		yq := 1.0
		for q := 0; q <= degY; q++ {
			out = append(out, xp*yq)
			yq *= y
		}
		xp *= x
	}
	return out
}

// normaliser maps the axis range onto [-1, 1] to keep the least-squares
// system well conditioned.
func normaliser(axis []float64) func(float64) float64 {
	lo, hi := axis[0], axis[len(axis)-1]
	mid, half := (lo+hi)/2, (hi-lo)/2
	return func(x float64) float64 {
		return (x - mid) / half
	}
}
