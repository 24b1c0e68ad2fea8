// Package sfr interpolates the tabulated halo star-formation rate as a
// function of halo mass and redshift. The table is read once per process and
// shared through a Cache.
package sfr

import (
	"fmt"
	"math"
	"sort"
)

// Sentinel marks grid cells where the tabulation has no physical SFR.
const Sentinel = -1000.0

// Table is a bilinear interpolant of SFR (Msun/yr) over log10 halo mass and
// log10(1+z). It is immutable after Build and safe for concurrent reads.
type Table struct {
	logM   []float64   // strictly increasing
	logZp1 []float64   // strictly increasing
	sfr    [][]float64 // [len(logM)][len(logZp1)]
}

// Build places every row on the (log mass, log(1+z)) grid and returns the
// interpolant. Each grid cell must be filled exactly once.
//
// With extrapolate set, cells whose log SFR equals Sentinel are replaced by
// a smooth surface fitted to the well-defined cells only; otherwise they keep
// their tabulated value.
func Build(rows []Row, extrapolate bool) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sfr: no rows")
	}

	logZp1 := make([]float64, len(rows))
	logM := make([]float64, len(rows))
	for i, r := range rows {
		logZp1[i] = math.Log10(r.ZPlus1)
		logM[i] = r.LogMass
	}
	mAxis := unique(logM)
	zAxis := unique(logZp1)
	if len(mAxis) < 2 || len(zAxis) < 2 {
		return nil, fmt.Errorf("sfr: need at least 2 mass and 2 redshift nodes, got %d×%d", len(mAxis), len(zAxis))
	}
	if len(mAxis)*len(zAxis) != len(rows) {
		return nil, fmt.Errorf("sfr: %d rows do not fill a %d×%d grid", len(rows), len(mAxis), len(zAxis))
	}

	logSFR := newGrid(len(mAxis), len(zAxis))
	filled := make([][]bool, len(mAxis))
	for i := range filled {
		filled[i] = make([]bool, len(zAxis))
	}
	for k, r := range rows {
		i := sort.SearchFloat64s(mAxis, logM[k])
		j := sort.SearchFloat64s(zAxis, logZp1[k])
		if filled[i][j] {
			return nil, fmt.Errorf("sfr: duplicate entry at log M %g, 1+z %g", r.LogMass, r.ZPlus1)
		}
		filled[i][j] = true
		logSFR[i][j] = r.LogSFR
	}

	sfr := newGrid(len(mAxis), len(zAxis))
	for i := range sfr {
		for j := range sfr[i] {
			sfr[i][j] = math.Pow(10, logSFR[i][j])
		}
	}

	if extrapolate {
		if err := fillSentinels(mAxis, zAxis, logSFR, sfr); err != nil {
			return nil, err
		}
	}

	return &Table{logM: mAxis, logZp1: zAxis, sfr: sfr}, nil
}

// Evaluate returns the interpolated SFR at (logMass, log10(1+z)). Queries
// outside the grid are clamped to its boundary.
func (t *Table) Evaluate(logMass, logZp1 float64) float64 {
	i, fx := bracket(t.logM, logMass)
	j, fy := bracket(t.logZp1, logZp1)

	s00 := t.sfr[i][j]
	s10 := t.sfr[i+1][j]
	s01 := t.sfr[i][j+1]
	s11 := t.sfr[i+1][j+1]
	return (1-fx)*(1-fy)*s00 + fx*(1-fy)*s10 + (1-fx)*fy*s01 + fx*fy*s11
}

// EvaluateHalos returns the SFR for halo masses (Msun) and redshifts.
func (t *Table) EvaluateHalos(mass, redshift []float64) []float64 {
	out := make([]float64, len(mass))
	for i := range mass {
		out[i] = t.Evaluate(math.Log10(mass[i]), math.Log10(1+redshift[i]))
	}
	return out
}

// Axes returns copies of the log mass and log(1+z) grid nodes.
func (t *Table) Axes() (logM, logZp1 []float64) {
	return append([]float64(nil), t.logM...), append([]float64(nil), t.logZp1...)
}

// bracket returns the lower node index and fractional position of x within
// the cell [xs[i], xs[i+1]], clamping x to the axis range.
func bracket(xs []float64, x float64) (int, float64) {
	n := len(xs)
	if x <= xs[0] || math.IsNaN(x) {
		return 0, 0
	}
	if x >= xs[n-1] {
		return n - 2, 1
	}
	i := sort.SearchFloat64s(xs, x) - 1
	return i, (x - xs[i]) / (xs[i+1] - xs[i])
}

func unique(v []float64) []float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	out := s[:0]
	for i, x := range s {
		if i == 0 || x != s[i-1] {
			out = append(out, x)
		}
	}
	return out
}

func newGrid(n, m int) [][]float64 {
	g := make([][]float64, n)
	for i := range g {
		g[i] = make([]float64, m)
	}
	return g
}
