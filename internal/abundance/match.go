package abundance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
)

// massBins is the number of log-mass bins in the halo mass function.
const massBins = 500

var (
	// ErrNoHalos is returned when there are no halos to build a mass
	// function from.
	ErrNoHalos = errors.New("abundance: no halos")

	// ErrEmptyVolume is returned for a non-positive survey volume.
	ErrEmptyVolume = errors.New("abundance: survey volume must be positive")
)

// Survey is the observed volume: a rectangular field of view in degrees
// between two redshifts.
type Survey struct {
	FovX, FovY float64
	ZMin, ZMax float64
}

// Volume returns the comoving volume of the survey in Mpc³.
func (s Survey) Volume(cm *cosmo.Cosmology) float64 {
	return cm.SurveyVolume(s.ZMin, s.ZMax, s.FovX, s.FovY)
}

// HaloMassFunction bins log10 halo masses into 500 equal bins spanning
// [min, max] and returns the bin centres and the cumulative number density
// n(>M) per unit log mass, Σ_{j>=i} N_j Δlog M / V.
func HaloMassFunction(logM []float64, volume float64) (logMCenters, nAbove []float64, err error) {
	if len(logM) == 0 {
		return nil, nil, ErrNoHalos
	}
	if !(volume > 0) {
		return nil, nil, fmt.Errorf("%w: got %g", ErrEmptyVolume, volume)
	}
	for i, v := range logM {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("abundance: halo %d has log mass %g", i, v)
		}
	}

	sorted := append([]float64(nil), logM...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / massBins

	dividers := floats.Span(make([]float64, massBins+1), lo, hi)
	// The top edge is inclusive.
	dividers[massBins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	logMCenters = make([]float64, massBins)
	perBin := make([]float64, massBins)
	for i := range perBin {
		logMCenters[i] = lo + width*(float64(i)+0.5)
		perBin[i] = counts[i] / volume * width
	}
	return logMCenters, reverseCumSum(perBin), nil
}

// Match returns the luminosity in Lsun of every halo in cat such that the
// number density of halos more massive than it equals the number density
// of sources brighter than it under lf. Densities outside either tabulated
// range are clamped to the end points.
func Match(cat *halo.Catalog, lf LuminosityFunction, volume float64) ([]float64, error) {
	if cat.N() == 0 {
		return nil, ErrNoHalos
	}
	logM := make([]float64, cat.N())
	for i, m := range cat.M {
		logM[i] = math.Log10(m)
	}

	mCenters, nM, err := HaloMassFunction(logM, volume)
	if err != nil {
		return nil, err
	}
	var hmf interp.PiecewiseLinear
	if err := hmf.Fit(mCenters, nM); err != nil {
		return nil, fmt.Errorf("abundance: mass function: %w", err)
	}

	lCenters, nL := CumulativeLF(lf)
	inverse, err := newInverse(nL, lCenters)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(logM))
	for i, v := range logM {
		out[i] = math.Pow(10, inverse.Predict(hmf.Predict(v))) / cosmo.SolarLuminosity
	}
	return out, nil
}

// newInverse builds log L as a function of the cumulative density. The
// density axis is non-increasing in L, so it is reversed; runs of equal
// densities, left by bins whose contribution underflows, collapse to their
// first node.
func newInverse(n, logL []float64) (interp.Predictor, error) {
	xs := make([]float64, 0, len(n))
	ys := make([]float64, 0, len(n))
	for i := len(n) - 1; i >= 0; i-- {
		if k := len(xs); k > 0 && n[i] <= xs[k-1] {
			continue
		}
		xs = append(xs, n[i])
		ys = append(ys, logL[i])
	}
	if len(xs) == 1 {
		return interp.Constant(ys[0]), nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("abundance: luminosity function: %w", err)
	}
	return &pl, nil
}
