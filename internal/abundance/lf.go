// Package abundance assigns luminosities to halos by matching the cumulative
// number density of halos above a mass to the cumulative number density of
// sources above a luminosity.
package abundance

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// lfEdges is the number of log-spaced luminosity bin edges.
const lfEdges = 101

// LuminosityFunction is a differential luminosity function φ(L), in number
// per unit luminosity per unit comoving volume, defined over a finite
// log10 luminosity range.
type LuminosityFunction interface {
	Phi(l float64) float64
	Range() (logLMin, logLMax float64)
}

// Schechter is the Schechter (1976) luminosity function. Luminosities are in
// erg/s and PhiStar in Mpc⁻³.
type Schechter struct {
	LStar   float64
	PhiStar float64
	Alpha   float64
	LogLMin float64
	LogLMax float64
}

// Phi returns (φ*/L*) (L/L*)^α exp(-L/L*).
func (s Schechter) Phi(l float64) float64 {
	x := l / s.LStar
	return s.PhiStar / s.LStar * math.Pow(x, s.Alpha) * math.Exp(-x)
}

func (s Schechter) Range() (float64, float64) {
	return s.LogLMin, s.LogLMax
}

// CumulativeLF integrates lf over 100 log-spaced bins spanning its range.
// It returns the log10 bin centres and the number density of sources
// brighter than each centre's bin, which is non-increasing.
func CumulativeLF(lf LuminosityFunction) (logLCenters, nAbove []float64) {
	lo, hi := lf.Range()
	edges := floats.Span(make([]float64, lfEdges), lo, hi)

	logLCenters = make([]float64, lfEdges-1)
	perBin := make([]float64, lfEdges-1)
	for i := range perBin {
		logLCenters[i] = edges[i] + (edges[i+1]-edges[i])/2
		dL := math.Pow(10, edges[i+1]) - math.Pow(10, edges[i])
		perBin[i] = lf.Phi(math.Pow(10, logLCenters[i])) * dL
	}
	return logLCenters, reverseCumSum(perBin)
}

// reverseCumSum returns out[i] = Σ_{j>=i} v[j].
func reverseCumSum(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	floats.Reverse(out)
	floats.CumSum(out, out)
	floats.Reverse(out)
	return out
}
