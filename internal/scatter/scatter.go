// Package scatter draws the seeded log-normal perturbations applied to halo
// luminosities. Every draw is reproducible from its seed, and every scatter
// factor has a linear-space mean of one so scatter never biases the mean
// luminosity.
package scatter

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// seedMultiplier decorrelates the small consecutive seeds that different
// models pass in.
const seedMultiplier = 13579

// Sigma converts a scatter width in dex to a standard deviation in natural
// log space.
func Sigma(dex float64) float64 {
	return dex * math.Ln10
}

// meanOffset is the log-space mean that makes E[exp(N(mu, sigma))] = 1.
func meanOffset(sigma float64) float64 {
	return -0.5 * sigma * sigma
}

// NewSource returns the deterministic generator used for a given seed.
func NewSource(seed int64) rand.Source {
	u := uint64(seed)
	return rand.NewPCG(u, u^0x9e3779b97f4a7c15)
}

// Independent returns values multiplied by independent log-normal factors of
// width dex. A non-positive dex means no scatter and returns values itself.
// Elements that are zero or negative are copied through unchanged, but a
// factor is still drawn for them so that the draw at each position does not
// depend on the values elsewhere in the slice.
func Independent(values []float64, dex float64, seed int64) []float64 {
	if dex <= 0 {
		return values
	}
	sigma := Sigma(dex)
	dist := distuv.LogNormal{
		Mu:    meanOffset(sigma),
		Sigma: sigma,
		Src:   NewSource(seed * seedMultiplier),
	}

	out := make([]float64, len(values))
	for i, v := range values {
		f := dist.Rand()
		if v > 0 {
			out[i] = v * f
		} else {
			out[i] = v
		}
	}
	return out
}

// IndependentPerElement is Independent with a separate width for every
// element, used by models whose scatter depends on redshift. Elements with a
// non-positive width or value are left unscattered.
func IndependentPerElement(values, dex []float64, seed int64) []float64 {
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: NewSource(seed * seedMultiplier)}

	out := make([]float64, len(values))
	for i, v := range values {
		g := std.Rand()
		if v <= 0 || dex[i] <= 0 {
			out[i] = v
			continue
		}
		sigma := Sigma(dex[i])
		out[i] = v * math.Exp(meanOffset(sigma)+sigma*g)
	}
	return out
}
