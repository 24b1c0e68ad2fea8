// Package cosmo provides the flat ΛCDM background quantities the halo
// pipeline needs: the Hubble rate, comoving distances and volumes, and the
// conversion of an observed line frequency to a redshift.
package cosmo

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// SpeedOfLight is c in km/s.
const SpeedOfLight = 299792.458

// SolarLuminosity is Lsun in erg/s.
const SolarLuminosity = 3.826e33

// quadPoints is the number of Gauss-Legendre nodes used for distance integrals.
const quadPoints = 64

// Cosmology holds the background parameters attached to a halo catalog.
// It is shared by reference and never modified after loading.
type Cosmology struct {
	H0     float64 // km/s/Mpc
	OmegaM float64
	OmegaB float64
	OmegaL float64 // carried from the catalog header; the flat model uses 1-OmegaM
	Ns     float64
	Sigma8 float64
}

// FromLittleH builds a cosmology from h = H0/100, the convention used by
// peak-patch catalog headers.
func FromLittleH(h, omegaM, omegaB, omegaL, ns, sigma8 float64) *Cosmology {
	return &Cosmology{
		H0:     100 * h,
		OmegaM: omegaM,
		OmegaB: omegaB,
		OmegaL: omegaL,
		Ns:     ns,
		Sigma8: sigma8,
	}
}

// E returns the dimensionless Hubble rate H(z)/H0 for a flat universe
// without radiation:
//
//	E(z) = sqrt(Ωm (1+z)³ + 1 - Ωm)
func (c *Cosmology) E(z float64) float64 {
	zp1 := 1 + z
	return math.Sqrt(c.OmegaM*zp1*zp1*zp1 + (1 - c.OmegaM))
}

// H returns the Hubble rate at redshift z in km/s/Mpc.
func (c *Cosmology) H(z float64) float64 {
	return c.H0 * c.E(z)
}

// HubbleDistance returns c/H0 in Mpc.
func (c *Cosmology) HubbleDistance() float64 {
	return SpeedOfLight / c.H0
}

// ComovingDistance returns the line-of-sight comoving distance to z in Mpc.
func (c *Cosmology) ComovingDistance(z float64) float64 {
	if z <= 0 {
		return 0
	}
	integral := quad.Fixed(func(zz float64) float64 {
		return 1 / c.E(zz)
	}, 0, z, quadPoints, nil, 0)
	return c.HubbleDistance() * integral
}

// ComovingVolume returns the all-sky comoving volume out to z in Mpc³.
func (c *Cosmology) ComovingVolume(z float64) float64 {
	d := c.ComovingDistance(z)
	return 4 * math.Pi / 3 * d * d * d
}

// SurveyVolume returns the comoving volume in Mpc³ of a rectangular field of
// view (fovX × fovY, degrees) between redshifts zMin and zMax.
func (c *Cosmology) SurveyVolume(zMin, zMax, fovX, fovY float64) float64 {
	shell := c.ComovingVolume(zMax) - c.ComovingVolume(zMin)
	sr := fovX * fovY * (math.Pi / 180) * (math.Pi / 180)
	return shell / (4 * math.Pi) * sr
}

// FreqToZ converts an observed frequency to the redshift of a line emitted
// at nuRest. Both frequencies must share units.
func FreqToZ(nuRest, nu float64) float64 {
	return nuRest/nu - 1
}
