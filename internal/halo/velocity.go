package halo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/delaneydunne/joint-limlam-mocker/internal/scatter"
)

// Velocity broadening modes.
const (
	VelocityVir           = "vvir"
	VelocityVirIncl       = "vvirincli"
	VelocityVirInclScaled = "vvirincli_scaled"
	VelocityVirInclCutoff = "vvirincli_cutoff"
	VelocityMPeak         = "vmpeak"
	VelocityMPeakIncl     = "vmpeakincli"
)

const (
	// meanSinI is the mean of sin i for isotropic inclinations, sqrt(3)/2.
	meanSinI = 0.866
	// vmpeakSeed fixes the scatter on the fitted peak circular velocity.
	vmpeakSeed = 12345
)

// VelocityConfig selects how line-broadening velocities are assigned.
type VelocityConfig struct {
	Attr            string
	ScaleFactor     float64 // vvirincli_scaled divides by this
	Cutoff          float64 // km/s, vvirincli_cutoff wraps values above this
	InclinationSeed int64
}

// VirialVelocity returns 35 (M H(z) / 1e10)^(1/3) km/s, with H in km/s/Mpc.
func VirialVelocity(m, hz float64) float64 {
	return 35 * math.Cbrt(m*hz/1e10)
}

// PeakVelocity returns the UniverseMachine v_Mpeak fit at redshift z.
func PeakVelocity(m, z float64) float64 {
	a := 1 / (1 + z)
	m200 := 1.64e12 / (math.Pow(a/0.378, -0.142) + math.Pow(a/0.378, -1.79))
	return 200 * math.Pow(m/m200, 0.3)
}

// AssignVelocities fills VBroaden according to cfg.Attr, along with SinI and
// VVir where the mode computes them, and returns VBroaden.
func (c *Catalog) AssignVelocities(cfg VelocityConfig) ([]float64, error) {
	if c.Cosmo == nil {
		return nil, ErrNoCosmology
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := c.N()

	vvir := func() []float64 {
		v := make([]float64, n)
		for i := range v {
			v[i] = VirialVelocity(c.M[i], c.Cosmo.H(c.Redshift[i]))
		}
		return v
	}
	sinI := func() []float64 {
		u := distuv.Uniform{Min: 0, Max: 1, Src: scatter.NewSource(cfg.InclinationSeed)}
		s := make([]float64, n)
		for i := range s {
			x := u.Rand()
			s[i] = math.Sqrt(1 - x*x)
		}
		return s
	}
	vmpeak := func() []float64 {
		g := distuv.Normal{Mu: 1, Sigma: 0.1, Src: scatter.NewSource(vmpeakSeed)}
		v := make([]float64, n)
		for i := range v {
			v[i] = math.Pow(10, math.Log10(PeakVelocity(c.M[i], c.Redshift[i]))*g.Rand())
		}
		return v
	}

	vb := make([]float64, n)
	switch cfg.Attr {
	case VelocityVir:
		c.SinI = sinI()
		copy(vb, vvir())

	case VelocityVirIncl, VelocityVirInclScaled, VelocityVirInclCutoff:
		if cfg.Attr == VelocityVirInclScaled && cfg.ScaleFactor == 0 {
			return nil, fmt.Errorf("halo: %s needs a non-zero scale factor", cfg.Attr)
		}
		if cfg.Attr == VelocityVirInclCutoff && cfg.Cutoff <= 0 {
			return nil, fmt.Errorf("halo: %s needs a positive cutoff", cfg.Attr)
		}
		c.SinI = sinI()
		c.VVir = vvir()
		for i := range vb {
			vb[i] = c.VVir[i] * c.SinI[i] / meanSinI
			switch cfg.Attr {
			case VelocityVirInclScaled:
				vb[i] /= cfg.ScaleFactor
			case VelocityVirInclCutoff:
				if vb[i] > cfg.Cutoff {
					vb[i] = math.Mod(vb[i], cfg.Cutoff)
				}
			}
		}

	case VelocityMPeak:
		copy(vb, vmpeak())

	case VelocityMPeakIncl:
		c.SinI = sinI()
		v := vmpeak()
		for i := range vb {
			vb[i] = v[i] * c.SinI[i] / meanSinI
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVelocityMode, cfg.Attr)
	}

	c.VBroaden = vb
	return vb, nil
}
