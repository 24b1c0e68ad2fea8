package luminosity

import (
	"context"
	"math"

	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/scatter"
)

// COModelName names a CO luminosity model.
type COModelName string

const (
	ModelLi          COModelName = "Li"          // Li et al. 2016, SFR based
	ModelLiSC        COModelName = "Li_sc"       // Li with a single scatter on Lco
	ModelPadmanabhan COModelName = "Padmanabhan" // Padmanabhan 2018
	ModelFiducial    COModelName = "fiducial"    // Chung et al. 2022 double power law
	ModelYang        COModelName = "Yang"        // Yang et al. 2022 semi-analytic fit
	ModelArbitrary   COModelName = "arbitrary"
)

var coAliases = map[COModelName]COModelName{
	"fiuducial": ModelFiducial,
}

var (
	defaultsLi          = []float64{0, 1.37, -1.74, 0.3, 0.3, 1.0}
	defaultsLiSC        = []float64{0, 1.37, -1.74, 0.3}
	defaultsPadmanabhan = []float64{4.17e12, -1.17, 0.0033, 0.04, 0.95, 0.48, 0.66, -0.33, 1}
	defaultsFiducial    = []float64{-2.85, -0.42, 10.63, 12.3, 0.42}
)

// irToLco converts an SFR to Lco through L_IR = SFR·1e10/δ_MF and the
// L_IR–L'co power law log L_IR = α log L'co + β.
func irToLco(sfr, deltaMF, alpha, beta float64) float64 {
	lir := sfr * 1e10 / deltaMF
	return lcoPerLprime * math.Pow(lir, 1/alpha) * math.Pow(10, -beta/alpha)
}

// doublePowerLaw returns 4.9e-5 C / ((M/Mc)^A + (M/Mc)^B).
func doublePowerLaw(mass, a, b, logC, logM float64) float64 {
	x := mass / math.Pow(10, logM)
	return lcoPerLprime * math.Pow(10, logC) / (math.Pow(x, a) + math.Pow(x, b))
}

func lcoLi(ctx context.Context, m *Models, cat *halo.Catalog, c Coefficients, scat bool) ([]float64, error) {
	v, err := tuple(string(ModelLi), c, defaultsLi)
	if err != nil {
		return nil, err
	}
	logDeltaMF, alpha, beta, sigmaSFR, sigmaLco, scale := v[0], v[1], v[2], v[3], v[4], v[5]

	if err := m.ensureSFR(ctx, cat, sigmaSFR, false); err != nil {
		return nil, err
	}
	deltaMF := math.Pow(10, logDeltaMF)
	out := make([]float64, cat.N())
	for i, s := range cat.SFR {
		out[i] = irToLco(s, deltaMF, alpha, beta) * scale
	}
	if scat {
		out = scatter.Independent(out, sigmaLco, seedLi)
	}
	return out, nil
}

func lcoLiSC(ctx context.Context, m *Models, cat *halo.Catalog, c Coefficients, scat bool) ([]float64, error) {
	v, err := tuple(string(ModelLiSC), c, defaultsLiSC)
	if err != nil {
		return nil, err
	}
	logDeltaMF, alpha, beta, sigmaSC := v[0], v[1], v[2], v[3]

	if err := m.ensureSFR(ctx, cat, 0, false); err != nil {
		return nil, err
	}
	deltaMF := math.Pow(10, logDeltaMF)
	out := make([]float64, cat.N())
	for i, s := range cat.SFR {
		out[i] = irToLco(s, deltaMF, alpha, beta)
	}
	if scat {
		out = scatter.Independent(out, sigmaSC, seedLi)
	}
	return out, nil
}

// lcoPadmanabhan evaluates a double power law whose parameters evolve as
// p = p0 + p1 z/(1+z), scaled by a duty fraction. It is never scattered.
func lcoPadmanabhan(_ context.Context, _ *Models, cat *halo.Catalog, c Coefficients, _ bool) ([]float64, error) {
	v, err := tuple(string(ModelPadmanabhan), c, defaultsPadmanabhan)
	if err != nil {
		return nil, err
	}
	m10, m11, n10, n11, b10, b11, y10, y11, fduty := v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8]

	out := make([]float64, cat.N())
	for i, mass := range cat.M {
		z := cat.Redshift[i]
		a := z / (z + 1)
		m1 := math.Pow(10, math.Log10(m10)+m11*a)
		n := n10 + n11*a
		b := b10 + b11*a
		y := y10 + y11*a
		x := mass / m1
		out[i] = lcoPerLprime * 2 * n * mass / (math.Pow(x, -b) + math.Pow(x, y)) * fduty
	}
	return out, nil
}

func lcoFiducial(_ context.Context, _ *Models, cat *halo.Catalog, c Coefficients, scat bool) ([]float64, error) {
	v, err := tuple(string(ModelFiducial), c, defaultsFiducial)
	if err != nil {
		return nil, err
	}
	a, b, logC, logM, sigma := v[0], v[1], v[2], v[3], v[4]

	out := make([]float64, cat.N())
	for i, mass := range cat.M {
		out[i] = doublePowerLaw(mass, a, b, logC, logM)
	}
	if scat {
		out = scatter.Independent(out, sigma, seedFiducial)
	}
	return out, nil
}

// YangSigma returns the redshift-dependent scatter of the Yang model in dex.
func YangSigma(z float64) float64 {
	return 0.357 - 0.0701*z + 0.00621*z*z
}

// lcoYang is only calibrated for CO(1-0) at 1 < z < 4 and takes no
// coefficients.
func lcoYang(ctx context.Context, m *Models, cat *halo.Catalog, c Coefficients, scat bool) ([]float64, error) {
	out := make([]float64, cat.N())
	if c.Values != nil {
		m.logger.Warn("Yang model takes no coefficients; returning zero luminosities",
			"model", ModelYang, "coefficients", len(c.Values))
		return out, nil
	}

	beta := 1.77*math.Exp(-1/2.72) - 0.00827
	for i, mass := range cat.M {
		z := cat.Redshift[i]
		m1 := math.Pow(10, 12.13-0.1678*z)
		n := math.Pow(10, -6.855+0.2366*z-0.05013*z*z)
		alpha := 1.642 + 0.1663*z - 0.03238*z*z
		x := mass / m1
		l := 2 * n * mass / (math.Pow(x, -alpha) + math.Pow(x, -beta))

		m2 := math.Pow(10, 11.73+0.6634*z)
		gamma := 1.37 - 0.190*z + 0.0215*z*z
		out[i] = l / (1 + math.Pow(mass/m2, gamma))
	}
	if scat {
		sigma := make([]float64, len(out))
		for i, z := range cat.Redshift {
			sigma[i] = YangSigma(z)
		}
		out = scatter.IndependentPerElement(out, sigma, seedYang)
	}
	return out, nil
}

func lcoArbitrary(ctx context.Context, m *Models, cat *halo.Catalog, c Coefficients, _ bool) ([]float64, error) {
	am := c.Arbitrary
	if am == nil || am.Func == nil {
		return nil, ErrNoModelFunc
	}
	if am.NeedsSFR {
		sigma := defaultSigSFR
		if am.SigmaSFR != nil {
			sigma = *am.SigmaSFR
		}
		if err := m.ensureSFR(ctx, cat, sigma, am.Extrapolate); err != nil {
			return nil, err
		}
	}
	out := am.Func(cat)
	if len(out) != cat.N() {
		return nil, &halo.LengthError{Column: halo.ColLco, Len: len(out), Want: cat.N()}
	}
	return out, nil
}
