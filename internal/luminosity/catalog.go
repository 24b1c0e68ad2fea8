package luminosity

import (
	"context"
	"math"

	"github.com/delaneydunne/joint-limlam-mocker/internal/abundance"
	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
)

// CatalogModelName names a catalog-tracer luminosity model.
type CatalogModelName string

const (
	CatalogLyaChung     CatalogModelName = "lya_chung"     // Chung et al. 2019 Lyman-alpha
	CatalogSchechter    CatalogModelName = "schechter"     // abundance matched to a Schechter LF
	CatalogSchechterAmp CatalogModelName = "schechter_amp" // schechter times an amplitude
	CatalogDefault      CatalogModelName = "default"       // double power law
	CatalogTest2        CatalogModelName = "test2"         // steep double power law
)

var catalogAliases = map[CatalogModelName]CatalogModelName{
	"test1": CatalogDefault,
}

var (
	// Ouchi et al. 2020 Lyman-alpha luminosity function.
	defaultsSchechter    = []float64{0.849e43, 3.9e-4, -1.8, 39, 45}
	defaultsSchechterAmp = []float64{1, 0.849e43, 3.9e-4, -1.8, 39, 45}
	defaultsCatDefault   = []float64{-2, -0.5, 11, 13, 0.5}
	defaultsCatTest2     = []float64{0.5, 2, 11, 12, 0.5}
)

// lyaSigmaSFR is the SFR scatter the Lyman-alpha model assumes; it is also
// the catalog scatter the model implies.
const lyaSigmaSFR = 0.3

// CatalogResult is the output of a catalog model.
type CatalogResult struct {
	Lcat []float64 // Lsun
	// Catdex is the scatter width in dex the model implies for its own
	// luminosities. It replaces the configured catalog scatter when
	// CatdexSet is true.
	Catdex    float64
	CatdexSet bool
}

// LyaEscapeFraction returns the Lyman-alpha escape fraction for a halo with
// star-formation rate sfr (Msun/yr) at redshift z.
func LyaEscapeFraction(sfr, z float64) float64 {
	f := 0.18 + 0.82/(1+0.8*math.Pow(sfr, 0.875))
	return math.Pow(1+math.Exp(-1.6*z+5), -0.5) * f * f
}

func lcatLyaChung(ctx context.Context, m *Models, cat *halo.Catalog, _ Coefficients, _ abundance.Survey) (CatalogResult, error) {
	if err := m.ensureSFR(ctx, cat, lyaSigmaSFR, false); err != nil {
		return CatalogResult{}, err
	}
	out := make([]float64, cat.N())
	for i, s := range cat.SFR {
		l := 1.6e42 * s * LyaEscapeFraction(s, cat.Redshift[i]) / cosmo.SolarLuminosity
		if math.IsNaN(l) {
			l = 0
		}
		out[i] = l
	}
	return CatalogResult{Lcat: out, Catdex: lyaSigmaSFR, CatdexSet: true}, nil
}

// schechterTuple resolves Schechter coefficients. Unlike the other models,
// an empty tuple selects the defaults as well as a nil one.
func schechterTuple(model CatalogModelName, c Coefficients, defaults []float64) ([]float64, error) {
	if len(c.Values) == 0 {
		c.Values = nil
	}
	return tuple(string(model), c, defaults)
}

func matchSchechter(cat *halo.Catalog, v []float64, survey abundance.Survey) ([]float64, error) {
	if cat.Cosmo == nil {
		return nil, halo.ErrNoCosmology
	}
	lf := abundance.Schechter{LStar: v[0], PhiStar: v[1], Alpha: v[2], LogLMin: v[3], LogLMax: v[4]}
	return abundance.Match(cat, lf, survey.Volume(cat.Cosmo))
}

func lcatSchechter(_ context.Context, _ *Models, cat *halo.Catalog, c Coefficients, survey abundance.Survey) (CatalogResult, error) {
	v, err := schechterTuple(CatalogSchechter, c, defaultsSchechter)
	if err != nil {
		return CatalogResult{}, err
	}
	l, err := matchSchechter(cat, v, survey)
	if err != nil {
		return CatalogResult{}, err
	}
	cat.CatalogCoeffs = append([]float64(nil), v...)
	return CatalogResult{Lcat: l}, nil
}

func lcatSchechterAmp(_ context.Context, _ *Models, cat *halo.Catalog, c Coefficients, survey abundance.Survey) (CatalogResult, error) {
	v, err := schechterTuple(CatalogSchechterAmp, c, defaultsSchechterAmp)
	if err != nil {
		return CatalogResult{}, err
	}
	l, err := matchSchechter(cat, v[1:], survey)
	if err != nil {
		return CatalogResult{}, err
	}
	for i := range l {
		l[i] *= v[0]
	}
	cat.CatalogCoeffs = append([]float64(nil), v...)
	return CatalogResult{Lcat: l}, nil
}

func lcatPowerLaw(model CatalogModelName, defaults []float64) catalogModel {
	return func(_ context.Context, _ *Models, cat *halo.Catalog, c Coefficients, _ abundance.Survey) (CatalogResult, error) {
		v, err := tuple(string(model), c, defaults)
		if err != nil {
			return CatalogResult{}, err
		}
		a, b, logC, logM, sigma := v[0], v[1], v[2], v[3], v[4]

		out := make([]float64, cat.N())
		for i, mass := range cat.M {
			out[i] = doublePowerLaw(mass, a, b, logC, logM)
		}
		cat.CatalogCoeffs = append([]float64(nil), v...)
		return CatalogResult{Lcat: out, Catdex: sigma, CatdexSet: true}, nil
	}
}

var (
	lcatDefault = lcatPowerLaw(CatalogDefault, defaultsCatDefault)
	lcatTest2   = lcatPowerLaw(CatalogTest2, defaultsCatTest2)
)
