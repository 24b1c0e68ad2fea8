// Package luminosity turns halo properties into line luminosities. It holds
// the named model registries for the intensity-mapping tracer (CO) and the
// galaxy-catalog tracer, and the pipeline that runs both and applies their
// joint scatter.
package luminosity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/delaneydunne/joint-limlam-mocker/internal/abundance"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
	"github.com/delaneydunne/joint-limlam-mocker/internal/scatter"
	"github.com/delaneydunne/joint-limlam-mocker/internal/sfr"
)

// Tracer names used in errors and metrics.
const (
	TracerCO      = "co"
	TracerCatalog = "catalog"
)

// lcoPerLprime converts L'co in K km/s pc² to Lco in Lsun for CO(1-0).
const lcoPerLprime = 4.9e-5

// Seeds of the scatter each model applies when asked to scatter itself.
const (
	seedSFR       = 1
	seedLi        = 2
	seedFiducial  = 3
	seedYang      = 4
	defaultSigSFR = 0.3
)

// ErrNoModelFunc is returned when the arbitrary model has no function.
var ErrNoModelFunc = errors.New("luminosity: arbitrary model needs a function")

// Coefficients parameterises a model. Nil Values selects the model's
// literature defaults. Arbitrary is only read by the arbitrary CO model.
type Coefficients struct {
	Values    []float64
	Arbitrary *ArbitraryModel
}

// ArbitraryModel is a caller-supplied CO model.
type ArbitraryModel struct {
	Func func(*halo.Catalog) []float64
	// NeedsSFR computes the catalog SFR before calling Func if it is missing.
	NeedsSFR bool
	// SigmaSFR is the SFR scatter in dex; nil means 0.3.
	SigmaSFR *float64
	// Extrapolate builds the SFR table with sentinel cells refitted.
	Extrapolate bool
}

// BareFunc wraps a plain function as an arbitrary model that needs the SFR
// with the default scatter.
func BareFunc(f func(*halo.Catalog) []float64) Coefficients {
	return Coefficients{Arbitrary: &ArbitraryModel{Func: f, NeedsSFR: true}}
}

// UnknownModelError reports a model name missing from a registry.
type UnknownModelError struct {
	Tracer string
	Name   string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("luminosity: unknown %s model %q", e.Tracer, e.Name)
}

// CoeffCountError reports a coefficient tuple of the wrong length.
type CoeffCountError struct {
	Model string
	Got   int
	Want  int
}

func (e *CoeffCountError) Error() string {
	return fmt.Sprintf("luminosity: model %s takes %d coefficients, got %d", e.Model, e.Want, e.Got)
}

// tuple resolves coefficient values against a model's defaults.
func tuple(model string, c Coefficients, defaults []float64) ([]float64, error) {
	if c.Values == nil {
		return append([]float64(nil), defaults...), nil
	}
	if len(c.Values) != len(defaults) {
		return nil, &CoeffCountError{Model: model, Got: len(c.Values), Want: len(defaults)}
	}
	return c.Values, nil
}

type coModel func(ctx context.Context, m *Models, cat *halo.Catalog, c Coefficients, scatter bool) ([]float64, error)

type catalogModel func(ctx context.Context, m *Models, cat *halo.Catalog, c Coefficients, survey abundance.Survey) (CatalogResult, error)

// Models evaluates the named luminosity models. The SFR cache is shared by
// every SFR-based model.
type Models struct {
	sfr     *sfr.Cache
	pool    *sfr.WorkerPool
	logger  *slog.Logger
	co      map[COModelName]coModel
	catalog map[CatalogModelName]catalogModel
}

// NewModels creates the registries. cache may be nil if no SFR-based model
// will be used.
func NewModels(cache *sfr.Cache, logger *slog.Logger) *Models {
	return &Models{
		sfr:    cache,
		logger: logger,
		co: map[COModelName]coModel{
			ModelLi:          lcoLi,
			ModelLiSC:        lcoLiSC,
			ModelPadmanabhan: lcoPadmanabhan,
			ModelFiducial:    lcoFiducial,
			ModelYang:        lcoYang,
			ModelArbitrary:   lcoArbitrary,
		},
		catalog: map[CatalogModelName]catalogModel{
			CatalogLyaChung:     lcatLyaChung,
			CatalogSchechter:    lcatSchechter,
			CatalogSchechterAmp: lcatSchechterAmp,
			CatalogDefault:      lcatDefault,
			CatalogTest2:        lcatTest2,
		},
	}
}

// WithWorkers evaluates the SFR table on a pool of n goroutines.
func (m *Models) WithWorkers(n int) *Models {
	m.pool = sfr.NewWorkerPool(n, m.logger)
	return m
}

func (m *Models) lookupCO(name COModelName) (COModelName, coModel, error) {
	if alias, ok := coAliases[name]; ok {
		name = alias
	}
	f, ok := m.co[name]
	if !ok {
		return name, nil, &UnknownModelError{Tracer: TracerCO, Name: string(name)}
	}
	return name, f, nil
}

func (m *Models) lookupCatalog(name CatalogModelName) (CatalogModelName, catalogModel, error) {
	if alias, ok := catalogAliases[name]; ok {
		name = alias
	}
	f, ok := m.catalog[name]
	if !ok {
		return name, nil, &UnknownModelError{Tracer: TracerCatalog, Name: string(name)}
	}
	return name, f, nil
}

// Lco returns the CO luminosity in Lsun of every halo under the named model.
// The catalog is not modified except for the SFR column, which SFR-based
// models compute when it is missing. With scatter set, models that carry
// their own scatter width apply it.
func (m *Models) Lco(ctx context.Context, cat *halo.Catalog, name COModelName, c Coefficients, scatter bool) ([]float64, error) {
	resolved, f, err := m.lookupCO(name)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	out, err := f(ctx, m, cat, c, scatter)
	if err != nil {
		return nil, err
	}
	metrics.RecordModel(TracerCO, string(resolved))
	return out, nil
}

// Lcat returns the catalog-tracer luminosity in Lsun of every halo under the
// named model, along with the scatter width the model implies, if any.
func (m *Models) Lcat(ctx context.Context, cat *halo.Catalog, name CatalogModelName, c Coefficients, survey abundance.Survey) (CatalogResult, error) {
	resolved, f, err := m.lookupCatalog(name)
	if err != nil {
		return CatalogResult{}, err
	}
	if err := cat.Validate(); err != nil {
		return CatalogResult{}, err
	}
	res, err := f(ctx, m, cat, c, survey)
	if err != nil {
		return CatalogResult{}, err
	}
	metrics.RecordModel(TracerCatalog, string(resolved))
	return res, nil
}

// ensureSFR fills cat.SFR from the tabulated relation if it has not been
// computed yet, scattering it by sigma dex. With a worker pool the
// evaluation stops early when ctx ends.
func (m *Models) ensureSFR(ctx context.Context, cat *halo.Catalog, sigma float64, extrapolate bool) error {
	if cat.SFR != nil {
		return nil
	}
	if m.sfr == nil {
		return fmt.Errorf("luminosity: SFR-based model used without an SFR table")
	}
	table, err := m.sfr.Get(extrapolate)
	if err != nil {
		return fmt.Errorf("loading sfr table: %w", err)
	}
	var raw []float64
	if m.pool != nil {
		raw, err = m.pool.EvaluateHalos(ctx, table, cat.M, cat.Redshift)
		if err != nil {
			return err
		}
	} else {
		raw = table.EvaluateHalos(cat.M, cat.Redshift)
	}
	cat.SFR = scatter.Independent(raw, sigma, seedSFR)
	return nil
}
