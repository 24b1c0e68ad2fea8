package luminosity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/delaneydunne/joint-limlam-mocker/internal/abundance"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
	"github.com/delaneydunne/joint-limlam-mocker/internal/scatter"
)

// DefaultSeed is the seed DefaultConfig starts from.
const DefaultSeed = 12345

// Config selects the models and scatter for a pipeline run.
type Config struct {
	Model    COModelName
	COCoeffs Coefficients

	// CatalogModel is empty when no catalog tracer is wanted.
	CatalogModel  CatalogModelName
	CatalogCoeffs Coefficients

	Codex  float64 // CO scatter, dex
	Catdex float64 // catalog scatter, dex; overridden by models that imply one
	Rho    float64 // correlation of the CO and catalog scatter
	Seed   int64   // used as given, zero included

	SaveScatterless bool

	// Survey is the observed volume, used by abundance-matched models.
	Survey abundance.Survey
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Model:  ModelLi,
		Codex:  0.3,
		Catdex: 0.3,
		Seed:   DefaultSeed,
	}
}

// Pipeline computes both tracers' luminosities for a catalog.
type Pipeline struct {
	models *Models
	logger *slog.Logger
}

func NewPipeline(models *Models, logger *slog.Logger) *Pipeline {
	return &Pipeline{models: models, logger: logger}
}

// Run fills cat.Lco and, if a catalog model is configured, cat.Lcat. Model
// luminosities are computed without their own scatter; the pipeline then
// applies either correlated scatter to both tracers or independent scatter
// to CO alone. Unknown model names and invalid correlations are reported
// before any model runs. The work happens on a copy that replaces cat only
// when every stage succeeds, so on error cat is unchanged.
func (p *Pipeline) Run(ctx context.Context, cat *halo.Catalog, cfg Config) error {
	coName, _, err := p.models.lookupCO(cfg.Model)
	if err != nil {
		return err
	}
	withCatalog := cfg.CatalogModel != ""
	var catName CatalogModelName
	if withCatalog {
		if catName, _, err = p.models.lookupCatalog(cfg.CatalogModel); err != nil {
			return err
		}
		if math.IsNaN(cfg.Rho) || math.Abs(cfg.Rho) > 1 {
			return fmt.Errorf("rho %g: %w", cfg.Rho, scatter.ErrCorrelation)
		}
	}
	if err := cat.Validate(); err != nil {
		return err
	}

	work := cat.Copy()

	start := time.Now()
	lco, err := p.models.Lco(ctx, work, coName, cfg.COCoeffs, false)
	if err != nil {
		return fmt.Errorf("co luminosities: %w", err)
	}
	work.Lco = lco
	p.stage("lco", start, "model", coName)

	if !withCatalog {
		if cfg.SaveScatterless {
			work.ScatterlessLco = append([]float64(nil), work.Lco...)
		}
		start = time.Now()
		work.Lco = scatter.Independent(work.Lco, cfg.Codex, cfg.Seed)
		p.stage("scatter", start, "codex", cfg.Codex)
		return p.commit(ctx, cat, work)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	start = time.Now()
	res, err := p.models.Lcat(ctx, work, catName, cfg.CatalogCoeffs, cfg.Survey)
	if err != nil {
		return fmt.Errorf("catalog luminosities: %w", err)
	}
	work.Lcat = res.Lcat
	p.stage("lcat", start, "model", catName)

	if cfg.SaveScatterless {
		work.ScatterlessLco = append([]float64(nil), work.Lco...)
		work.ScatterlessLcat = append([]float64(nil), work.Lcat...)
	}

	catdex := cfg.Catdex
	if res.CatdexSet {
		catdex = res.Catdex
	}
	start = time.Now()
	joint, err := scatter.Correlated(work.N(), cfg.Rho, cfg.Codex, catdex, cfg.Seed)
	if err != nil {
		return err
	}
	if joint.Applied {
		joint.Apply(work.Lco, work.Lcat)
		work.Cov = joint.Cov
	} else {
		p.logger.Warn("non-positive scatter width, not scattering", "codex", cfg.Codex, "catdex", catdex)
		metrics.RecordScatterSkipped()
	}
	p.stage("scatter", start, "codex", cfg.Codex, "catdex", catdex, "rho", cfg.Rho)
	return p.commit(ctx, cat, work)
}

// commit replaces cat with the finished copy unless ctx has ended.
func (p *Pipeline) commit(ctx context.Context, cat, work *halo.Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	*cat = *work
	metrics.SetHalos("luminosity", cat.N())
	return nil
}

func (p *Pipeline) stage(name string, start time.Time, attrs ...any) {
	d := time.Since(start)
	metrics.RecordStage(name, d)
	p.logger.Info("stage complete", append([]any{"stage", name, "duration_ms", d.Milliseconds()}, attrs...)...)
}
