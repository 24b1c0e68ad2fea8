package halo

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/scatter"
)

// Observation weightings for ObservationCull.
const (
	WeightLinear = "linear"
	WeightLog    = "log"
)

// ObservationConfig describes the mock spectroscopic selection.
type ObservationConfig struct {
	LcatCutoff float64 // Lsun, exclusive lower bound on Lcat
	GoalNObj   int     // objects to keep after the cut; <= 0 keeps all
	Weight     string  // WeightLinear or WeightLog
	Seed       int64
}

// OffsetConfig describes the velocity offset between the catalog tracer and
// the intensity-mapping tracer.
type OffsetConfig struct {
	Offset  float64 // mean, km/s
	Scatter float64 // standard deviation, km/s
	Seed    int64
}

// ObservationCull keeps halos with Lcat above the cutoff and then, if a goal
// count is set, draws exactly GoalNObj distinct halos without replacement,
// with probability proportional to Lcat (or log10 Lcat) normalised over the
// halos that passed the cut. Selected halos are kept in draw order.
func (c *Catalog) ObservationCull(cfg ObservationConfig, logger *slog.Logger) error {
	out, err := c.ObservationCulled(cfg, logger)
	if err != nil {
		return err
	}
	*c = *out
	return nil
}

// ObservationCulled is ObservationCull returning a new catalog. The
// receiver is left untouched.
func (c *Catalog) ObservationCulled(cfg ObservationConfig, logger *slog.Logger) (*Catalog, error) {
	if cfg.GoalNObj > 0 && cfg.Weight != WeightLinear && cfg.Weight != WeightLog {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWeight, cfg.Weight)
	}
	out, err := c.AttrCut(ColLcat, cfg.LcatCutoff, math.Inf(1))
	if err != nil {
		return nil, err
	}

	if cfg.GoalNObj > 0 {
		keep, err := out.weightedDraw(cfg)
		if err != nil {
			return nil, err
		}
		if err := out.IndexInPlace(keep); err != nil {
			return nil, err
		}
	}

	logger.Debug("halos remain after observability cuts", "remaining", out.N())
	return out, nil
}

// selectionWeights returns the normalised selection probabilities.
func (c *Catalog) selectionWeights(weight string) ([]float64, error) {
	w := make([]float64, len(c.Lcat))
	for i, l := range c.Lcat {
		switch weight {
		case WeightLinear:
			w[i] = l
		case WeightLog:
			w[i] = math.Log10(l)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownWeight, weight)
		}
		if w[i] < 0 || math.IsNaN(w[i]) || math.IsInf(w[i], 0) {
			return nil, fmt.Errorf("%w: halo %d has weight %g", ErrBadWeights, i, w[i])
		}
	}
	sum := floats.Sum(w)
	if sum <= 0 {
		return nil, fmt.Errorf("%w: weights sum to %g", ErrBadWeights, sum)
	}
	floats.Scale(1/sum, w)
	return w, nil
}

func (c *Catalog) weightedDraw(cfg ObservationConfig) ([]int, error) {
	if cfg.GoalNObj > c.N() {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrTooFewHalos, cfg.GoalNObj, c.N())
	}
	w, err := c.selectionWeights(cfg.Weight)
	if err != nil {
		return nil, err
	}

	sampler := sampleuv.NewWeighted(w, scatter.NewSource(cfg.Seed))
	keep := make([]int, 0, cfg.GoalNObj)
	for len(keep) < cfg.GoalNObj {
		i, ok := sampler.Take()
		if !ok {
			return nil, fmt.Errorf("%w: only %d halos have non-zero weight", ErrBadWeights, len(keep))
		}
		keep = append(keep, i)
	}
	return keep, nil
}

// OffsetVelocities draws a Gaussian velocity offset for every catalog object
// and stores the redshift it would be observed at in ZCat:
//
//	1+z_cat = (1+z)(1+z_pec),  1+z_pec = sqrt((1+β)/(1-β)),  β = dv/c
func (c *Catalog) OffsetVelocities(cfg OffsetConfig) error {
	if c.Lcat == nil {
		return &ColumnError{Column: ColLcat, Reason: "catalog luminosities are required before offsetting velocities"}
	}
	if err := c.Validate(); err != nil {
		return err
	}

	dv := distuv.Normal{Mu: cfg.Offset, Sigma: cfg.Scatter, Src: scatter.NewSource(cfg.Seed)}
	zcat := make([]float64, len(c.Lcat))
	for i := range zcat {
		beta := dv.Rand() / cosmo.SpeedOfLight
		zpec := math.Sqrt((1+beta)/(1-beta)) - 1
		zcat[i] = (1+c.Redshift[i])*(1+zpec) - 1
	}
	c.ZCat = zcat
	return nil
}
