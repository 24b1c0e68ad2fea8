package halo

import (
	"log/slog"
	"math"

	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
)

// CullConfig describes the survey volume and mass range kept by Cull.
type CullConfig struct {
	MinMass    float64 // Msun, exclusive
	MassCutoff float64 // Msun, exclusive
	NuRest     float64 // rest frequency of the line
	NuI, NuF   float64 // observed band edges, same units as NuRest
	FovX, FovY float64 // degrees
}

// Window is the redshift range of the observed band.
type Window struct {
	ZMin, ZMax float64
}

// Window converts the observed band to a redshift range, ordering the
// bounds so that ZMin <= ZMax whichever way the band is specified.
func (cfg CullConfig) Window() Window {
	zi := cosmo.FreqToZ(cfg.NuRest, cfg.NuI)
	zf := cosmo.FreqToZ(cfg.NuRest, cfg.NuF)
	if zi > zf {
		zi, zf = zf, zi
	}
	return Window{ZMin: zi, ZMax: zf}
}

// Keep reports whether a halo with the given mass, redshift and angular
// position survives the cull.
func (cfg CullConfig) Keep(w Window, m, z, ra, dec float64) bool {
	return m > cfg.MinMass &&
		m < cfg.MassCutoff &&
		z >= w.ZMin &&
		z <= w.ZMax &&
		math.Abs(ra) <= cfg.FovX/2 &&
		math.Abs(dec) <= cfg.FovY/2
}

// Cull keeps the halos inside the mass range, redshift window and field of
// view, then sorts them by descending mass. The mass ordering makes a later,
// stricter mass cut a prefix of the catalog and keeps the per-position
// scatter draws of the surviving halos stable across mass cuts.
func (c *Catalog) Cull(cfg CullConfig, logger *slog.Logger) (Window, error) {
	w := cfg.Window()
	for _, name := range []Column{ColM, ColRedshift, ColRA, ColDec} {
		if _, err := c.Column(name); err != nil {
			return w, err
		}
	}
	if err := c.Validate(); err != nil {
		return w, err
	}

	keep := make([]int, 0, c.N())
	for i := range c.M {
		if cfg.Keep(w, c.M[i], c.Redshift[i], c.RA[i], c.Dec[i]) {
			keep = append(keep, i)
		}
	}
	if err := c.IndexInPlace(keep); err != nil {
		return w, err
	}
	logger.Debug("halos remain after mass/map cut", "remaining", c.N(), "z_min", w.ZMin, "z_max", w.ZMax)

	return w, c.SortByMass()
}
