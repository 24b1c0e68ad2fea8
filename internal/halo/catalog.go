// Package halo holds the simulated halo catalog and the structural
// operations on it: culling to a survey volume, attribute and index cuts,
// canonical mass ordering, observational down-sampling, and the velocity
// fields used for line broadening and catalog redshifts.
//
// A Catalog is a struct of co-indexed columns. Every operation that changes
// which halos are present applies the same index transform to every column
// at once, so position i always refers to the same halo in every column.
// A Catalog is not safe for concurrent mutation.
package halo

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
)

// Column names a per-halo field.
type Column string

const (
	ColM               Column = "M"
	ColX               Column = "x_pos"
	ColY               Column = "y_pos"
	ColZ               Column = "z_pos"
	ColVX              Column = "vx"
	ColVY              Column = "vy"
	ColVZ              Column = "vz"
	ColChi             Column = "chi"
	ColRA              Column = "ra"
	ColDec             Column = "dec"
	ColRedshift        Column = "redshift"
	ColZFormation      Column = "zformation"
	ColSFR             Column = "sfr"
	ColLco             Column = "Lco"
	ColLcat            Column = "Lcat"
	ColScatterlessLco  Column = "scatterless_Lco"
	ColScatterlessLcat Column = "scatterless_Lcat"
	ColVBroaden        Column = "vbroaden"
	ColSinI            Column = "sin_i"
	ColVVir            Column = "vvir"
	ColZCat            Column = "zcat"
)

// Catalog is a catalog of N halos. A nil column has not been computed yet.
type Catalog struct {
	M          []float64 // Msun
	X, Y, Z    []float64 // comoving Mpc
	VX, VY, VZ []float64 // km/s
	Chi        []float64 // comoving distance, Mpc
	RA, Dec    []float64 // degrees, relative to the field centre
	Redshift   []float64 // observed, including peculiar velocity
	ZFormation []float64

	SFR             []float64 // Msun/yr
	Lco             []float64 // Lsun
	Lcat            []float64 // Lsun
	ScatterlessLco  []float64
	ScatterlessLcat []float64

	VBroaden []float64 // km/s
	SinI     []float64
	VVir     []float64 // km/s
	ZCat     []float64 // catalog redshift including the velocity offset

	// Metadata; never touched by index transforms.
	Cosmo         *cosmo.Cosmology
	Cov           *mat.SymDense // log-space covariance of the joint scatter
	CatalogCoeffs []float64     // resolved catalog-model coefficients
}

type columnRef struct {
	name Column
	ptr  *[]float64
}

// columns lists every per-halo field. It is the single definition of the
// per-halo schema.
func (c *Catalog) columns() []columnRef {
	return []columnRef{
		{ColM, &c.M},
		{ColX, &c.X},
		{ColY, &c.Y},
		{ColZ, &c.Z},
		{ColVX, &c.VX},
		{ColVY, &c.VY},
		{ColVZ, &c.VZ},
		{ColChi, &c.Chi},
		{ColRA, &c.RA},
		{ColDec, &c.Dec},
		{ColRedshift, &c.Redshift},
		{ColZFormation, &c.ZFormation},
		{ColSFR, &c.SFR},
		{ColLco, &c.Lco},
		{ColLcat, &c.Lcat},
		{ColScatterlessLco, &c.ScatterlessLco},
		{ColScatterlessLcat, &c.ScatterlessLcat},
		{ColVBroaden, &c.VBroaden},
		{ColSinI, &c.SinI},
		{ColVVir, &c.VVir},
		{ColZCat, &c.ZCat},
	}
}

// New builds a catalog from simulation positions, velocities and redshifts,
// deriving the comoving distance and the angular position relative to a
// field centred at (cenX, cenY) degrees.
func New(cm *cosmo.Cosmology, m, x, y, z, vx, vy, vz, redshift, zform []float64, cenX, cenY float64) (*Catalog, error) {
	c := &Catalog{
		M:          m,
		X:          x,
		Y:          y,
		Z:          z,
		VX:         vx,
		VY:         vy,
		VZ:         vz,
		Redshift:   redshift,
		ZFormation: zform,
		Cosmo:      cm,
	}
	n := len(m)
	c.Chi = make([]float64, n)
	c.RA = make([]float64, n)
	c.Dec = make([]float64, n)
	for _, col := range []struct {
		name Column
		v    []float64
	}{{ColX, x}, {ColY, y}, {ColZ, z}} {
		if len(col.v) != n {
			return nil, &LengthError{Column: col.name, Len: len(col.v), Want: n}
		}
	}
	for i := 0; i < n; i++ {
		c.Chi[i] = math.Sqrt(x[i]*x[i] + y[i]*y[i] + z[i]*z[i])
		c.RA[i] = math.Atan2(-x[i], z[i])*180/math.Pi - cenX
		c.Dec[i] = math.Asin(y[i]/c.Chi[i])*180/math.Pi - cenY
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// N returns the number of halos.
func (c *Catalog) N() int {
	return len(c.M)
}

// Column returns the named column, or an error if the name is unknown or the
// column has not been computed.
func (c *Catalog) Column(name Column) ([]float64, error) {
	for _, col := range c.columns() {
		if col.name == name {
			if *col.ptr == nil {
				return nil, &ColumnError{Column: name, Reason: "not computed"}
			}
			return *col.ptr, nil
		}
	}
	return nil, &ColumnError{Column: name, Reason: "unknown column"}
}

// Validate checks that every computed column has exactly N entries.
func (c *Catalog) Validate() error {
	n := c.N()
	for _, col := range c.columns() {
		if *col.ptr != nil && len(*col.ptr) != n {
			return &LengthError{Column: col.name, Len: len(*col.ptr), Want: n}
		}
	}
	return nil
}

// Copy returns a deep copy of the catalog. The cosmology is shared.
func (c *Catalog) Copy() *Catalog {
	out := &Catalog{Cosmo: c.Cosmo}
	if c.Cov != nil {
		out.Cov = mat.NewSymDense(c.Cov.SymmetricDim(), nil)
		out.Cov.CopySym(c.Cov)
	}
	if c.CatalogCoeffs != nil {
		out.CatalogCoeffs = append([]float64(nil), c.CatalogCoeffs...)
	}
	src := c.columns()
	for k, col := range out.columns() {
		if v := *src[k].ptr; v != nil {
			*col.ptr = append(make([]float64, 0, len(v)), v...)
		}
	}
	return out
}
