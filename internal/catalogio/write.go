package catalogio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
)

// Output column names.
const (
	colRA    = "ra"
	colDec   = "dec"
	colZ     = "z"
	colM     = "M"
	colLco   = "Lco"
	colLcat  = "Lcat"
	colVHalo = "vhalo"
)

// missingVelocity fills vhalo when broadening velocities were not computed.
const missingVelocity = -99.0

// WriteOptions controls which halos and columns Write emits.
type WriteOptions struct {
	// Trim keeps only the first Trim halos when positive.
	Trim int
	// All writes positions, velocities and every computed column instead of
	// the short ra, dec, z, M, Lco, Lcat, vhalo set.
	All bool
}

type outColumn struct {
	name string
	v    []float64
}

// Write writes cat as CSV. Columns that have not been computed are left out,
// except vhalo, which is filled with -99.
func Write(w io.Writer, cat *halo.Catalog, opts WriteOptions) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	n := cat.N()
	if opts.Trim > 0 && opts.Trim < n {
		n = opts.Trim
	}

	vhalo := cat.VBroaden
	if vhalo == nil {
		vhalo = make([]float64, cat.N())
		for i := range vhalo {
			vhalo[i] = missingVelocity
		}
	}

	cols := []outColumn{
		{colRA, cat.RA},
		{colDec, cat.Dec},
		{colZ, cat.Redshift},
		{colM, cat.M},
		{colLco, cat.Lco},
		{colLcat, cat.Lcat},
		{colVHalo, vhalo},
	}
	if opts.All {
		cols = append(cols,
			outColumn{string(halo.ColX), cat.X},
			outColumn{string(halo.ColY), cat.Y},
			outColumn{string(halo.ColZ), cat.Z},
			outColumn{string(halo.ColVX), cat.VX},
			outColumn{string(halo.ColVY), cat.VY},
			outColumn{string(halo.ColVZ), cat.VZ},
			outColumn{string(halo.ColChi), cat.Chi},
			outColumn{string(halo.ColZFormation), cat.ZFormation},
			outColumn{string(halo.ColSFR), cat.SFR},
			outColumn{string(halo.ColScatterlessLco), cat.ScatterlessLco},
			outColumn{string(halo.ColScatterlessLcat), cat.ScatterlessLcat},
			outColumn{string(halo.ColSinI), cat.SinI},
			outColumn{string(halo.ColVVir), cat.VVir},
			outColumn{string(halo.ColZCat), cat.ZCat},
		)
	}
	present := cols[:0]
	for _, c := range cols {
		if c.v != nil {
			present = append(present, c)
		}
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(present))
	for k, c := range present {
		header[k] = c.name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("catalogio: writing header: %w", err)
	}
	rec := make([]string, len(present))
	for i := 0; i < n; i++ {
		for k, c := range present {
			rec[k] = strconv.FormatFloat(c.v[i], 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("catalogio: writing halo %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
