// Package catalogio reads halo catalogs and writes the luminosity catalogs
// the pipeline produces. Catalogs are CSV files with a header row; the halo
// input also carries its cosmology on a "# cosmo" comment line:
//
//	# cosmo h=0.7,Omega_M=0.286,Omega_B=0.047,Omega_L=0.714,ns=0.96,sigma8=0.82
//	M,x,y,z,vx,vy,vz,zhalo,zform
//	1.2e12,10.5,-3.2,4012.7,120,-40,33,2.61,4.8
package catalogio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
)

const cosmoPrefix = "# cosmo"

// Sanity limits on loaded catalogs.
const (
	MaxMass     = 1e17 // Msun, exclusive
	MaxRedshift = 4.0  // exclusive; the SFR tabulation ends here
)

var (
	// ErrTooMassive is returned when a halo is at or above MaxMass.
	ErrTooMassive = errors.New("catalogio: halos seem too massive")

	// ErrRedshiftRange is returned when a halo is at or above MaxRedshift.
	ErrRedshiftRange = errors.New("catalogio: halo redshift beyond the supported range")
)

// table is a parsed CSV body keyed by header name.
type table struct {
	cols map[string][]float64
	rows int
}

func (t *table) column(name string, required bool) ([]float64, error) {
	v, ok := t.cols[name]
	if !ok && required {
		return nil, fmt.Errorf("catalogio: missing column %q", name)
	}
	return v, nil
}

func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalogio: reading header: %w", err)
	}
	t := &table{cols: make(map[string][]float64, len(header))}
	for _, h := range header {
		t.cols[strings.TrimSpace(h)] = nil
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalogio: %w", err)
		}
		line, _ := cr.FieldPos(0)
		for k, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("catalogio: line %d column %q: %w", line, header[k], err)
			}
			name := strings.TrimSpace(header[k])
			t.cols[name] = append(t.cols[name], v)
		}
		t.rows++
	}
	for name := range t.cols {
		if t.cols[name] == nil {
			t.cols[name] = []float64{}
		}
	}
	return t, nil
}

// parseCosmo parses the key=value list of a "# cosmo" line.
func parseCosmo(line string) (*cosmo.Cosmology, float64, float64, error) {
	vals := map[string]float64{}
	for _, kv := range strings.Split(strings.TrimSpace(strings.TrimPrefix(line, cosmoPrefix)), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return nil, 0, 0, fmt.Errorf("catalogio: malformed cosmology entry %q", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("catalogio: cosmology %s: %w", k, err)
		}
		vals[strings.TrimSpace(k)] = f
	}
	for _, k := range []string{"h", "Omega_M"} {
		if _, ok := vals[k]; !ok {
			return nil, 0, 0, fmt.Errorf("catalogio: cosmology header has no %s", k)
		}
	}
	cm := cosmo.FromLittleH(vals["h"], vals["Omega_M"], vals["Omega_B"], vals["Omega_L"], vals["ns"], vals["sigma8"])
	return cm, vals["cen_x_fov"], vals["cen_y_fov"], nil
}

// Read loads a halo catalog and derives comoving distances and sky
// positions. Velocity and formation-redshift columns are optional.
func Read(r io.Reader) (*halo.Catalog, error) {
	br := bufio.NewReader(r)

	var cm *cosmo.Cosmology
	var cenX, cenY float64
	for {
		b, err := br.Peek(1)
		if err != nil || b[0] != '#' {
			break
		}
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("catalogio: %w", err)
		}
		if strings.HasPrefix(line, cosmoPrefix) {
			if cm, cenX, cenY, err = parseCosmo(line); err != nil {
				return nil, err
			}
		}
	}
	if cm == nil {
		return nil, fmt.Errorf("catalogio: %w", halo.ErrNoCosmology)
	}

	t, err := readTable(br)
	if err != nil {
		return nil, err
	}
	cols := make(map[string][]float64)
	for _, name := range []string{"M", "x", "y", "z", "zhalo"} {
		if cols[name], err = t.column(name, true); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{"vx", "vy", "vz", "zform"} {
		cols[name], _ = t.column(name, false)
	}

	cat, err := halo.New(cm, cols["M"], cols["x"], cols["y"], cols["z"],
		cols["vx"], cols["vy"], cols["vz"], cols["zhalo"], cols["zform"], cenX, cenY)
	if err != nil {
		return nil, err
	}
	for i := range cat.M {
		if !(cat.M[i] < MaxMass) {
			return nil, fmt.Errorf("%w: halo %d has M = %g", ErrTooMassive, i, cat.M[i])
		}
		if !(cat.Redshift[i] < MaxRedshift) {
			return nil, fmt.Errorf("%w: halo %d has z = %g", ErrRedshiftRange, i, cat.Redshift[i])
		}
	}
	return cat, nil
}

// ReadLuminosities loads Lco, Lcat and broadening velocities written by an
// earlier run onto cat. The file must describe exactly cat's halos.
// Velocities are only taken if they were computed (first entry positive).
func ReadLuminosities(r io.Reader, cat *halo.Catalog) error {
	t, err := readTable(r)
	if err != nil {
		return err
	}
	if t.rows != cat.N() {
		return &halo.LengthError{Column: halo.ColLco, Len: t.rows, Want: cat.N()}
	}
	lco, err := t.column(colLco, true)
	if err != nil {
		return err
	}
	lcat, _ := t.column(colLcat, false)
	vhalo, _ := t.column(colVHalo, false)

	cat.Lco = lco
	if lcat != nil {
		cat.Lcat = lcat
	}
	if len(vhalo) > 0 && vhalo[0] > 0 {
		cat.VBroaden = vhalo
	}
	return nil
}
