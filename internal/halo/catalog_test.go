package halo

import (
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneydunne/joint-limlam-mocker/internal/cosmo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testCosmo() *cosmo.Cosmology {
	return cosmo.FromLittleH(0.7, 0.286, 0.047, 0.714, 0.96, 0.82)
}

// smallCatalog has five halos with distinct masses and a computed SFR column.
func smallCatalog() *Catalog {
	return &Catalog{
		M:        []float64{1e12, 5e11, 2e13, 1e10, 3e12},
		Redshift: []float64{2.5, 2.6, 3.0, 2.8, 4.0},
		RA:       []float64{0, 0.5, -0.9, 0, 0},
		Dec:      []float64{0, 0.1, 0.2, 0, 0},
		SFR:      []float64{1, 2, 3, 4, 5},
		Cosmo:    testCosmo(),
	}
}

func TestNew(t *testing.T) {
	c, err := New(testCosmo(),
		[]float64{1e12, 2e12},
		[]float64{0, 0}, []float64{0, 10}, []float64{100, 100},
		[]float64{0, 0}, []float64{0, 0}, []float64{0, 0},
		[]float64{1, 1}, []float64{2, 2},
		0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, c.N())

	assert.InDelta(t, 100, c.Chi[0], 1e-12)
	assert.InDelta(t, 0, c.RA[0], 1e-12)
	assert.InDelta(t, 0, c.Dec[0], 1e-12)
	assert.InDelta(t, math.Sqrt(100*100+10*10), c.Chi[1], 1e-9)
	assert.InDelta(t, math.Asin(10/c.Chi[1])*180/math.Pi, c.Dec[1], 1e-9)
	assert.Nil(t, c.Lco, "luminosities start uncomputed")
}

func TestNew_LengthMismatch(t *testing.T) {
	_, err := New(testCosmo(),
		[]float64{1e12, 2e12},
		[]float64{0}, []float64{0, 0}, []float64{100, 100},
		nil, nil, nil, []float64{1, 1}, nil, 0, 0)

	var le *LengthError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ColX, le.Column)
}

func TestValidate(t *testing.T) {
	c := smallCatalog()
	require.NoError(t, c.Validate())

	c.Lco = []float64{1, 2}
	var le *LengthError
	require.ErrorAs(t, c.Validate(), &le)
	assert.Equal(t, ColLco, le.Column)
	assert.Equal(t, 2, le.Len)
	assert.Equal(t, 5, le.Want)
}

func TestColumn(t *testing.T) {
	c := smallCatalog()

	v, err := c.Column(ColSFR)
	require.NoError(t, err)
	assert.Equal(t, c.SFR, v)

	var ce *ColumnError
	_, err = c.Column(ColLcat)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ColLcat, ce.Column)

	_, err = c.Column("nope")
	require.ErrorAs(t, err, &ce)
}

func TestCopyIsDeep(t *testing.T) {
	c := smallCatalog()
	c.CatalogCoeffs = []float64{1, 2}
	out := c.Copy()

	out.M[0] = -1
	out.CatalogCoeffs[0] = -1
	assert.Equal(t, 1e12, c.M[0])
	assert.Equal(t, 1.0, c.CatalogCoeffs[0])
	assert.Same(t, c.Cosmo, out.Cosmo)
	assert.Nil(t, out.Lco)
}

func TestIndex(t *testing.T) {
	tests := []struct {
		name string
		idx  []int
		want []float64 // resulting masses
	}{
		{"permutation", []int{4, 0, 2, 1, 3}, []float64{3e12, 1e12, 2e13, 5e11, 1e10}},
		{"subset", []int{2, 0}, []float64{2e13, 1e12}},
		{"repeat", []int{1, 1}, []float64{5e11, 5e11}},
		{"empty", []int{}, []float64{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := smallCatalog()
			out, err := c.Index(tc.idx)
			require.NoError(t, err)

			assert.Equal(t, tc.want, out.M)
			assert.Equal(t, len(tc.idx), out.N())
			require.NotNil(t, out.SFR)
			assert.Len(t, out.SFR, len(tc.idx))
			assert.Nil(t, out.Lco)
			assert.Equal(t, 5, c.N(), "copy form leaves the receiver alone")
		})
	}
}

func TestIndexInPlace_CoIndexed(t *testing.T) {
	c := smallCatalog()
	require.NoError(t, c.IndexInPlace([]int{3, 1}))

	assert.Equal(t, []float64{1e10, 5e11}, c.M)
	assert.Equal(t, []float64{2.8, 2.6}, c.Redshift)
	assert.Equal(t, []float64{4, 2}, c.SFR)
}

func TestIndexInPlace_OutOfRange(t *testing.T) {
	c := smallCatalog()

	var ie *IndexError
	require.ErrorAs(t, c.IndexInPlace([]int{0, 5}), &ie)
	assert.Equal(t, 5, ie.Index)
	require.ErrorAs(t, c.IndexInPlace([]int{-1}), &ie)
	assert.Equal(t, 5, c.N(), "catalog untouched on error")
}

func TestAttrCut(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		want     []float64
	}{
		{"half open", 1, 3, []float64{2, 3}},
		{"all", math.Inf(-1), math.Inf(1), []float64{1, 2, 3, 4, 5}},
		{"none", 5, 10, []float64{}},
		{"upper inclusive", 4, 5, []float64{5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := smallCatalog()
			out, err := c.AttrCut(ColSFR, tc.min, tc.max)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.SFR)
		})
	}
}

func TestAttrCut_NaNNeverKept(t *testing.T) {
	c := smallCatalog()
	c.SFR[2] = math.NaN()
	require.NoError(t, c.AttrCutInPlace(ColSFR, math.Inf(-1), math.Inf(1)))
	assert.Equal(t, 4, c.N())
}

func TestAttrCut_MissingColumn(t *testing.T) {
	c := smallCatalog()
	var ce *ColumnError
	require.ErrorAs(t, c.AttrCutInPlace(ColLco, 0, 1), &ce)
}

func TestMassCut(t *testing.T) {
	c := smallCatalog()
	out, err := c.MassCut(1e11, 1e13)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{1e12, 5e11, 3e12}, out.M)
}

func TestSortByMass(t *testing.T) {
	c := smallCatalog()
	c.M[1] = 1e12 // tie with halo 0
	require.NoError(t, c.SortByMass())

	assert.True(t, c.IsMassOrdered())
	assert.Equal(t, []float64{2e13, 3e12, 1e12, 1e12, 1e10}, c.M)
	assert.Equal(t, []float64{3, 5, 1, 2, 4}, c.SFR, "ties keep their prior order")
}

func cullConfig() CullConfig {
	return CullConfig{
		MinMass:    1e11,
		MassCutoff: 1e14,
		NuRest:     115.27,
		NuI:        34,
		NuF:        26,
		FovX:       2,
		FovY:       2,
	}
}

func TestCullConfig_Window(t *testing.T) {
	cfg := cullConfig()
	w := cfg.Window()
	assert.InDelta(t, 115.27/34-1, w.ZMin, 1e-12)
	assert.InDelta(t, 115.27/26-1, w.ZMax, 1e-12)

	cfg.NuI, cfg.NuF = cfg.NuF, cfg.NuI
	assert.Equal(t, w, cfg.Window(), "band order does not matter")
}

func TestCull(t *testing.T) {
	rows := []struct {
		name    string
		m, z    float64
		ra, dec float64
		keep    bool
	}{
		{"inside", 1e12, 2.5, 0, 0, true},
		{"inside offset", 5e11, 2.6, 0.5, 0.1, true},
		{"inside massive", 2e13, 3.0, -0.9, 0.2, true},
		{"mass too low", 1e10, 2.8, 0, 0, false},
		{"mass at lower bound", 1e11, 2.8, 0, 0, false},
		{"mass too high", 5e14, 3.0, 0, 0, false},
		{"redshift above band", 3e12, 4.0, 0, 0, false},
		{"redshift below band", 1e12, 2.0, 0, 0, false},
		{"ra outside field", 4e12, 3.0, 1.5, 0, false},
		{"dec outside field", 2e12, 3.0, 0, -1.2, false},
	}

	c := &Catalog{Cosmo: testCosmo()}
	for i, r := range rows {
		c.M = append(c.M, r.m)
		c.Redshift = append(c.Redshift, r.z)
		c.RA = append(c.RA, r.ra)
		c.Dec = append(c.Dec, r.dec)
		c.SFR = append(c.SFR, float64(i))
	}

	cfg := cullConfig()
	w, err := c.Copy().Cull(cfg, testLogger())
	require.NoError(t, err)
	assert.Less(t, w.ZMin, w.ZMax)

	// Every dropped row fails a predicate and every kept row passes them all.
	for _, r := range rows {
		assert.Equal(t, r.keep, cfg.Keep(w, r.m, r.z, r.ra, r.dec), r.name)
	}

	_, err = c.Cull(cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []float64{2e13, 1e12, 5e11}, c.M)
	assert.Equal(t, []float64{2, 0, 1}, c.SFR)
	assert.True(t, c.IsMassOrdered())
	for i := range c.M {
		assert.True(t, cfg.Keep(w, c.M[i], c.Redshift[i], c.RA[i], c.Dec[i]))
	}
}

func TestCull_StricterMassCutIsPrefix(t *testing.T) {
	c := smallCatalog()
	_, err := c.Cull(cullConfig(), testLogger())
	require.NoError(t, err)

	cut, err := c.MassCut(8e11, math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, c.M[:cut.N()], cut.M)
}

func TestCull_MissingColumn(t *testing.T) {
	c := smallCatalog()
	c.RA = nil
	_, err := c.Cull(cullConfig(), testLogger())

	var ce *ColumnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ColRA, ce.Column)
}
