package sfr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// trueLogSFR is the surface the synthetic tables are drawn from. It is linear
// in both axes so the extrapolation surface can reproduce it exactly.
func trueLogSFR(logM, logZp1 float64) float64 {
	return 0.8*(logM-12) + 1.5*logZp1
}

// synthTable renders a mass-major table. Cells listed in sentinel (keyed by
// "i,j") get the Sentinel log SFR.
func synthTable(sentinel map[string]bool) string {
	var b strings.Builder
	b.WriteString("# 1+z logM logSFR logMstar\n")
	for i := 0; i <= 10; i++ {
		logM := 10 + 0.5*float64(i)
		for j := 0; j <= 8; j++ {
			zp1 := 1 + 0.5*float64(j)
			ls := trueLogSFR(logM, math.Log10(zp1))
			if sentinel[fmt.Sprintf("%d,%d", i, j)] {
				ls = Sentinel
			}
			fmt.Fprintf(&b, "%g %g %.12f %g\n", zp1, logM, ls, logM-2)
		}
	}
	return b.String()
}

func mustBuild(t *testing.T, text string, extrapolate bool) *Table {
	t.Helper()
	rows, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	tab, err := Build(rows, extrapolate)
	require.NoError(t, err)
	return tab
}

func TestParse(t *testing.T) {
	rows, err := Parse(strings.NewReader("# header\n\n2 12 0.5 10\n3.0 12.5 -1000 10.2 extra\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{ZPlus1: 2, LogMass: 12, LogSFR: 0.5, LogStellarM: 10}, rows[0])
	assert.Equal(t, Sentinel, rows[1].LogSFR)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "# nothing\n"},
		{"short row", "2 12 0.5\n"},
		{"not a number", "2 twelve 0.5 10\n"},
		{"non-positive 1+z", "0 12 0.5 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestBuild_GridShape(t *testing.T) {
	tab := mustBuild(t, synthTable(nil), false)
	logM, logZp1 := tab.Axes()
	assert.Len(t, logM, 11)
	assert.Len(t, logZp1, 9)
	assert.InDelta(t, 10, logM[0], 0)
	assert.InDelta(t, math.Log10(5), logZp1[8], 1e-12)
}

func TestBuild_IncompleteGrid(t *testing.T) {
	_, err := Build([]Row{
		{ZPlus1: 1, LogMass: 10}, {ZPlus1: 2, LogMass: 10},
		{ZPlus1: 1, LogMass: 11},
	}, false)
	assert.Error(t, err)

	_, err = Build([]Row{
		{ZPlus1: 1, LogMass: 10}, {ZPlus1: 2, LogMass: 10},
		{ZPlus1: 1, LogMass: 11}, {ZPlus1: 1, LogMass: 11},
	}, false)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	tab := mustBuild(t, synthTable(nil), false)

	t.Run("nodes are exact", func(t *testing.T) {
		for _, lm := range []float64{10, 11.5, 15} {
			for _, zp1 := range []float64{1, 2.5, 5} {
				lz := math.Log10(zp1)
				want := math.Pow(10, trueLogSFR(lm, lz))
				assert.InEpsilon(t, want, tab.Evaluate(lm, lz), 1e-9)
			}
		}
	})

	t.Run("bilinear between nodes", func(t *testing.T) {
		lz0, lz1 := math.Log10(2), math.Log10(2.5)
		corner := func(lm, lz float64) float64 { return math.Pow(10, trueLogSFR(lm, lz)) }
		want := (corner(12, lz0) + corner(12.5, lz0) + corner(12, lz1) + corner(12.5, lz1)) / 4
		got := tab.Evaluate(12.25, (lz0+lz1)/2)
		assert.InEpsilon(t, want, got, 1e-9)
	})

	t.Run("clamped outside grid", func(t *testing.T) {
		edge := tab.Evaluate(15, math.Log10(5))
		assert.Equal(t, edge, tab.Evaluate(17, 2))
		low := tab.Evaluate(10, 0)
		assert.Equal(t, low, tab.Evaluate(8, -1))
	})

	t.Run("halo arrays", func(t *testing.T) {
		got := tab.EvaluateHalos([]float64{1e12, 1e13}, []float64{1, 3})
		assert.InEpsilon(t, tab.Evaluate(12, math.Log10(2)), got[0], 1e-12)
		assert.InEpsilon(t, tab.Evaluate(13, math.Log10(4)), got[1], 1e-12)
	})
}

func TestBuild_Extrapolation(t *testing.T) {
	bad := map[string]bool{"0,0": true, "0,1": true, "1,0": true, "10,8": true, "5,4": true}
	text := synthTable(bad)

	plain := mustBuild(t, text, false)
	// Left alone, sentinel cells hold 10^-1000, which underflows to zero.
	assert.Equal(t, 0.0, plain.sfr[0][0])
	assert.Equal(t, 0.0, plain.sfr[10][8])

	ext := mustBuild(t, text, true)
	for key := range bad {
		var i, j int
		_, err := fmt.Sscanf(key, "%d,%d", &i, &j)
		require.NoError(t, err)
		want := math.Pow(10, trueLogSFR(ext.logM[i], ext.logZp1[j]))
		assert.InEpsilon(t, want, ext.sfr[i][j], 1e-6, "cell %s", key)
	}
	// Well-defined cells are never overwritten.
	assert.Equal(t, plain.sfr[3][3], ext.sfr[3][3])
}

type countingOpener struct {
	calls atomic.Int32
	text  string
	fail  bool
}

func (o *countingOpener) open() (io.ReadCloser, error) {
	o.calls.Add(1)
	if o.fail {
		return nil, errors.New("no such table")
	}
	return io.NopCloser(strings.NewReader(o.text)), nil
}

func TestCache_BuildsOnce(t *testing.T) {
	op := &countingOpener{text: synthTable(nil)}
	c := NewCache(op.open, testLogger())

	var wg sync.WaitGroup
	tables := make([]*Table, 16)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tab, err := c.Get(i%2 == 0)
			assert.NoError(t, err)
			tables[i] = tab
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), op.calls.Load())
	for _, tab := range tables {
		assert.Same(t, tables[0], tab)
	}
}

func TestCache_FailureNotCached(t *testing.T) {
	op := &countingOpener{text: synthTable(nil), fail: true}
	c := NewCache(op.open, testLogger())

	_, err := c.Get(false)
	require.Error(t, err)

	op.fail = false
	tab, err := c.Get(false)
	require.NoError(t, err)
	require.NotNil(t, tab)
	assert.Equal(t, int32(2), op.calls.Load())
}

func TestStaticCache(t *testing.T) {
	tab := mustBuild(t, synthTable(nil), false)
	c := NewStaticCache(tab, testLogger())
	got, err := c.Get(true)
	require.NoError(t, err)
	assert.Same(t, tab, got)
}
