package scatter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestIndependent_NonPositiveDexIsIdentity(t *testing.T) {
	in := []float64{1, 2, 3, 0, -4}
	for _, dex := range []float64{0, -0.1, -5} {
		out := Independent(in, dex, 42)
		require.Equal(t, in, out)
		// Same backing array: nothing was copied or drawn.
		assert.Same(t, &in[0], &out[0])
	}
}

func TestIndependent_MeanPreserving(t *testing.T) {
	for _, dex := range []float64{0.1, 0.3} {
		out := Independent(ones(200000), dex, 7)
		assert.InDelta(t, 1.0, stat.Mean(out, nil), 0.01, "dex=%g", dex)
	}
}

func TestIndependent_Deterministic(t *testing.T) {
	in := []float64{1e6, 2e7, 3e8, 4e9}
	a := Independent(in, 0.4, 12345)
	b := Independent(in, 0.4, 12345)
	c := Independent(in, 0.4, 12346)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// The input is never modified.
	assert.Equal(t, []float64{1e6, 2e7, 3e8, 4e9}, in)
}

func TestIndependent_NonPositiveValuesUntouched(t *testing.T) {
	in := []float64{0, 5, -3, 5}
	out := Independent(in, 0.5, 3)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, -3.0, out[2])
	assert.NotEqual(t, 5.0, out[1])
}

func TestIndependent_PositionStable(t *testing.T) {
	// Zeroing an element elsewhere must not change the factor drawn for
	// another position.
	a := Independent([]float64{1, 1, 1}, 0.3, 9)
	b := Independent([]float64{1, 0, 1}, 0.3, 9)
	assert.Equal(t, a[0], b[0])
	assert.Equal(t, a[2], b[2])
}

func TestIndependentPerElement(t *testing.T) {
	in := []float64{1, 1, 1, 0}
	dex := []float64{0, 0.3, -1, 0.3}
	out := IndependentPerElement(in, dex, 4)
	assert.Equal(t, 1.0, out[0])
	assert.NotEqual(t, 1.0, out[1])
	assert.Equal(t, 1.0, out[2])
	assert.Equal(t, 0.0, out[3])

	big := IndependentPerElement(ones(100000), func() []float64 {
		d := make([]float64, 100000)
		for i := range d {
			d[i] = 0.25
		}
		return d
	}(), 4)
	assert.InDelta(t, 1.0, stat.Mean(big, nil), 0.01)
}

func logDeviations(f []float64, dex float64) []float64 {
	s := Sigma(dex)
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = (math.Log(v) - meanOffset(s)) / s
	}
	return out
}

func TestCorrelated(t *testing.T) {
	const n = 100000

	t.Run("uncorrelated", func(t *testing.T) {
		j, err := Correlated(n, 0, 0.3, 0.5, 12345)
		require.NoError(t, err)
		require.True(t, j.Applied)
		r := stat.Correlation(logDeviations(j.A, 0.3), logDeviations(j.B, 0.5), nil)
		assert.InDelta(t, 0, r, 0.02)
		assert.InDelta(t, 1, stat.Mean(j.A, nil), 0.01)
		assert.InDelta(t, 1, stat.Mean(j.B, nil), 0.02)
	})

	t.Run("partially correlated", func(t *testing.T) {
		j, err := Correlated(n, 0.6, 0.3, 0.3, 1)
		require.NoError(t, err)
		r := stat.Correlation(logDeviations(j.A, 0.3), logDeviations(j.B, 0.3), nil)
		assert.InDelta(t, 0.6, r, 0.02)
	})

	for _, rho := range []float64{1, -1} {
		j, err := Correlated(1000, rho, 0.2, 0.4, 99)
		require.NoError(t, err)
		da, db := logDeviations(j.A, 0.2), logDeviations(j.B, 0.4)
		for i := range da {
			require.InDelta(t, rho*da[i], db[i], 1e-6, "rho=%g i=%d", rho, i)
		}
	}
}

func TestCorrelated_Deterministic(t *testing.T) {
	a, err := Correlated(50, 0.3, 0.2, 0.2, 5)
	require.NoError(t, err)
	b, err := Correlated(50, 0.3, 0.2, 0.2, 5)
	require.NoError(t, err)
	assert.Equal(t, a.A, b.A)
	assert.Equal(t, a.B, b.B)
}

func TestCorrelated_NonPositiveDexIsNoOp(t *testing.T) {
	for _, dex := range [][2]float64{{0, 0.3}, {0.3, -1}, {0, 0}} {
		j, err := Correlated(4, 0.5, dex[0], dex[1], 1)
		require.NoError(t, err)
		assert.False(t, j.Applied)
		assert.Equal(t, ones(4), j.A)
		assert.Equal(t, ones(4), j.B)
		require.NotNil(t, j.Cov)
	}
}

func TestCorrelated_BadRho(t *testing.T) {
	for _, rho := range []float64{1.01, -2, math.NaN()} {
		_, err := Correlated(3, rho, 0.3, 0.3, 1)
		assert.ErrorIs(t, err, ErrCorrelation)
	}
}

func TestCovariance(t *testing.T) {
	cov := Covariance(0.5, 1, 2)
	sa, sb := math.Ln10, 2*math.Ln10
	assert.InDelta(t, sa*sa, cov.At(0, 0), 1e-12)
	assert.InDelta(t, sb*sb, cov.At(1, 1), 1e-12)
	assert.InDelta(t, 0.5*sa*sb, cov.At(0, 1), 1e-12)
	assert.InDelta(t, cov.At(0, 1), cov.At(1, 0), 0)
}

func TestJointApply(t *testing.T) {
	j := Joint{A: []float64{2, 3}, B: []float64{0.5, 4}}
	a, b := []float64{1, 10}, []float64{8, 1}
	j.Apply(a, b)
	assert.Equal(t, []float64{2, 30}, a)
	assert.Equal(t, []float64{4, 4}, b)
}
