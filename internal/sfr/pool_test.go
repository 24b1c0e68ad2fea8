package sfr

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_MatchesSequential(t *testing.T) {
	tab := mustBuild(t, synthTable(nil), false)

	n := 3*chunkSize + 17
	mass := make([]float64, n)
	z := make([]float64, n)
	for i := range mass {
		mass[i] = math.Pow(10, 10+4*float64(i)/float64(n))
		z[i] = 2 + float64(i%100)/100
	}

	want := tab.EvaluateHalos(mass, z)
	for _, workers := range []int{0, 1, 4} {
		got, err := NewWorkerPool(workers, testLogger()).EvaluateHalos(context.Background(), tab, mass, z)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestWorkerPool_Empty(t *testing.T) {
	tab := mustBuild(t, synthTable(nil), false)
	got, err := NewWorkerPool(2, testLogger()).EvaluateHalos(context.Background(), tab, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWorkerPool_Cancelled(t *testing.T) {
	tab := mustBuild(t, synthTable(nil), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mass := make([]float64, 10*chunkSize)
	z := make([]float64, len(mass))
	for i := range mass {
		mass[i] = 1e12
		z[i] = 3
	}
	_, err := NewWorkerPool(1, testLogger()).EvaluateHalos(ctx, tab, mass, z)
	assert.ErrorIs(t, err, context.Canceled)
}
