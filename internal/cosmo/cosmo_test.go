package cosmo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planckLike() *Cosmology {
	return FromLittleH(0.7, 0.286, 0.047, 0.714, 0.96, 0.82)
}

func TestE_AtZeroIsOne(t *testing.T) {
	c := planckLike()
	assert.InDelta(t, 1.0, c.E(0), 1e-12)
	assert.InDelta(t, 70.0, c.H(0), 1e-9)
}

func TestComovingDistance_EinsteinDeSitter(t *testing.T) {
	// Ωm = 1 has the closed form D = 2c/H0 (1 - 1/sqrt(1+z)).
	c := &Cosmology{H0: 70, OmegaM: 1}
	for _, z := range []float64{0.1, 1, 3} {
		want := 2 * c.HubbleDistance() * (1 - 1/math.Sqrt(1+z))
		got := c.ComovingDistance(z)
		assert.InDelta(t, want, got, want*1e-9, "z=%g", z)
	}
}

func TestComovingDistance_Monotonic(t *testing.T) {
	c := planckLike()
	assert.Equal(t, 0.0, c.ComovingDistance(0))
	prev := 0.0
	for z := 0.25; z <= 4; z += 0.25 {
		d := c.ComovingDistance(z)
		require.Greater(t, d, prev)
		prev = d
	}
	// Roughly 3.3 Gpc at z = 1 for this cosmology.
	assert.InDelta(t, 3300, c.ComovingDistance(1), 200)
}

func TestSurveyVolume(t *testing.T) {
	c := planckLike()
	full := c.ComovingVolume(3) - c.ComovingVolume(2)
	// The whole sky is 4π sr = (180/π)² · 4π deg².
	allSkyDeg2 := 4 * math.Pi * (180 / math.Pi) * (180 / math.Pi)
	got := c.SurveyVolume(2, 3, math.Sqrt(allSkyDeg2), math.Sqrt(allSkyDeg2))
	assert.InDelta(t, full, got, full*1e-9)

	small := c.SurveyVolume(2, 3, 2, 2)
	assert.InDelta(t, full*4/allSkyDeg2, small, small*1e-9)
}

func TestFreqToZ(t *testing.T) {
	// CO(1-0) at 115.27 GHz observed at 34 GHz.
	assert.InDelta(t, 115.27/34-1, FreqToZ(115.27, 34), 1e-12)
	assert.Equal(t, 0.0, FreqToZ(30, 30))
}
