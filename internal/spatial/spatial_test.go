package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	// LHR to CDG is roughly 348 km
	d := HaversineDistance(51.4700, -0.4543, 49.0097, 2.5479)
	assert.InDelta(t, 348000, d, 5000)

	assert.Equal(t, 0.0, HaversineDistance(51.47, -0.45, 51.47, -0.45))
}

func TestBearing(t *testing.T) {
	// Due east along the equator
	assert.InDelta(t, 90, Bearing(0, 0, 0, 1), 0.01)
	// Due north
	assert.InDelta(t, 0, Bearing(0, 0, 1, 0), 0.01)
	// Due south
	assert.InDelta(t, 180, Bearing(1, 0, 0, 0), 0.01)
	// Due west wraps to 270, not -90
	assert.InDelta(t, 270, Bearing(0, 1, 0, 0), 0.01)
}

func TestPathLength(t *testing.T) {
	lats := []float64{0, 0, 0}
	lons := []float64{0, 1, 2}

	total := PathLength(lats, lons)
	direct := HaversineDistance(0, 0, 0, 2)
	assert.InDelta(t, direct, total, 1)

	assert.Equal(t, 0.0, PathLength([]float64{1}, []float64{1}))
	assert.Equal(t, 0.0, PathLength(lats, lons[:2]))
}

func TestCircularMean(t *testing.T) {
	assert.Equal(t, 0.0, CircularMean(nil))

	// Angles straddling the wrap-around average to the wrap point
	mean := CircularMean([]float64{-0.1, 0.1})
	assert.InDelta(t, 0, mean, 1e-9)

	mean = CircularMean([]float64{math.Pi - 0.1, -math.Pi + 0.1})
	assert.InDelta(t, math.Pi, math.Abs(mean), 1e-9)
}

func TestCircularVariance(t *testing.T) {
	// Identical angles have zero variance
	assert.InDelta(t, 0, CircularVariance([]float64{1.2, 1.2, 1.2}), 1e-12)

	// Opposite angles cancel completely
	assert.InDelta(t, 1, CircularVariance([]float64{0, math.Pi}), 1e-9)

	spread := CircularVariance([]float64{0, 0.5})
	assert.Greater(t, spread, 0.0)
	assert.Less(t, spread, 1.0)
}

func TestCircularVarianceDegrees(t *testing.T) {
	// Headings 359 and 1 are nearly identical directions
	nearWrap := CircularVarianceDegrees([]float64{359, 1})
	assert.Less(t, nearWrap, 0.001)

	opposite := CircularVarianceDegrees([]float64{0, 180})
	assert.InDelta(t, 1, opposite, 1e-9)
}
