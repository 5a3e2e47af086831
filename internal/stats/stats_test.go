package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 2.5, Mean([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0.0, Mean([]float64{-3, 3}))
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, Variance([]float64{7}))
	// Sample variance of {2,4,4,4,5,5,7,9} is 32/7
	assert.InDelta(t, 32.0/7.0, Variance([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, Variance([]float64{3, 3, 3}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{1}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-12)
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
	assert.Equal(t, -4.0, Min([]float64{3, -4, 1}))
	assert.Equal(t, 3.0, Max([]float64{3, -4, 1}))
}

func TestMaxAbs(t *testing.T) {
	assert.Equal(t, 0.0, MaxAbs(nil))
	assert.Equal(t, 4.0, MaxAbs([]float64{3, -4, 1}))
	assert.Equal(t, 2.0, MaxAbs([]float64{-2}))
}

func TestQuantile(t *testing.T) {
	values := []float64{15, 20, 35, 40, 50}

	assert.Equal(t, 15.0, Quantile(values, 0))
	assert.Equal(t, 50.0, Quantile(values, 1))
	assert.Equal(t, 35.0, Quantile(values, 0.5))
	// Interpolated between ranks 1 and 2
	assert.InDelta(t, 29.0, Quantile(values, 0.4), 1e-12)

	assert.Equal(t, 0.0, Quantile(nil, 0.5))
	assert.Equal(t, 9.0, Quantile([]float64{9}, 0.25))

	// Out-of-range q is clamped
	assert.Equal(t, 15.0, Quantile(values, -1))
	assert.Equal(t, 50.0, Quantile(values, 2))
}

func TestQuantileDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Quantile(values, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 30.0, Percentile(values, 50))
	assert.Equal(t, 50.0, Percentile(values, 100))
}
