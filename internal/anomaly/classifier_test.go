package anomaly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvbxss/RouteAnomalyDetection/internal/features"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
)

// testArtifact builds an artifact with unit population statistics so a
// feature value of z is exactly z standardized deviations out
func testArtifact() *ModelArtifact {
	stats := make(map[string]FeatureStats, features.Dim())
	for _, name := range features.Names() {
		stats[name] = FeatureStats{Mean: 0, Std: 1}
	}
	return &ModelArtifact{
		ID:            "test-model",
		FeatureNames:  features.Names(),
		Stats:         stats,
		Contamination: 0.1,
		Threshold:     0.6,
		ScoreSpread:   0.05,
	}
}

// vectorWith returns a zero vector with the named features set
func vectorWith(t *testing.T, values map[string]float64) []float64 {
	t.Helper()
	vector := make([]float64, features.Dim())
	names := features.Names()
	for name, v := range values {
		found := false
		for i, n := range names {
			if n == name {
				vector[i] = v
				found = true
				break
			}
		}
		require.True(t, found, "unknown feature %q", name)
	}
	return vector
}

func TestClassifyNormal(t *testing.T) {
	artifact := testArtifact()
	vector := vectorWith(t, map[string]float64{"altitude_mean": 10})

	// Score on the normal side of the threshold short-circuits typing
	verdict := Classify(vector, artifact, 0.5)

	assert.False(t, verdict.IsAnomaly)
	assert.Empty(t, verdict.AnomalyType)
	assert.Zero(t, verdict.Confidence)
	assert.Equal(t, 0.5, verdict.Score)
	assert.NotEmpty(t, verdict.Breakdown)
}

func TestClassifyScoreAtThresholdIsNormal(t *testing.T) {
	artifact := testArtifact()
	verdict := Classify(vectorWith(t, nil), artifact, artifact.Threshold)
	assert.False(t, verdict.IsAnomaly)
}

func TestClassifySingleFamily(t *testing.T) {
	tests := []struct {
		name     string
		feature  string
		wantType string
	}{
		{"altitude", "altitude_max_local_dev", models.AnomalyTypeAltitude},
		{"speed", "speed_max_delta", models.AnomalyTypeSpeed},
		{"route", "bearing_variance", models.AnomalyTypeRoute},
		{"temporal", "gap_max_seconds", models.AnomalyTypeTemporal},
	}

	artifact := testArtifact()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vector := vectorWith(t, map[string]float64{tt.feature: 8})
			verdict := Classify(vector, artifact, 0.8)

			assert.True(t, verdict.IsAnomaly)
			assert.Equal(t, tt.wantType, verdict.AnomalyType)
			assert.NotEqual(t, models.AnomalyTypeCombined, verdict.AnomalyType)
			assert.Equal(t, 8.0, verdict.Breakdown[features.FamilyOf(tt.feature)])
		})
	}
}

func TestClassifyBelowCoOccurrenceIsNotCombined(t *testing.T) {
	artifact := testArtifact()
	// Large deviation only in altitude; others below the co-occurrence bar
	vector := vectorWith(t, map[string]float64{
		"altitude_mean":    9,
		"speed_mean":       2,
		"gap_mean_seconds": 1.5,
	})

	verdict := Classify(vector, artifact, 0.9)
	assert.Equal(t, models.AnomalyTypeAltitude, verdict.AnomalyType)
}

func TestClassifyCombined(t *testing.T) {
	artifact := testArtifact()
	vector := vectorWith(t, map[string]float64{
		"altitude_mean": 5,
		"speed_std":     4,
	})

	verdict := Classify(vector, artifact, 0.9)
	assert.Equal(t, models.AnomalyTypeCombined, verdict.AnomalyType)
}

func TestClassifyTieBreakPriority(t *testing.T) {
	artifact := testArtifact()

	// altitude and speed exactly equal: altitude wins
	vector := vectorWith(t, map[string]float64{
		"altitude_mean": 2.5,
		"speed_mean":    2.5,
	})
	verdict := Classify(vector, artifact, 0.8)
	assert.Equal(t, models.AnomalyTypeAltitude, verdict.AnomalyType)

	// route and temporal exactly equal: route wins
	vector = vectorWith(t, map[string]float64{
		"route_directness": 2.5,
		"gap_max_seconds":  2.5,
	})
	verdict = Classify(vector, artifact, 0.8)
	assert.Equal(t, models.AnomalyTypeRoute, verdict.AnomalyType)
}

func TestConfidence(t *testing.T) {
	artifact := testArtifact()
	vector := vectorWith(t, map[string]float64{"altitude_mean": 6})

	barely := Classify(vector, artifact, artifact.Threshold+0.001)
	clear := Classify(vector, artifact, artifact.Threshold+0.05)
	extreme := Classify(vector, artifact, artifact.Threshold+0.3)

	// Monotone in outlier strength, bounded by 1
	assert.Greater(t, barely.Confidence, 0.5)
	assert.Greater(t, clear.Confidence, barely.Confidence)
	assert.Greater(t, extreme.Confidence, clear.Confidence)
	assert.LessOrEqual(t, extreme.Confidence, 1.0)
}

func TestConfidenceIndependentOfType(t *testing.T) {
	artifact := testArtifact()
	altitude := Classify(vectorWith(t, map[string]float64{"altitude_mean": 7}), artifact, 0.75)
	temporal := Classify(vectorWith(t, map[string]float64{"gap_max_seconds": 4}), artifact, 0.75)

	assert.NotEqual(t, altitude.AnomalyType, temporal.AnomalyType)
	assert.Equal(t, altitude.Confidence, temporal.Confidence)
}

func TestClassifyIdempotent(t *testing.T) {
	artifact := testArtifact()
	vector := vectorWith(t, map[string]float64{"speed_mean": 5, "altitude_std": 1})

	first := Classify(vector, artifact, 0.72)
	second := Classify(vector, artifact, 0.72)
	assert.Equal(t, first, second)
}

func TestZeroStdGuard(t *testing.T) {
	artifact := testArtifact()
	// A degenerate population with zero variance must not blow up into
	// NaN deviations
	for _, name := range features.Names() {
		artifact.Stats[name] = FeatureStats{Mean: 3, Std: 0}
	}
	vector := vectorWith(t, nil) // all zeros, 3 below each mean

	verdict := Classify(vector, artifact, 0.9)
	assert.True(t, verdict.IsAnomaly)
	for family, dev := range verdict.Breakdown {
		assert.False(t, math.IsNaN(dev), "NaN deviation for family %s", family)
	}
}
