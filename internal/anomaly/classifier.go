package anomaly

import (
	"math"

	"github.com/kvbxss/RouteAnomalyDetection/internal/features"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
)

const (
	// Epsilon guards divisions by a near-zero standard deviation
	Epsilon = 1e-9

	// CoOccurrenceThreshold is the standardized deviation beyond which a
	// family counts as independently anomalous. Two or more such families
	// make the verdict "combined".
	CoOccurrenceThreshold = 3.0
)

// familyTags maps feature families to persisted anomaly type tags
var familyTags = map[string]string{
	features.FamilyAltitude: models.AnomalyTypeAltitude,
	features.FamilySpeed:    models.AnomalyTypeSpeed,
	features.FamilyRoute:    models.AnomalyTypeRoute,
	features.FamilyTemporal: models.AnomalyTypeTemporal,
}

// Classify turns a raw outlier score into a typed verdict using the
// artifact's stored population statistics. It is a pure function of its
// arguments: identical inputs always produce identical verdicts.
//
// Vectors scoring below the artifact's threshold are not anomalous and get
// no type. Otherwise the type is the feature family with the largest maximum
// standardized deviation, or "combined" when two or more families exceed the
// co-occurrence threshold. Equal deviations resolve by the fixed priority
// altitude > speed > route > temporal so classification stays deterministic.
func Classify(vector []float64, artifact *ModelArtifact, score float64) Verdict {
	breakdown := familyDeviations(vector, artifact)

	verdict := Verdict{
		ModelID:   artifact.ID,
		Score:     score,
		Breakdown: breakdown,
	}

	if score <= artifact.Threshold {
		return verdict
	}

	verdict.IsAnomaly = true
	verdict.AnomalyType = classifyType(breakdown)
	verdict.Confidence = confidence(score, artifact)
	return verdict
}

// familyDeviations computes, per feature family, the maximum absolute
// standardized deviation (value - mean) / max(std, epsilon) of the vector's
// features from the training population.
func familyDeviations(vector []float64, artifact *ModelArtifact) map[string]float64 {
	deviations := make(map[string]float64, len(features.Families()))
	for _, family := range features.Families() {
		deviations[family] = 0
	}

	for i, name := range artifact.FeatureNames {
		if i >= len(vector) {
			break
		}

		st, ok := artifact.Stats[name]
		if !ok {
			continue
		}

		z := math.Abs(vector[i]-st.Mean) / math.Max(st.Std, Epsilon)
		family := features.FamilyOf(name)
		if family == "" {
			continue
		}
		if z > deviations[family] {
			deviations[family] = z
		}
	}

	return deviations
}

// classifyType picks the anomaly type tag from the family deviations
func classifyType(deviations map[string]float64) string {
	exceeding := 0
	best := features.Families()[0]
	for _, family := range features.Families() {
		if deviations[family] > CoOccurrenceThreshold {
			exceeding++
		}
		// Strict > keeps the earlier (higher priority) family on ties
		if deviations[family] > deviations[best] {
			best = family
		}
	}

	if exceeding >= 2 {
		return models.AnomalyTypeCombined
	}
	return familyTags[best]
}

// confidence maps how far the score lies beyond the threshold into (0, 1),
// normalized by the spread of the training scores. It is monotone in the
// score and independent of the assigned type: 0.5 at the threshold itself,
// approaching 1 as the score moves further out.
func confidence(score float64, artifact *ModelArtifact) float64 {
	spread := math.Max(artifact.ScoreSpread, Epsilon)
	return 1 / (1 + math.Exp(-(score-artifact.Threshold)/spread))
}
