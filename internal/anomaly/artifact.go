// Package anomaly holds the model artifact, verdict types, error taxonomy
// and the anomaly classifier shared by the detection pipeline.
package anomaly

import "time"

// Scorer is the opaque outlier estimator held by a model artifact. Higher
// scores mean more anomalous; scoring a fitted estimator is deterministic and
// free of side effects. Any unsupervised outlier algorithm can stand behind
// this interface.
type Scorer interface {
	ScoreOne(vector []float64) (float64, error)
	Save() ([]byte, error)
}

// FeatureStats are per-feature summary statistics of the training population
// at fit time, used to standardize deviations during classification.
type FeatureStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ModelArtifact is the immutable result of one training run: the fitted
// estimator plus the exact feature schema and population statistics it was
// fitted against. An artifact whose FeatureNames disagree with the live
// extractor must be rejected before use (schema drift).
type ModelArtifact struct {
	ID            string
	Model         Scorer
	FeatureNames  []string
	Stats         map[string]FeatureStats
	Contamination float64
	// Threshold is the (1-contamination) empirical quantile of the training
	// scores, taken at the upper closest rank. Scores strictly above it are
	// flagged.
	Threshold float64
	// ScoreSpread is the standard deviation of the training scores, used to
	// normalize confidence.
	ScoreSpread float64
	Seed        int64
	TrainedOn   int
	CreatedAt   time.Time
}

// Verdict is the engine's result of scoring one flight against one artifact
type Verdict struct {
	FlightID    string             `json:"flight_id"`
	ModelID     string             `json:"model_id"`
	IsAnomaly   bool               `json:"is_anomaly"`
	AnomalyType string             `json:"anomaly_type,omitempty"`
	Score       float64            `json:"score"`
	Confidence  float64            `json:"confidence"`
	// Breakdown maps each feature family to its maximum absolute
	// standardized deviation, explaining what drove the classification.
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	DetectedAt time.Time          `json:"detected_at"`
}
