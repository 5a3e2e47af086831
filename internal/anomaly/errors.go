package anomaly

import "errors"

// Engine error taxonomy. Callers match these with errors.Is; all engine
// failures wrap one of them.
var (
	// ErrInvalidParameter signals a caller error such as a contamination
	// outside (0, 0.5] or a negative flight limit. Always surfaced verbatim.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientData signals a training population below the minimum
	// size for meaningful unsupervised fitting.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrSchemaDrift signals that a persisted model's feature schema no
	// longer matches the live feature extractor. Forces a retrain.
	ErrSchemaDrift = errors.New("model feature schema does not match extractor")

	// ErrNoModelAvailable signals that detection was requested without a
	// trained model and without retraining.
	ErrNoModelAvailable = errors.New("no trained model available")

	// ErrFeatureExtraction signals a malformed individual flight. Recovered
	// locally during detection: the flight is skipped and counted.
	ErrFeatureExtraction = errors.New("feature extraction failed")
)
