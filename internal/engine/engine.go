// Package engine coordinates the anomaly detection pipeline: selecting a
// training population, fitting the outlier model, publishing model artifacts
// and running detection over flights.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvbxss/RouteAnomalyDetection/internal/anomaly"
	"github.com/kvbxss/RouteAnomalyDetection/internal/features"
	"github.com/kvbxss/RouteAnomalyDetection/internal/iforest"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
	"github.com/kvbxss/RouteAnomalyDetection/internal/stats"
)

const (
	// MinTrainingFlights is the smallest population an outlier model may be
	// fitted on
	MinTrainingFlights = 10

	// DefaultContamination is used when detection retrains implicitly
	DefaultContamination = 0.1
)

// FlightSource provides the flights the engine trains on and scores.
// Implementations must return flights in a stable order (by flight id) so
// repeated training over the same data selects the same population.
type FlightSource interface {
	// ListFlights returns up to limit flights with trajectories, ordered by
	// flight id. limit <= 0 means all.
	ListFlights(ctx context.Context, limit int) ([]models.Flight, error)
	// GetFlights returns the flights with the given ids, ordered by flight
	// id. Unknown ids are omitted.
	GetFlights(ctx context.Context, ids []string) ([]models.Flight, error)
}

// ArtifactStore persists model artifacts. It is an injected capability; a
// nil store keeps artifacts in memory only.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, artifact *anomaly.ModelArtifact) error
	// LoadLatest returns the most recently persisted artifact, or nil when
	// none exists.
	LoadLatest(ctx context.Context) (*anomaly.ModelArtifact, error)
}

// Option configures an Engine
type Option func(*Engine)

// WithTrees sets the number of isolation trees fitted per training run
func WithTrees(n int) Option {
	return func(e *Engine) { e.trees = n }
}

// WithSampleSize sets the per-tree subsample size
func WithSampleSize(n int) Option {
	return func(e *Engine) { e.sampleSize = n }
}

// WithSeed sets the random seed recorded in trained artifacts
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// Engine is the detection orchestrator. Training runs are serialized by a
// mutex; the current artifact is only ever replaced by a fully built value,
// so concurrent detection always observes a consistent snapshot.
type Engine struct {
	flights FlightSource
	store   ArtifactStore

	trees      int
	sampleSize int
	seed       int64

	trainMu sync.Mutex // serializes training runs

	mu      sync.RWMutex // guards current
	current *anomaly.ModelArtifact
}

// New creates a detection engine over the given flight source. store may be
// nil to disable artifact persistence.
func New(flights FlightSource, store ArtifactStore, opts ...Option) *Engine {
	e := &Engine{
		flights:    flights,
		store:      store,
		trees:      iforest.DefaultTrees,
		sampleSize: iforest.DefaultSampleSize,
		seed:       iforest.DefaultSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrainResult summarizes one training run
type TrainResult struct {
	ModelID         string  `json:"model_id"`
	TrainingSamples int     `json:"training_samples"`
	SkippedFlights  int     `json:"skipped_flights"`
	Contamination   float64 `json:"contamination"`
	Threshold       float64 `json:"threshold"`
	Persisted       bool    `json:"persisted"`
}

// DetectResult summarizes one detection run
type DetectResult struct {
	ModelID        string            `json:"model_id"`
	Processed      int               `json:"processed_flights"`
	TotalAnomalies int               `json:"total_anomalies_detected"`
	SkippedFlights int               `json:"skipped_flights"`
	Verdicts       []anomaly.Verdict `json:"verdicts"`
}

// Train fits a new outlier model over up to flightLimit stored flights
// (all if flightLimit is 0) and publishes the resulting artifact as current.
// The artifact is additionally persisted when persist is true and a store is
// configured.
func (e *Engine) Train(ctx context.Context, contamination float64, flightLimit int, persist bool) (*TrainResult, error) {
	if contamination <= 0 || contamination > 0.5 {
		return nil, fmt.Errorf("%w: contamination %v outside (0, 0.5]", anomaly.ErrInvalidParameter, contamination)
	}
	if flightLimit < 0 {
		return nil, fmt.Errorf("%w: flight limit %d is negative", anomaly.ErrInvalidParameter, flightLimit)
	}

	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	flights, err := e.flights.ListFlights(ctx, flightLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load training population: %w", err)
	}
	flights = dedupeFlights(flights)

	if len(flights) < MinTrainingFlights {
		return nil, fmt.Errorf("%w: have %d flights, need at least %d", anomaly.ErrInsufficientData, len(flights), MinTrainingFlights)
	}

	vectors := make([][]float64, 0, len(flights))
	skipped := 0
	for _, flight := range flights {
		vector, err := features.Extract(flight)
		if err != nil {
			skipped++
			log.Printf("[DetectionEngine] Skipping flight %s during training: %v", flight.FlightID, err)
			continue
		}
		vectors = append(vectors, vector)
	}

	if len(vectors) < MinTrainingFlights {
		return nil, fmt.Errorf("%w: only %d of %d flights yielded features, need at least %d",
			anomaly.ErrInsufficientData, len(vectors), len(flights), MinTrainingFlights)
	}

	forest := iforest.New(
		iforest.WithTrees(e.trees),
		iforest.WithSampleSize(e.sampleSize),
		iforest.WithSeed(e.seed),
	)
	if err := forest.Fit(vectors); err != nil {
		return nil, fmt.Errorf("failed to fit outlier model: %w", err)
	}

	scores, err := forest.Score(vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to score training population: %w", err)
	}

	artifact := &anomaly.ModelArtifact{
		ID:            uuid.NewString(),
		Model:         forest,
		FeatureNames:  features.Names(),
		Stats:         populationStats(vectors),
		Contamination: contamination,
		Threshold:     thresholdFromScores(scores, contamination),
		ScoreSpread:   stats.StdDev(scores),
		Seed:          e.seed,
		TrainedOn:     len(vectors),
		CreatedAt:     time.Now().UTC(),
	}

	persisted := false
	if persist && e.store != nil {
		if err := e.store.SaveArtifact(ctx, artifact); err != nil {
			return nil, fmt.Errorf("failed to persist model artifact: %w", err)
		}
		persisted = true
	}

	// Publish only the fully built artifact
	e.mu.Lock()
	e.current = artifact
	e.mu.Unlock()

	log.Printf("[DetectionEngine] Trained model %s on %d flights (contamination=%.3f, threshold=%.4f, skipped=%d)",
		artifact.ID, len(vectors), contamination, artifact.Threshold, skipped)

	return &TrainResult{
		ModelID:         artifact.ID,
		TrainingSamples: len(vectors),
		SkippedFlights:  skipped,
		Contamination:   contamination,
		Threshold:       artifact.Threshold,
		Persisted:       persisted,
	}, nil
}

// Detect scores the given flights (all stored flights when flightIDs is
// empty) against the current artifact. When retrain is true, or requested
// implicitly by callers with no model, a training run over the full stored
// population happens first; otherwise a missing artifact is an error.
// Flights that fail feature extraction are skipped and counted, never fatal.
func (e *Engine) Detect(ctx context.Context, flightIDs []string, retrain bool) (*DetectResult, error) {
	if retrain {
		if _, err := e.Train(ctx, DefaultContamination, 0, e.store != nil); err != nil {
			return nil, err
		}
	}

	artifact, err := e.currentArtifact(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(artifact); err != nil {
		return nil, err
	}

	var flights []models.Flight
	if len(flightIDs) == 0 {
		flights, err = e.flights.ListFlights(ctx, 0)
	} else {
		flights, err = e.flights.GetFlights(ctx, flightIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load detection targets: %w", err)
	}

	detectedAt := time.Now().UTC()
	result := &DetectResult{
		ModelID:  artifact.ID,
		Verdicts: make([]anomaly.Verdict, 0, len(flights)),
	}

	for _, flight := range flights {
		vector, err := features.Extract(flight)
		if err != nil {
			result.SkippedFlights++
			log.Printf("[DetectionEngine] Skipping flight %s: %v", flight.FlightID, fmt.Errorf("%w: %v", anomaly.ErrFeatureExtraction, err))
			continue
		}

		score, err := artifact.Model.ScoreOne(vector)
		if err != nil {
			result.SkippedFlights++
			log.Printf("[DetectionEngine] Skipping flight %s: scoring failed: %v", flight.FlightID, err)
			continue
		}

		verdict := anomaly.Classify(vector, artifact, score)
		verdict.FlightID = flight.FlightID
		verdict.DetectedAt = detectedAt

		if verdict.IsAnomaly {
			result.TotalAnomalies++
		}
		result.Processed++
		result.Verdicts = append(result.Verdicts, verdict)
	}

	log.Printf("[DetectionEngine] Detection with model %s: %d flights processed, %d anomalies, %d skipped",
		artifact.ID, result.Processed, result.TotalAnomalies, result.SkippedFlights)

	return result, nil
}

// Current returns the currently published artifact, or nil
func (e *Engine) Current() *anomaly.ModelArtifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// currentArtifact snapshots the published artifact, falling back to the most
// recently persisted one
func (e *Engine) currentArtifact(ctx context.Context) (*anomaly.ModelArtifact, error) {
	e.mu.RLock()
	artifact := e.current
	e.mu.RUnlock()
	if artifact != nil {
		return artifact, nil
	}

	if e.store != nil {
		loaded, err := e.store.LoadLatest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted model: %w", err)
		}
		if loaded != nil {
			e.mu.Lock()
			e.current = loaded
			e.mu.Unlock()
			return loaded, nil
		}
	}

	return nil, fmt.Errorf("%w: train a model or request retrain", anomaly.ErrNoModelAvailable)
}

// validateSchema rejects artifacts whose feature schema disagrees with the
// live extractor
func validateSchema(artifact *anomaly.ModelArtifact) error {
	names := features.Names()
	if len(artifact.FeatureNames) != len(names) {
		return fmt.Errorf("%w: artifact has %d features, extractor has %d",
			anomaly.ErrSchemaDrift, len(artifact.FeatureNames), len(names))
	}
	for i, name := range names {
		if artifact.FeatureNames[i] != name {
			return fmt.Errorf("%w: feature %d is %q, extractor has %q",
				anomaly.ErrSchemaDrift, i, artifact.FeatureNames[i], name)
		}
	}
	return nil
}

// dedupeFlights drops repeated flight ids, keeping first occurrence and the
// incoming (stable) order
func dedupeFlights(flights []models.Flight) []models.Flight {
	seen := make(map[string]struct{}, len(flights))
	out := flights[:0]
	for _, flight := range flights {
		if _, ok := seen[flight.FlightID]; ok {
			continue
		}
		seen[flight.FlightID] = struct{}{}
		out = append(out, flight)
	}
	return out
}

// thresholdFromScores derives the score cutoff from the requested
// contamination applied to the training scores: the (1-contamination)
// empirical quantile at the upper closest rank. Scores strictly above it are
// flagged, so the threshold itself sits on the normal side.
func thresholdFromScores(scores []float64, contamination float64) float64 {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	idx := int(math.Ceil(float64(len(sorted)-1) * (1 - contamination)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// populationStats computes per-feature mean and standard deviation over the
// training vectors, in schema order
func populationStats(vectors [][]float64) map[string]anomaly.FeatureStats {
	names := features.Names()
	result := make(map[string]anomaly.FeatureStats, len(names))

	column := make([]float64, len(vectors))
	for i, name := range names {
		for j, vector := range vectors {
			column[j] = vector[i]
		}
		result[name] = anomaly.FeatureStats{
			Mean: stats.Mean(column),
			Std:  stats.StdDev(column),
		}
	}
	return result
}
