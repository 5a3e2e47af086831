package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kvbxss/RouteAnomalyDetection/internal/anomaly"
	"github.com/kvbxss/RouteAnomalyDetection/internal/iforest"
)

// ModelRepository persists trained model artifacts as an opaque binary blob
// plus queryable metadata. It implements engine.ArtifactStore.
type ModelRepository struct {
	db *sql.DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *sql.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// SaveArtifact stores a fitted artifact. Artifacts are immutable: saving
// never updates an existing row.
func (r *ModelRepository) SaveArtifact(ctx context.Context, artifact *anomaly.ModelArtifact) error {
	blob, err := artifact.Model.Save()
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}

	names, err := json.Marshal(artifact.FeatureNames)
	if err != nil {
		return fmt.Errorf("failed to marshal feature names: %w", err)
	}
	popStats, err := json.Marshal(artifact.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal population stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ml_models (id, feature_names, population_stats, contamination, threshold,
			score_spread, seed, trained_on, model_blob, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, artifact.ID, string(names), string(popStats), artifact.Contamination, artifact.Threshold,
		artifact.ScoreSpread, artifact.Seed, artifact.TrainedOn, blob, artifact.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert model %s: %w", artifact.ID, err)
	}
	return nil
}

// LoadLatest returns the most recently persisted artifact, or nil when the
// store is empty
func (r *ModelRepository) LoadLatest(ctx context.Context) (*anomaly.ModelArtifact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, feature_names, population_stats, contamination, threshold,
			score_spread, seed, trained_on, model_blob, created_at
		FROM ml_models ORDER BY created_at DESC, id DESC LIMIT 1
	`)
	return scanArtifact(row)
}

// LoadByID returns a specific persisted artifact, or nil if unknown
func (r *ModelRepository) LoadByID(ctx context.Context, id string) (*anomaly.ModelArtifact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, feature_names, population_stats, contamination, threshold,
			score_spread, seed, trained_on, model_blob, created_at
		FROM ml_models WHERE id = ?
	`, id)
	return scanArtifact(row)
}

func scanArtifact(row *sql.Row) (*anomaly.ModelArtifact, error) {
	var artifact anomaly.ModelArtifact
	var names, popStats string
	var blob []byte
	var createdAt int64

	err := row.Scan(&artifact.ID, &names, &popStats, &artifact.Contamination, &artifact.Threshold,
		&artifact.ScoreSpread, &artifact.Seed, &artifact.TrainedOn, &blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan model artifact: %w", err)
	}

	if err := json.Unmarshal([]byte(names), &artifact.FeatureNames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature names: %w", err)
	}
	if err := json.Unmarshal([]byte(popStats), &artifact.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal population stats: %w", err)
	}

	forest, err := iforest.Load(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to restore model %s: %w", artifact.ID, err)
	}
	artifact.Model = forest
	artifact.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &artifact, nil
}
