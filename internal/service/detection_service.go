package service

import (
	"context"
	"fmt"

	"github.com/kvbxss/RouteAnomalyDetection/internal/anomaly"
	"github.com/kvbxss/RouteAnomalyDetection/internal/engine"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
	"github.com/kvbxss/RouteAnomalyDetection/internal/repository"
)

// DetectionService exposes the anomaly detection engine to the request
// layer and persists detection results
type DetectionService struct {
	engine      *engine.Engine
	anomalyRepo *repository.AnomalyRepository
	modelRepo   *repository.ModelRepository
}

// NewDetectionService creates a new detection service
func NewDetectionService(eng *engine.Engine, anomalyRepo *repository.AnomalyRepository, modelRepo *repository.ModelRepository) *DetectionService {
	return &DetectionService{
		engine:      eng,
		anomalyRepo: anomalyRepo,
		modelRepo:   modelRepo,
	}
}

// Train fits a new model over the stored flights. Engine errors (invalid
// parameter, insufficient data) surface unchanged.
func (s *DetectionService) Train(ctx context.Context, contamination float64, flightLimit int, persist bool) (*engine.TrainResult, error) {
	return s.engine.Train(ctx, contamination, flightLimit, persist)
}

// Detect runs detection over the requested flights and persists the
// resulting verdicts as a new, auditable batch.
func (s *DetectionService) Detect(ctx context.Context, flightIDs []string, retrain bool) (*engine.DetectResult, error) {
	result, err := s.engine.Detect(ctx, flightIDs, retrain)
	if err != nil {
		return nil, err
	}

	if s.anomalyRepo != nil {
		if err := s.anomalyRepo.SaveVerdicts(ctx, result.Verdicts); err != nil {
			return nil, fmt.Errorf("detection succeeded but persisting verdicts failed: %w", err)
		}
	}
	return result, nil
}

// ListDetections returns persisted detection results
func (s *DetectionService) ListDetections(ctx context.Context, filter models.AnomalyFilter) ([]models.AnomalyRecord, error) {
	return s.anomalyRepo.ListDetections(ctx, filter)
}

// GetModel returns a persisted model artifact by id, or nil if unknown
func (s *DetectionService) GetModel(ctx context.Context, id string) (*anomaly.ModelArtifact, error) {
	return s.modelRepo.LoadByID(ctx, id)
}
