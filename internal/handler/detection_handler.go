package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kvbxss/RouteAnomalyDetection/internal/anomaly"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
	"github.com/kvbxss/RouteAnomalyDetection/internal/service"
	"github.com/kvbxss/RouteAnomalyDetection/pkg/response"
)

// DetectionHandler handles HTTP requests for training and detection
type DetectionHandler struct {
	detectionService *service.DetectionService
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(detectionService *service.DetectionService) *DetectionHandler {
	return &DetectionHandler{detectionService: detectionService}
}

type trainRequest struct {
	Contamination float64 `json:"contamination"`
	FlightLimit   int     `json:"flight_limit"`
	Persist       *bool   `json:"persist"`
}

// Train handles POST /api/v1/ml/train
func (h *DetectionHandler) Train(c *gin.Context) {
	req := trainRequest{Contamination: 0.1}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "Invalid request body")
		return
	}

	persist := true
	if req.Persist != nil {
		persist = *req.Persist
	}

	result, err := h.detectionService.Train(c.Request.Context(), req.Contamination, req.FlightLimit, persist)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	response.Success(c, result)
}

type detectRequest struct {
	FlightIDs []string `json:"flight_ids"`
	Retrain   bool     `json:"retrain"`
}

// Detect handles POST /api/v1/ml/detect
func (h *DetectionHandler) Detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.detectionService.Detect(c.Request.Context(), req.FlightIDs, req.Retrain)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	response.Success(c, result)
}

// modelMetadata is the client-facing view of a persisted model. The
// serialized model itself stays opaque.
type modelMetadata struct {
	ID            string    `json:"id"`
	FeatureNames  []string  `json:"feature_names"`
	Contamination float64   `json:"contamination"`
	Threshold     float64   `json:"threshold"`
	ScoreSpread   float64   `json:"score_spread"`
	Seed          int64     `json:"seed"`
	TrainedOn     int       `json:"trained_on"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetModel handles GET /api/v1/ml/models/:id
func (h *DetectionHandler) GetModel(c *gin.Context) {
	artifact, err := h.detectionService.GetModel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if artifact == nil {
		response.NotFound(c, "Model not found")
		return
	}

	response.Success(c, modelMetadata{
		ID:            artifact.ID,
		FeatureNames:  artifact.FeatureNames,
		Contamination: artifact.Contamination,
		Threshold:     artifact.Threshold,
		ScoreSpread:   artifact.ScoreSpread,
		Seed:          artifact.Seed,
		TrainedOn:     artifact.TrainedOn,
		CreatedAt:     artifact.CreatedAt,
	})
}

// ListAnomalies handles GET /api/v1/anomalies
func (h *DetectionHandler) ListAnomalies(c *gin.Context) {
	var filter models.AnomalyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	records, err := h.detectionService.ListDetections(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"data":  records,
		"count": len(records),
	})
}

// FlightAnomalies handles GET /api/v1/flights/:id/anomalies
func (h *DetectionHandler) FlightAnomalies(c *gin.Context) {
	filter := models.AnomalyFilter{FlightID: c.Param("id")}

	records, err := h.detectionService.ListDetections(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"data":  records,
		"count": len(records),
	})
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, anomaly.ErrInvalidParameter):
		response.BadRequest(c, err.Error())
	case errors.Is(err, anomaly.ErrInsufficientData):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, anomaly.ErrNoModelAvailable),
		errors.Is(err, anomaly.ErrSchemaDrift):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}
