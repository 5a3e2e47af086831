package models

import "time"

// Anomaly type tags form a closed set; the classifier never emits anything else.
const (
	AnomalyTypeAltitude = "altitude_anomaly"
	AnomalyTypeSpeed    = "speed_anomaly"
	AnomalyTypeRoute    = "route_deviation"
	AnomalyTypeTemporal = "temporal_anomaly"
	AnomalyTypeCombined = "combined"
)

// AnomalyRecord is a persisted detection verdict for one flight against one
// model. Records are append-only: later detection runs supersede earlier ones
// instead of overwriting them, so historical detections stay auditable.
type AnomalyRecord struct {
	ID          int64              `json:"id"`
	FlightID    string             `json:"flight_id"`
	ModelID     string             `json:"model_id"`
	AnomalyType string             `json:"anomaly_type,omitempty"`
	IsAnomaly   bool               `json:"is_anomaly"`
	Score       float64            `json:"score"`
	Confidence  float64            `json:"confidence"`
	Breakdown   map[string]float64 `json:"breakdown,omitempty"`
	DetectedAt  time.Time          `json:"detected_at"`
}

// AnomalyFilter holds query parameters for listing detection results
type AnomalyFilter struct {
	FlightID      string  `form:"flight_id"`
	AnomalyType   string  `form:"anomaly_type"`
	MinConfidence float64 `form:"min_confidence"`
	OnlyAnomalies bool    `form:"only_anomalies"`
	Limit         int     `form:"limit"`
}
