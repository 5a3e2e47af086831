package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kvbxss/RouteAnomalyDetection/internal/anomaly"
	"github.com/kvbxss/RouteAnomalyDetection/internal/database"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
)

// AnomalyRepository persists detection verdicts. The table is append-only:
// verdicts from later runs supersede earlier ones without overwriting them.
type AnomalyRepository struct {
	db *sql.DB
}

// NewAnomalyRepository creates a new anomaly repository
func NewAnomalyRepository(db *sql.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// SaveVerdicts inserts the verdicts of one detection run
func (r *AnomalyRepository) SaveVerdicts(ctx context.Context, verdicts []anomaly.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO anomaly_detections (flight_id, model_id, anomaly_type, is_anomaly,
				score, confidence, breakdown, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, v := range verdicts {
			var breakdown []byte
			if len(v.Breakdown) > 0 {
				breakdown, _ = json.Marshal(v.Breakdown)
			}

			isAnomaly := 0
			if v.IsAnomaly {
				isAnomaly = 1
			}

			if _, err := stmt.ExecContext(ctx, v.FlightID, v.ModelID, v.AnomalyType, isAnomaly,
				v.Score, v.Confidence, string(breakdown), v.DetectedAt.Unix()); err != nil {
				return fmt.Errorf("failed to insert verdict for flight %s: %w", v.FlightID, err)
			}
		}
		return nil
	})
}

// ListDetections returns persisted detection results, newest first
func (r *AnomalyRepository) ListDetections(ctx context.Context, filter models.AnomalyFilter) ([]models.AnomalyRecord, error) {
	query := `SELECT id, flight_id, model_id, anomaly_type, is_anomaly, score, confidence, breakdown, detected_at
		FROM anomaly_detections`

	var conditions []string
	var args []interface{}

	if filter.FlightID != "" {
		conditions = append(conditions, "flight_id = ?")
		args = append(args, filter.FlightID)
	}
	if filter.AnomalyType != "" {
		conditions = append(conditions, "anomaly_type = ?")
		args = append(args, filter.AnomalyType)
	}
	if filter.MinConfidence > 0 {
		conditions = append(conditions, "confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if filter.OnlyAnomalies {
		conditions = append(conditions, "is_anomaly = 1")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY detected_at DESC, id DESC"
	if filter.Limit < 1 || filter.Limit > 1000 {
		filter.Limit = 200
	}
	query += " LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []models.AnomalyRecord
	for rows.Next() {
		var rec models.AnomalyRecord
		var anomalyType, breakdown sql.NullString
		var isAnomaly int
		var detectedAt int64

		if err := rows.Scan(&rec.ID, &rec.FlightID, &rec.ModelID, &anomalyType, &isAnomaly,
			&rec.Score, &rec.Confidence, &breakdown, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}

		rec.AnomalyType = anomalyType.String
		rec.IsAnomaly = isAnomaly == 1
		rec.DetectedAt = time.Unix(detectedAt, 0).UTC()
		if breakdown.Valid && breakdown.String != "" {
			if err := json.Unmarshal([]byte(breakdown.String), &rec.Breakdown); err != nil {
				return nil, fmt.Errorf("failed to unmarshal breakdown for detection %d: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
