package database

import (
	"database/sql"
	"fmt"
	"log"
)

// migration is one versioned schema change
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in version order; each runs at most once
var migrations = []migration{
	{
		Version: 1,
		Name:    "create_flights",
		SQL: `
			CREATE TABLE IF NOT EXISTS flights (
				flight_id TEXT PRIMARY KEY,
				aircraft_id TEXT,
				origin TEXT,
				destination TEXT,
				first_seen INTEGER NOT NULL,
				last_seen INTEGER NOT NULL,
				created_at INTEGER NOT NULL DEFAULT (unixepoch())
			);
			CREATE INDEX IF NOT EXISTS idx_flights_aircraft ON flights(aircraft_id);
			CREATE INDEX IF NOT EXISTS idx_flights_first_seen ON flights(first_seen);
		`,
	},
	{
		Version: 2,
		Name:    "create_flight_points",
		SQL: `
			CREATE TABLE IF NOT EXISTS flight_points (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				flight_id TEXT NOT NULL REFERENCES flights(flight_id) ON DELETE CASCADE,
				ts INTEGER NOT NULL,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				altitude REAL NOT NULL DEFAULT 0,
				speed REAL NOT NULL DEFAULT 0,
				heading REAL NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_flight_points_flight ON flight_points(flight_id, ts);
		`,
	},
	{
		Version: 3,
		Name:    "create_ml_models",
		SQL: `
			CREATE TABLE IF NOT EXISTS ml_models (
				id TEXT PRIMARY KEY,
				feature_names TEXT NOT NULL,
				population_stats TEXT NOT NULL,
				contamination REAL NOT NULL,
				threshold REAL NOT NULL,
				score_spread REAL NOT NULL,
				seed INTEGER NOT NULL,
				trained_on INTEGER NOT NULL,
				model_blob BLOB NOT NULL,
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_ml_models_created ON ml_models(created_at);
		`,
	},
	{
		Version: 4,
		Name:    "create_anomaly_detections",
		SQL: `
			CREATE TABLE IF NOT EXISTS anomaly_detections (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				flight_id TEXT NOT NULL,
				model_id TEXT NOT NULL,
				anomaly_type TEXT,
				is_anomaly INTEGER NOT NULL DEFAULT 0,
				score REAL NOT NULL,
				confidence REAL NOT NULL,
				breakdown TEXT,
				detected_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_anomaly_flight ON anomaly_detections(flight_id);
			CREATE INDEX IF NOT EXISTS idx_anomaly_type ON anomaly_detections(anomaly_type);
			CREATE INDEX IF NOT EXISTS idx_anomaly_detected ON anomaly_detections(detected_at);
		`,
	},
}

// Migrate applies all pending migrations
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		log.Printf("[Database] Applied migration %d: %s", m.Version, m.Name)
	}

	return nil
}
