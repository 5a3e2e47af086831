package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kvbxss/RouteAnomalyDetection/internal/database"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
)

// FlightRepository handles database operations for flights and their
// trajectory points
type FlightRepository struct {
	db *sql.DB
}

// NewFlightRepository creates a new flight repository
func NewFlightRepository(db *sql.DB) *FlightRepository {
	return &FlightRepository{db: db}
}

// SaveFlights upserts flights and replaces their trajectory points.
// Returns the number of flights stored.
func (r *FlightRepository) SaveFlights(ctx context.Context, flights []models.Flight) (int, error) {
	if len(flights) == 0 {
		return 0, nil
	}

	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		flightStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO flights (flight_id, aircraft_id, origin, destination, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(flight_id) DO UPDATE SET
				aircraft_id = excluded.aircraft_id,
				origin = excluded.origin,
				destination = excluded.destination,
				first_seen = excluded.first_seen,
				last_seen = excluded.last_seen
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare flight statement: %w", err)
		}
		defer flightStmt.Close()

		pointStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO flight_points (flight_id, ts, latitude, longitude, altitude, speed, heading)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare point statement: %w", err)
		}
		defer pointStmt.Close()

		for _, flight := range flights {
			if _, err := flightStmt.ExecContext(ctx,
				flight.FlightID, flight.AircraftID, flight.Origin, flight.Destination,
				flight.FirstSeen.Unix(), flight.LastSeen.Unix()); err != nil {
				return fmt.Errorf("failed to insert flight %s: %w", flight.FlightID, err)
			}

			// Re-uploaded flights replace their trajectory
			if _, err := tx.ExecContext(ctx, "DELETE FROM flight_points WHERE flight_id = ?", flight.FlightID); err != nil {
				return fmt.Errorf("failed to clear points for flight %s: %w", flight.FlightID, err)
			}

			for _, p := range flight.Points {
				if _, err := pointStmt.ExecContext(ctx,
					flight.FlightID, p.Timestamp.Unix(), p.Latitude, p.Longitude,
					p.AltitudeFt, p.SpeedKts, p.HeadingDeg); err != nil {
					return fmt.Errorf("failed to insert point for flight %s: %w", flight.FlightID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(flights), nil
}

// ListFlights returns up to limit flights with their trajectories, ordered
// by flight id. limit <= 0 returns all flights.
func (r *FlightRepository) ListFlights(ctx context.Context, limit int) ([]models.Flight, error) {
	query := `SELECT flight_id, aircraft_id, origin, destination, first_seen, last_seen
		FROM flights ORDER BY flight_id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	flights, err := r.scanFlights(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return flights, r.attachPoints(ctx, flights)
}

// GetFlights returns the flights with the given ids, ordered by flight id.
// Unknown ids are omitted.
func (r *FlightRepository) GetFlights(ctx context.Context, ids []string) ([]models.Flight, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT flight_id, aircraft_id, origin, destination, first_seen, last_seen
		FROM flights WHERE flight_id IN (%s) ORDER BY flight_id`, placeholders)

	flights, err := r.scanFlights(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return flights, r.attachPoints(ctx, flights)
}

// GetFlight returns a single flight with its trajectory, or nil if unknown
func (r *FlightRepository) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	flights, err := r.GetFlights(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(flights) == 0 {
		return nil, nil
	}
	return &flights[0], nil
}

// ListSummaries returns flight list-view rows with filtering and pagination
func (r *FlightRepository) ListSummaries(ctx context.Context, filter models.FlightFilter) ([]models.FlightSummary, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.AircraftID != "" {
		conditions = append(conditions, "f.aircraft_id = ?")
		args = append(args, filter.AircraftID)
	}
	if filter.Origin != "" {
		conditions = append(conditions, "f.origin = ?")
		args = append(args, filter.Origin)
	}
	if filter.StartTime > 0 {
		conditions = append(conditions, "f.first_seen >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "f.last_seen <= ?")
		args = append(args, filter.EndTime)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flights f"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count flights: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 500 {
		filter.PageSize = 50
	}

	query := `SELECT f.flight_id, f.aircraft_id, f.origin, f.destination, f.first_seen, f.last_seen,
		(SELECT COUNT(*) FROM flight_points p WHERE p.flight_id = f.flight_id) AS point_count
		FROM flights f` + where + ` ORDER BY f.flight_id LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var summaries []models.FlightSummary
	for rows.Next() {
		var s models.FlightSummary
		var aircraft, origin, destination sql.NullString
		var firstSeen, lastSeen int64
		if err := rows.Scan(&s.FlightID, &aircraft, &origin, &destination, &firstSeen, &lastSeen, &s.PointCount); err != nil {
			return nil, 0, fmt.Errorf("failed to scan flight: %w", err)
		}
		s.AircraftID = aircraft.String
		s.Origin = origin.String
		s.Destination = destination.String
		s.FirstSeen = time.Unix(firstSeen, 0).UTC()
		s.LastSeen = time.Unix(lastSeen, 0).UTC()
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

func (r *FlightRepository) scanFlights(ctx context.Context, query string, args ...interface{}) ([]models.Flight, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var flights []models.Flight
	for rows.Next() {
		var f models.Flight
		var aircraft, origin, destination sql.NullString
		var firstSeen, lastSeen int64
		if err := rows.Scan(&f.FlightID, &aircraft, &origin, &destination, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		f.AircraftID = aircraft.String
		f.Origin = origin.String
		f.Destination = destination.String
		f.FirstSeen = time.Unix(firstSeen, 0).UTC()
		f.LastSeen = time.Unix(lastSeen, 0).UTC()
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// attachPoints loads trajectories for the given flights in one query
func (r *FlightRepository) attachPoints(ctx context.Context, flights []models.Flight) error {
	if len(flights) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(flights)-1) + "?"
	args := make([]interface{}, len(flights))
	index := make(map[string]*models.Flight, len(flights))
	for i := range flights {
		args[i] = flights[i].FlightID
		index[flights[i].FlightID] = &flights[i]
	}

	query := fmt.Sprintf(`SELECT flight_id, ts, latitude, longitude, altitude, speed, heading
		FROM flight_points WHERE flight_id IN (%s) ORDER BY flight_id, ts, id`, placeholders)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query flight points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var flightID string
		var ts int64
		var p models.TrackPoint
		if err := rows.Scan(&flightID, &ts, &p.Latitude, &p.Longitude, &p.AltitudeFt, &p.SpeedKts, &p.HeadingDeg); err != nil {
			return fmt.Errorf("failed to scan flight point: %w", err)
		}
		p.Timestamp = time.Unix(ts, 0).UTC()

		if flight, ok := index[flightID]; ok {
			flight.Points = append(flight.Points, p)
		}
	}
	return rows.Err()
}
