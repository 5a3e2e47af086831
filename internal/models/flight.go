package models

import "time"

// TrackPoint is a single ADS-B position sample within a flight trajectory
type TrackPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AltitudeFt float64   `json:"altitude"`
	SpeedKts   float64   `json:"speed"`
	HeadingDeg float64   `json:"heading"`
}

// Flight represents one ingested flight with its time-ordered trajectory.
// Immutable after ingestion; trajectory points are sorted by timestamp and a
// flight with zero points is rejected before it ever reaches the engine.
type Flight struct {
	FlightID    string       `json:"flight_id"`
	AircraftID  string       `json:"aircraft_id,omitempty"`
	Origin      string       `json:"origin,omitempty"`
	Destination string       `json:"destination,omitempty"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastSeen    time.Time    `json:"last_seen"`
	Points      []TrackPoint `json:"points,omitempty"`
}

// FlightFilter holds query parameters for listing flights
type FlightFilter struct {
	AircraftID string `form:"aircraft_id"`
	Origin     string `form:"origin"`
	StartTime  int64  `form:"start_time"`
	EndTime    int64  `form:"end_time"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// FlightSummary is the list-view projection of a flight (no trajectory)
type FlightSummary struct {
	FlightID    string    `json:"flight_id"`
	AircraftID  string    `json:"aircraft_id,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	PointCount  int       `json:"point_count"`
}
