// Package ingest parses uploaded tabular flight data into validated flight
// records. The detection engine only ever sees records that passed the
// checks here.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
)

// headerAliases maps canonical field names to accepted CSV column headers
var headerAliases = map[string][]string{
	"flight_id":   {"flight_id", "flightid", "id", "flight"},
	"aircraft_id": {"aircraft_id", "aircraftid", "aircraft", "tail_number", "registration"},
	"timestamp":   {"timestamp", "time", "datetime", "date_time"},
	"latitude":    {"latitude", "lat", "y"},
	"longitude":   {"longitude", "lon", "lng", "x"},
	"altitude":    {"altitude", "alt", "height"},
	"speed":       {"speed", "velocity", "ground_speed", "gs"},
	"heading":     {"heading", "track", "course", "direction"},
	"origin":      {"origin", "departure", "from", "orig"},
	"destination": {"destination", "arrival", "to", "dest"},
}

var requiredFields = []string{"flight_id", "timestamp", "latitude", "longitude"}

// Physical sanity bounds for optional point fields. Below Dead Sea level or
// above any transponder-equipped aircraft is a bad row, not a flight.
const (
	minAltitudeFt = -1000.0
	maxAltitudeFt = 60000.0
	maxSpeedKts   = 1000.0
)

// timestampLayouts are tried in order for non-numeric timestamp values
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Result holds the outcome of parsing one CSV upload. Row-level problems are
// collected, not fatal: valid rows still produce flights.
type Result struct {
	Flights  []models.Flight `json:"-"`
	Rows     int             `json:"rows"`
	Accepted int             `json:"accepted_rows"`
	Errors   []string        `json:"errors,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ParseCSV reads flight samples from CSV and groups them into time-ordered
// flight records, sorted by flight id. Returns an error only for structural
// problems (unreadable CSV, missing required columns).
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	byFlight := make(map[string]*models.Flight)

	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		result.Rows++
		if err := parseRow(record, columns, byFlight); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Accepted++
	}

	for id, flight := range byFlight {
		sort.SliceStable(flight.Points, func(i, j int) bool {
			return flight.Points[i].Timestamp.Before(flight.Points[j].Timestamp)
		})
		flight.FirstSeen = flight.Points[0].Timestamp
		flight.LastSeen = flight.Points[len(flight.Points)-1].Timestamp

		if len(flight.Points) < 2 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("flight %s has a single trajectory point", id))
		}
		result.Flights = append(result.Flights, *flight)
	}

	sort.Slice(result.Flights, func(i, j int) bool {
		return result.Flights[i].FlightID < result.Flights[j].FlightID
	})

	log.Printf("[CSVIngest] Parsed %d rows: %d accepted, %d flights, %d errors, %d warnings",
		result.Rows, result.Accepted, len(result.Flights), len(result.Errors), len(result.Warnings))

	return result, nil
}

// mapHeader resolves CSV column positions for each canonical field
func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		for field, aliases := range headerAliases {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[field] = i
					break
				}
			}
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV is missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRow(record []string, columns map[string]int, byFlight map[string]*models.Flight) error {
	get := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	flightID := get("flight_id")
	if flightID == "" {
		return fmt.Errorf("empty flight_id")
	}

	ts, err := parseTimestamp(get("timestamp"))
	if err != nil {
		return err
	}

	lat, err := parseFloatInRange(get("latitude"), "latitude", -90, 90)
	if err != nil {
		return err
	}
	lon, err := parseFloatInRange(get("longitude"), "longitude", -180, 180)
	if err != nil {
		return err
	}

	point := models.TrackPoint{Timestamp: ts, Latitude: lat, Longitude: lon}

	if v := get("altitude"); v != "" {
		alt, err := parseFloatInRange(v, "altitude", minAltitudeFt, maxAltitudeFt)
		if err != nil {
			return err
		}
		point.AltitudeFt = alt
	}
	if v := get("speed"); v != "" {
		speed, err := parseFloatInRange(v, "speed", 0, maxSpeedKts)
		if err != nil {
			return err
		}
		point.SpeedKts = speed
	}
	if v := get("heading"); v != "" {
		heading, err := parseFloatInRange(v, "heading", 0, 360)
		if err != nil {
			return err
		}
		point.HeadingDeg = heading
	}

	flight, ok := byFlight[flightID]
	if !ok {
		flight = &models.Flight{
			FlightID:    flightID,
			AircraftID:  get("aircraft_id"),
			Origin:      get("origin"),
			Destination: get("destination"),
		}
		byFlight[flightID] = flight
	}
	flight.Points = append(flight.Points, point)
	return nil
}

func parseFloatInRange(value, field string, min, max float64) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty %s", field)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, value)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s %v outside [%v, %v]", field, v, min, max)
	}
	return v, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	// Unix seconds
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
