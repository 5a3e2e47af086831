package service

import (
	"context"
	"fmt"
	"io"

	"github.com/kvbxss/RouteAnomalyDetection/internal/ingest"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
	"github.com/kvbxss/RouteAnomalyDetection/internal/repository"
)

// FlightService handles business logic for flight ingestion and lookup
type FlightService struct {
	flightRepo *repository.FlightRepository
}

// NewFlightService creates a new flight service
func NewFlightService(flightRepo *repository.FlightRepository) *FlightService {
	return &FlightService{flightRepo: flightRepo}
}

// IngestResult is the outcome of one CSV upload
type IngestResult struct {
	Rows          int      `json:"rows"`
	AcceptedRows  int      `json:"accepted_rows"`
	FlightsStored int      `json:"flights_stored"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// IngestCSV parses uploaded CSV flight data and stores the valid flights.
// Row-level errors are reported back, not fatal.
func (s *FlightService) IngestCSV(ctx context.Context, r io.Reader) (*IngestResult, error) {
	parsed, err := ingest.ParseCSV(r)
	if err != nil {
		return nil, err
	}

	stored, err := s.flightRepo.SaveFlights(ctx, parsed.Flights)
	if err != nil {
		return nil, fmt.Errorf("failed to store flights: %w", err)
	}

	return &IngestResult{
		Rows:          parsed.Rows,
		AcceptedRows:  parsed.Accepted,
		FlightsStored: stored,
		Errors:        parsed.Errors,
		Warnings:      parsed.Warnings,
	}, nil
}

// ListFlights returns flight summaries with filtering and pagination
func (s *FlightService) ListFlights(ctx context.Context, filter models.FlightFilter) ([]models.FlightSummary, int64, error) {
	return s.flightRepo.ListSummaries(ctx, filter)
}

// GetFlight returns one flight with its trajectory, or nil if unknown
func (s *FlightService) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	if id == "" {
		return nil, fmt.Errorf("flight id is required")
	}
	return s.flightRepo.GetFlight(ctx, id)
}
