package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvbxss/RouteAnomalyDetection/internal/anomaly"
	"github.com/kvbxss/RouteAnomalyDetection/internal/database"
	"github.com/kvbxss/RouteAnomalyDetection/internal/features"
	"github.com/kvbxss/RouteAnomalyDetection/internal/iforest"
	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A pooled second connection would see its own empty in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func testFlight(id string, points int) models.Flight {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	f := models.Flight{
		FlightID:    id,
		AircraftID:  "G-TEST",
		Origin:      "LHR",
		Destination: "CDG",
		FirstSeen:   start,
	}
	for i := 0; i < points; i++ {
		f.Points = append(f.Points, models.TrackPoint{
			Timestamp:  start.Add(time.Duration(i) * time.Minute),
			Latitude:   51.0 + 0.1*float64(i),
			Longitude:  -0.4 + 0.1*float64(i),
			AltitudeFt: 10000 + 100*float64(i),
			SpeedKts:   300,
			HeadingDeg: 120,
		})
	}
	f.LastSeen = f.Points[len(f.Points)-1].Timestamp
	return f
}

func TestSaveAndListFlights(t *testing.T) {
	repo := NewFlightRepository(openTestDB(t))
	ctx := context.Background()

	stored, err := repo.SaveFlights(ctx, []models.Flight{testFlight("BAW2", 3), testFlight("AFR1", 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	flights, err := repo.ListFlights(ctx, 0)
	require.NoError(t, err)
	require.Len(t, flights, 2)
	assert.Equal(t, "AFR1", flights[0].FlightID)
	assert.Equal(t, "BAW2", flights[1].FlightID)
	assert.Len(t, flights[0].Points, 2)
	assert.Len(t, flights[1].Points, 3)
	assert.Equal(t, "G-TEST", flights[1].AircraftID)
	assert.Equal(t, 10000.0, flights[1].Points[0].AltitudeFt)
}

func TestSaveFlightsReplacesTrajectory(t *testing.T) {
	repo := NewFlightRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.SaveFlights(ctx, []models.Flight{testFlight("BAW2", 5)})
	require.NoError(t, err)

	// Re-uploading the same flight replaces its points, not appends
	_, err = repo.SaveFlights(ctx, []models.Flight{testFlight("BAW2", 2)})
	require.NoError(t, err)

	flight, err := repo.GetFlight(ctx, "BAW2")
	require.NoError(t, err)
	require.NotNil(t, flight)
	assert.Len(t, flight.Points, 2)
}

func TestGetFlightUnknown(t *testing.T) {
	repo := NewFlightRepository(openTestDB(t))

	flight, err := repo.GetFlight(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, flight)
}

func fittedArtifact(t *testing.T, id string, createdAt time.Time) *anomaly.ModelArtifact {
	t.Helper()

	data := make([][]float64, 16)
	for i := range data {
		row := make([]float64, features.Dim())
		for j := range row {
			row[j] = float64(i + j)
		}
		data[i] = row
	}

	forest := iforest.New(iforest.WithTrees(5), iforest.WithSampleSize(8))
	require.NoError(t, forest.Fit(data))

	return &anomaly.ModelArtifact{
		ID:            id,
		Model:         forest,
		FeatureNames:  features.Names(),
		Stats:         map[string]anomaly.FeatureStats{"altitude_mean": {Mean: 35000, Std: 500}},
		Contamination: 0.1,
		Threshold:     0.58,
		ScoreSpread:   0.04,
		Seed:          42,
		TrainedOn:     16,
		CreatedAt:     createdAt,
	}
}

func TestModelRepositoryLoadByID(t *testing.T) {
	repo := NewModelRepository(openTestDB(t))
	ctx := context.Background()

	saved := fittedArtifact(t, "model-a", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveArtifact(ctx, saved))

	loaded, err := repo.LoadByID(ctx, "model-a")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.ID, loaded.ID)
	assert.Equal(t, saved.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, saved.Stats, loaded.Stats)
	assert.Equal(t, saved.Threshold, loaded.Threshold)
	assert.Equal(t, saved.ScoreSpread, loaded.ScoreSpread)
	assert.Equal(t, saved.Seed, loaded.Seed)
	assert.Equal(t, saved.TrainedOn, loaded.TrainedOn)
	assert.Equal(t, saved.CreatedAt, loaded.CreatedAt)

	// The restored model scores identically to the saved one
	probe := make([]float64, features.Dim())
	for i := range probe {
		probe[i] = float64(i)
	}
	want, err := saved.Model.ScoreOne(probe)
	require.NoError(t, err)
	got, err := loaded.Model.ScoreOne(probe)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestModelRepositoryLoadByIDUnknown(t *testing.T) {
	repo := NewModelRepository(openTestDB(t))

	loaded, err := repo.LoadByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestModelRepositoryLoadLatest(t *testing.T) {
	repo := NewModelRepository(openTestDB(t))
	ctx := context.Background()

	empty, err := repo.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	older := fittedArtifact(t, "model-old", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	newer := fittedArtifact(t, "model-new", time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveArtifact(ctx, older))
	require.NoError(t, repo.SaveArtifact(ctx, newer))

	latest, err := repo.LoadLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "model-new", latest.ID)
}

func TestSaveVerdictsAndListDetections(t *testing.T) {
	repo := NewAnomalyRepository(openTestDB(t))
	ctx := context.Background()

	detectedAt := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	verdicts := []anomaly.Verdict{
		{
			FlightID: "BAW2", ModelID: "model-a", IsAnomaly: true,
			AnomalyType: models.AnomalyTypeAltitude, Score: 0.71, Confidence: 0.93,
			Breakdown:  map[string]float64{"altitude": 3.4, "speed": 0.2},
			DetectedAt: detectedAt,
		},
		{
			FlightID: "AFR1", ModelID: "model-a", IsAnomaly: false,
			Score: 0.42, Confidence: 0.02, DetectedAt: detectedAt,
		},
	}
	require.NoError(t, repo.SaveVerdicts(ctx, verdicts))

	all, err := repo.ListDetections(ctx, models.AnomalyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	flagged, err := repo.ListDetections(ctx, models.AnomalyFilter{OnlyAnomalies: true})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "BAW2", flagged[0].FlightID)
	assert.Equal(t, models.AnomalyTypeAltitude, flagged[0].AnomalyType)
	assert.Equal(t, 3.4, flagged[0].Breakdown["altitude"])
	assert.Equal(t, detectedAt, flagged[0].DetectedAt)

	byFlight, err := repo.ListDetections(ctx, models.AnomalyFilter{FlightID: "AFR1"})
	require.NoError(t, err)
	require.Len(t, byFlight, 1)
	assert.False(t, byFlight[0].IsAnomaly)
}
