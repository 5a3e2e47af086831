package features

import (
	"fmt"
	"math"

	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
	"github.com/kvbxss/RouteAnomalyDetection/internal/spatial"
	"github.com/kvbxss/RouteAnomalyDetection/internal/stats"
)

// rollingWindow is the window size for the local altitude average
const rollingWindow = 5

// Extract converts a flight trajectory into a feature vector in schema order.
// It is a pure function of the flight: the same record always yields the same
// vector. Single-point trajectories produce exactly 0 for every feature that
// needs more than one sample. NaN and Inf values are sanitized to 0 so the
// model never receives degenerate input.
//
// A flight with no trajectory points, or with points out of time order, is
// malformed and returns an error.
func Extract(flight models.Flight) ([]float64, error) {
	n := len(flight.Points)
	if n == 0 {
		return nil, fmt.Errorf("flight %s has no trajectory points", flight.FlightID)
	}

	altitudes := make([]float64, n)
	speeds := make([]float64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	for i, p := range flight.Points {
		altitudes[i] = p.AltitudeFt
		speeds[i] = p.SpeedKts
		lats[i] = p.Latitude
		lons[i] = p.Longitude
	}

	// Gaps between consecutive samples, in seconds
	gaps := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		gap := flight.Points[i].Timestamp.Sub(flight.Points[i-1].Timestamp).Seconds()
		if gap < 0 {
			return nil, fmt.Errorf("flight %s trajectory is not time-ordered at sample %d", flight.FlightID, i)
		}
		gaps = append(gaps, gap)
	}

	vector := []float64{
		// altitude family
		stats.Mean(altitudes),
		stats.StdDev(altitudes),
		maxLocalDeviation(altitudes, rollingWindow),
		// speed family
		stats.Mean(speeds),
		stats.StdDev(speeds),
		maxConsecutiveDelta(speeds),
		// route family
		routeDirectness(lats, lons),
		bearingVariance(lats, lons),
		// temporal family
		duration(flight.Points),
		stats.Mean(gaps),
		stats.Max(gaps),
	}

	sanitize(vector)
	return vector, nil
}

// maxLocalDeviation returns the largest absolute deviation of a value from
// the mean of its centered window. Captures sudden local dips and climbs that
// a global mean would smooth over.
func maxLocalDeviation(values []float64, window int) float64 {
	if len(values) < 2 {
		return 0
	}

	half := window / 2
	var max float64
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}

		dev := math.Abs(values[i] - stats.Mean(values[lo:hi]))
		if dev > max {
			max = dev
		}
	}
	return max
}

// maxConsecutiveDelta returns the largest absolute change between adjacent
// samples
func maxConsecutiveDelta(values []float64) float64 {
	var max float64
	for i := 1; i < len(values); i++ {
		delta := math.Abs(values[i] - values[i-1])
		if delta > max {
			max = delta
		}
	}
	return max
}

// routeDirectness is the ratio of the great-circle distance between the first
// and last point to the cumulative path length. A direct flight is close to
// 1; detours and zig-zags push it toward 0. A path of length 0 yields 0.
func routeDirectness(lats, lons []float64) float64 {
	pathLen := spatial.PathLength(lats, lons)
	if pathLen <= 0 {
		return 0
	}

	direct := spatial.HaversineDistance(lats[0], lons[0], lats[len(lats)-1], lons[len(lons)-1])
	return direct / pathLen
}

// bearingVariance is the circular variance of the leg bearings along the
// path. Erratic heading changes drive it toward 1.
func bearingVariance(lats, lons []float64) float64 {
	if len(lats) < 3 {
		return 0
	}

	bearings := make([]float64, 0, len(lats)-1)
	for i := 1; i < len(lats); i++ {
		bearings = append(bearings, spatial.Bearing(lats[i-1], lons[i-1], lats[i], lons[i]))
	}
	return spatial.CircularVarianceDegrees(bearings)
}

func duration(points []models.TrackPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	return points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Seconds()
}

// sanitize replaces NaN and Inf in place with 0, the documented sentinel
func sanitize(vector []float64) {
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vector[i] = 0
		}
	}
}
