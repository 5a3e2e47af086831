package spatial

import "math"

// CircularMean calculates the mean of circular data (angles in radians)
func CircularMean(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}

	var sumSin, sumCos float64
	for _, angle := range angles {
		sumSin += math.Sin(angle)
		sumCos += math.Cos(angle)
	}

	return math.Atan2(sumSin, sumCos)
}

// MeanResultantLength calculates the mean resultant length (R).
// R ranges from 0 (uniform distribution) to 1 (all angles identical).
func MeanResultantLength(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}

	var sumSin, sumCos float64
	for _, angle := range angles {
		sumSin += math.Sin(angle)
		sumCos += math.Cos(angle)
	}

	r := math.Sqrt(sumSin*sumSin+sumCos*sumCos) / float64(len(angles))
	return r
}

// CircularVariance calculates the circular variance (1 - R)
// where R is the mean resultant length
func CircularVariance(angles []float64) float64 {
	return 1 - MeanResultantLength(angles)
}

// CircularVarianceDegrees calculates the circular variance of angles given
// in degrees (e.g. bearings)
func CircularVarianceDegrees(angles []float64) float64 {
	radians := make([]float64, len(angles))
	for i, angle := range angles {
		radians[i] = angle * math.Pi / 180
	}
	return CircularVariance(radians)
}
