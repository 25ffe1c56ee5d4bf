// Package stats implements the robust statistics used by the timing probe.
package stats

import (
	"math"
	"slices"
	"time"
)

// Median returns the median of values without modifying the slice. For an
// even number of values it returns the mean of the two middle values. It
// returns NaN for an empty slice.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD returns the median absolute deviation of values around center.
func MAD(values []float64, center float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - center)
	}
	return Median(deviations)
}

// MedianDuration returns the median of a set of durations.
func MedianDuration(samples []time.Duration) (time.Duration, bool) {
	if len(samples) == 0 {
		return 0, false
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = float64(s)
	}
	return time.Duration(Median(values)), true
}
