package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"single", []float64{3}, 3},
		{"odd", []float64{5, 1, 3}, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"skewed", []float64{1, 1, 1, 1, 100}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Median(tt.values), 1e-12)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMedian_Empty(t *testing.T) {
	assert.True(t, math.IsNaN(Median(nil)))
	assert.True(t, math.IsNaN(MAD(nil, 0)))
}

func TestMAD(t *testing.T) {
	values := []float64{1, 1, 2, 2, 4, 6, 9}
	center := Median(values)

	assert.InDelta(t, 2.0, center, 1e-12)
	assert.InDelta(t, 1.0, MAD(values, center), 1e-12)
}

func TestMAD_Identical(t *testing.T) {
	values := []float64{0.2, 0.2, 0.2}
	assert.Equal(t, 0.0, MAD(values, Median(values)))
}

func TestMedianDuration(t *testing.T) {
	d, ok := MedianDuration([]time.Duration{3 * time.Millisecond, time.Millisecond, 500 * time.Millisecond})
	assert.True(t, ok)
	assert.Equal(t, 3*time.Millisecond, d)

	_, ok = MedianDuration(nil)
	assert.False(t, ok)
}
