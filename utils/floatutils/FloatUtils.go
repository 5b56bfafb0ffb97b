// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r1"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipInterval is a wrapper to use Clip with an r1.Interval instead of
// a separate max and min value
func ClipInterval(value float64, interval r1.Interval) float64 {
	return Clip(value, interval.Min, interval.Max)
}

// Round rounds value to the given number of decimal places
func Round(value float64, places int) float64 {
	return scalar.Round(value, places)
}

// TrailingMean returns the mean of the last n values of a slice, or of
// the whole slice if it holds fewer than n values. The second return
// value is false if the slice is empty.
func TrailingMean(values []float64, n int) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	if n > 0 && len(values) > n {
		values = values[len(values)-n:]
	}
	return floats.Sum(values) / float64(len(values)), true
}

// ArgMax returns the index of the maximum value in a slice. Ties are
// broken toward the lowest index. ArgMax panics on an empty slice.
func ArgMax(values []float64) int {
	return floats.MaxIdx(values)
}
