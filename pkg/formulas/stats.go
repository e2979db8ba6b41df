// Package formulas holds the numeric aggregates used by indicator expressions.
package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopulationStdDev calculates the population standard deviation (divides by N).
func PopulationStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// ExponentialSmoothing applies simple exponential smoothing to data ordered
// oldest to newest and returns the last smoothed value.
//
//	s0 = x0
//	st = alpha*xt + (1-alpha)*s(t-1)
func ExponentialSmoothing(data []float64, alpha float64) float64 {
	if len(data) == 0 {
		return 0
	}
	s := data[0]
	for _, x := range data[1:] {
		s = alpha*x + (1-alpha)*s
	}
	return s
}
