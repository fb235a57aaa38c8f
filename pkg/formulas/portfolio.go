// Package formulas provides small numeric helpers used by the portfolio model.
package formulas

import "gonum.org/v1/gonum/floats"

// Sum returns the sum of values, or 0 for an empty slice.
func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// Max returns the largest value, or 0 for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

// Products returns the element-wise products a[i]*b[i].
// Panics if the slices differ in length.
func Products(a, b []float64) []float64 {
	dst := make([]float64, len(a))
	if len(a) == 0 {
		return dst
	}
	floats.MulTo(dst, a, b)
	return dst
}
