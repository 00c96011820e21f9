package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Shared statistical helpers used across the analysis packages, backed by
// gonum where a direct equivalent exists. All helpers are total: malformed
// input (empty slices, mismatched lengths) yields a zero result, never a
// panic, so the pipeline stays side-effect free.

// Mean calculates the arithmetic mean of a slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopVariance calculates the population variance of a slice
func PopVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	mean := stat.Mean(data, nil)
	sum := 0.0
	for _, v := range data {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(data))
}

// PopStdDev calculates the population standard deviation of a slice
func PopStdDev(data []float64) float64 {
	return math.Sqrt(PopVariance(data))
}

// StdDev calculates the sample standard deviation of a slice
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(stat.Variance(data, nil))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// Median returns the median of a slice without mutating it
func Median(data []float64) float64 {
	return Percentile(data, 0.5)
}

// Percentile calculates the p-th percentile (p between 0 and 1) by sorting
// a copy and indexing at round(p*(n-1)). Deliberately a nearest-rank
// lookup rather than an interpolating quantile: downstream feature
// normalization depends on this exact tie-breaking.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 1 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	idx := int(math.Round(p * float64(len(sorted)-1)))
	return sorted[idx]
}

// Clamp limits v to the closed range [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MinMax returns the minimum and maximum of a slice
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0.0, 0.0
	}
	return floats.Min(data), floats.Max(data)
}

// Correlation calculates the Pearson correlation coefficient between two
// equal-length series; mismatched or too-short input yields 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0.0
	}
	return r
}

// LinearSlope performs simple least-squares regression of y on x and
// returns the slope. Mismatched or degenerate input yields 0.
func LinearSlope(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}

	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0.0
	}
	return beta
}

// Diff returns the first differences of a series (len n-1)
func Diff(data []float64) []float64 {
	if len(data) < 2 {
		return []float64{}
	}

	out := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		out[i-1] = data[i] - data[i-1]
	}
	return out
}
