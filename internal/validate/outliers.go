package validate

import (
	"math"
	"sort"
)

// OutlierMethod selects the detection strategy for Outliers.
type OutlierMethod string

const (
	// OutlierZScore flags values more than threshold standard deviations
	// from the mean. Typical threshold: 3.0.
	OutlierZScore OutlierMethod = "zscore"
	// OutlierIQR flags values outside Q1-threshold*IQR .. Q3+threshold*IQR.
	// Typical threshold: 1.5.
	OutlierIQR OutlierMethod = "iqr"
)

// Outliers returns the indices of outlier values. Fewer than three values
// is not enough data and yields no outliers.
func Outliers(values []float64, method OutlierMethod, threshold float64) []int {
	if len(values) < 3 {
		return nil
	}

	switch method {
	case OutlierIQR:
		return iqrOutliers(values, threshold)
	default:
		return zscoreOutliers(values, threshold)
	}
}

func zscoreOutliers(values []float64, threshold float64) []int {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(sq / float64(len(values)-1))
	if stdev == 0 {
		return nil
	}

	var out []int
	for i, v := range values {
		if math.Abs((v-mean)/stdev) > threshold {
			out = append(out, i)
		}
	}
	return out
}

func iqrOutliers(values []float64, threshold float64) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[(3*n)/4]
	iqr := q3 - q1

	lower := q1 - threshold*iqr
	upper := q3 + threshold*iqr

	var out []int
	for i, v := range values {
		if v < lower || v > upper {
			out = append(out, i)
		}
	}
	return out
}
