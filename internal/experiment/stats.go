package experiment

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric errors
var (
	ErrEmptySample    = errors.New("sample is empty")
	ErrLengthMismatch = errors.New("predicted and actual lengths differ")
)

// Summary holds descriptive statistics of one sample. The zero Summary
// describes an empty sample.
type Summary struct {
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	Median float64 `yaml:"median"`
	StdDev float64 `yaml:"std"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	P25    float64 `yaml:"p25"`
	P75    float64 `yaml:"p75"`
}

// Empty reports whether the summary describes no values.
func (s Summary) Empty() bool {
	return s.Count == 0
}

// Describe computes descriptive statistics. An empty input gives the zero
// Summary.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	return Summary{
		Count:  len(sorted),
		Mean:   mean,
		Median: percentileSorted(sorted, 0.5),
		StdDev: std,
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		P25:    percentileSorted(sorted, 0.25),
		P75:    percentileSorted(sorted, 0.75),
	}
}

// Percentile returns the p-quantile (p in [0, 1]) of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySample
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return percentileSorted(sorted, p), nil
}

func percentileSorted(sorted []float64, p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// ErrorMetrics compares predictions with observed ratings.
type ErrorMetrics struct {
	N       int     `yaml:"n"`
	MAE     float64 `yaml:"mae"`
	RMSE    float64 `yaml:"rmse"`
	Pearson float64 `yaml:"pearson"` // NaN when either side is constant
}

// ComputeErrorMetrics returns MAE, RMSE and the Pearson correlation of
// predicted against actual. Both must be non-empty and of equal length.
func ComputeErrorMetrics(predicted, actual []float64) (ErrorMetrics, error) {
	if len(predicted) != len(actual) {
		return ErrorMetrics{}, ErrLengthMismatch
	}
	if len(predicted) == 0 {
		return ErrorMetrics{}, ErrEmptySample
	}
	n := float64(len(predicted))
	m := ErrorMetrics{
		N:    len(predicted),
		MAE:  floats.Distance(predicted, actual, 1) / n,
		RMSE: floats.Distance(predicted, actual, 2) / math.Sqrt(n),
	}
	if len(predicted) < 2 {
		m.Pearson = math.NaN()
	} else {
		m.Pearson = stat.Correlation(predicted, actual, nil)
	}
	return m, nil
}

// ranks returns 1-based ranks of values with ties given their average rank.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		}
		return 0
	})

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		// positions i..j-1 share ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}
