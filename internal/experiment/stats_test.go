package experiment

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: expected %.6f, got %.6f", name, want, got)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Summary
	}{
		{
			name:   "odd count",
			values: []float64{5, 1, 4, 2, 3},
			want:   Summary{Count: 5, Mean: 3, Median: 3, StdDev: math.Sqrt2, Min: 1, Max: 5, P25: 2, P75: 4},
		},
		{
			name:   "even count interpolates",
			values: []float64{4, 3, 2, 1},
			want:   Summary{Count: 4, Mean: 2.5, Median: 2.5, StdDev: math.Sqrt(1.25), Min: 1, Max: 4, P25: 1.75, P75: 3.25},
		},
		{
			name:   "single value",
			values: []float64{4.2},
			want:   Summary{Count: 1, Mean: 4.2, Median: 4.2, Min: 4.2, Max: 4.2, P25: 4.2, P75: 4.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.values)
			if got.Count != tt.want.Count {
				t.Fatalf("expected count %d, got %d", tt.want.Count, got.Count)
			}
			approx(t, "mean", got.Mean, tt.want.Mean, 1e-9)
			approx(t, "median", got.Median, tt.want.Median, 1e-9)
			approx(t, "std", got.StdDev, tt.want.StdDev, 1e-9)
			approx(t, "min", got.Min, tt.want.Min, 1e-9)
			approx(t, "max", got.Max, tt.want.Max, 1e-9)
			approx(t, "p25", got.P25, tt.want.P25, 1e-9)
			approx(t, "p75", got.P75, tt.want.P75, 1e-9)
		})
	}
}

func TestDescribe_Empty(t *testing.T) {
	if s := Describe(nil); !s.Empty() {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

func TestDescribe_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Describe(values)
	if !slices.Equal(values, []float64{3, 1, 2}) {
		t.Errorf("input reordered: %v", values)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	for _, tt := range []struct{ p, want float64 }{{0, 10}, {0.1, 14}, {0.5, 30}, {0.9, 46}, {1, 50}} {
		got, err := Percentile(values, tt.p)
		if err != nil {
			t.Fatalf("Percentile: %v", err)
		}
		approx(t, "percentile", got, tt.want, 1e-9)
	}
	if _, err := Percentile(nil, 0.5); !errors.Is(err, ErrEmptySample) {
		t.Errorf("expected ErrEmptySample, got %v", err)
	}
}

func TestComputeErrorMetrics(t *testing.T) {
	m, err := ComputeErrorMetrics([]float64{1, 2, 3}, []float64{2, 2, 5})
	if err != nil {
		t.Fatalf("ComputeErrorMetrics: %v", err)
	}
	if m.N != 3 {
		t.Errorf("expected N=3, got %d", m.N)
	}
	approx(t, "mae", m.MAE, 1, 1e-9)
	approx(t, "rmse", m.RMSE, math.Sqrt(5.0/3.0), 1e-9)
	approx(t, "pearson", m.Pearson, 3/math.Sqrt(12), 1e-9)
}

func TestComputeErrorMetrics_Errors(t *testing.T) {
	if _, err := ComputeErrorMetrics([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := ComputeErrorMetrics(nil, nil); !errors.Is(err, ErrEmptySample) {
		t.Errorf("expected ErrEmptySample, got %v", err)
	}
}

func TestComputeErrorMetrics_ConstantPearsonIsNaN(t *testing.T) {
	m, err := ComputeErrorMetrics([]float64{3, 3, 3}, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("ComputeErrorMetrics: %v", err)
	}
	if !math.IsNaN(m.Pearson) {
		t.Errorf("expected NaN correlation, got %f", m.Pearson)
	}
}

func TestRanks(t *testing.T) {
	got := ranks([]float64{10, 20, 20, 5, 30, 20})
	want := []float64{2, 4, 4, 1, 6, 4}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
