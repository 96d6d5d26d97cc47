package experiment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel is the p-value below which a difference is flagged.
const SignificanceLevel = 0.05

// MinSamples is the smallest sample size a significance test accepts.
const MinSamples = 2

// exactMaxSize is the largest smaller-sample size for which the exact
// Mann–Whitney distribution is used when there are no ties.
const exactMaxSize = 8

// TestResult is the outcome of a two-sided two-sample test.
type TestResult struct {
	Statistic   float64 `yaml:"statistic"`
	PValue      float64 `yaml:"p_value"`
	Significant bool    `yaml:"significant"`
	Method      string  `yaml:"method,omitempty"`
}

func newResult(statistic, p float64, method string) TestResult {
	return TestResult{
		Statistic:   statistic,
		PValue:      p,
		Significant: !math.IsNaN(p) && p < SignificanceLevel,
		Method:      method,
	}
}

func checkSamples(a, b []float64) error {
	if len(a) < MinSamples || len(b) < MinSamples {
		return fmt.Errorf("%w: need at least %d values per sample, got %d and %d", ErrEmptySample, MinSamples, len(a), len(b))
	}
	return nil
}

// TTest runs Student's two-sample t-test with pooled variance. When both
// samples are constant the statistic and p-value are NaN.
func TTest(a, b []float64) (TestResult, error) {
	if err := checkSamples(a, b); err != nil {
		return TestResult{}, err
	}
	n1, n2 := float64(len(a)), float64(len(b))
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)

	df := n1 + n2 - 2
	pooled := ((n1-1)*varA + (n2-1)*varB) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		return newResult(math.NaN(), math.NaN(), "student"), nil
	}

	t := (meanA - meanB) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	return newResult(t, math.Min(1, p), "student"), nil
}

// MannWhitneyU runs the two-sided Mann–Whitney U test. The statistic is U
// of the first sample. Without ties and with a sample of at most 8 values
// the exact distribution is used; otherwise the normal approximation with
// tie and continuity corrections.
func MannWhitneyU(a, b []float64) (TestResult, error) {
	if err := checkSamples(a, b); err != nil {
		return TestResult{}, err
	}
	n1, n2 := len(a), len(b)

	combined := make([]float64, 0, n1+n2)
	combined = append(combined, a...)
	combined = append(combined, b...)
	r := ranks(combined)

	var r1 float64
	for _, v := range r[:n1] {
		r1 += v
	}
	u1 := r1 - float64(n1*(n1+1))/2
	u2 := float64(n1*n2) - u1
	uMax := math.Max(u1, u2)

	tieTerm := tieCorrection(combined)
	if tieTerm == 0 && min(n1, n2) <= exactMaxSize {
		p := 2 * exactUpperTail(n1, n2, int(math.Round(uMax)))
		return newResult(u1, math.Min(1, p), "exact"), nil
	}

	n := float64(n1 + n2)
	mu := float64(n1*n2) / 2
	sigma := math.Sqrt(float64(n1*n2) / 12 * ((n + 1) - tieTerm/(n*(n-1))))
	if sigma == 0 {
		return newResult(u1, 1, "asymptotic"), nil
	}
	z := (uMax - mu - 0.5) / sigma
	p := 2 * distuv.UnitNormal.Survival(z)
	return newResult(u1, math.Max(0, math.Min(1, p)), "asymptotic"), nil
}

// tieCorrection returns the sum of t^3 - t over groups of tied values.
func tieCorrection(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	var sum float64
	for _, t := range counts {
		if t > 1 {
			ft := float64(t)
			sum += ft*ft*ft - ft
		}
	}
	return sum
}

// exactUpperTail returns P(U >= u) under the null hypothesis for sample
// sizes n1 and n2 without ties.
//
// The number of arrangements giving U = k is the coefficient of q^k in the
// Gaussian binomial coefficient [n1+n2 choose m]_q with m = min(n1, n2),
// built as the product over i = 1..m of (1 - q^(n+i)) / (1 - q^i).
func exactUpperTail(n1, n2, u int) float64 {
	m, n := min(n1, n2), max(n1, n2)
	degree := m * n
	if u <= 0 {
		return 1
	}
	if u > degree {
		return 0
	}

	c := make([]float64, degree+1)
	c[0] = 1
	for i := 1; i <= m; i++ {
		// multiply by (1 - q^(n+i))
		shift := n + i
		for k := degree; k >= shift; k-- {
			c[k] -= c[k-shift]
		}
		// divide by (1 - q^i)
		for k := i; k <= degree; k++ {
			c[k] += c[k-i]
		}
	}

	var total, tail float64
	for k, v := range c {
		total += v
		if k >= u {
			tail += v
		}
	}
	return tail / total
}
