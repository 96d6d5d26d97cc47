package experiment

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/onnwee/listrank/internal/predlog"
)

// MinSpearmanPairs is the fewest complete pairs Spearman will use.
const MinSpearmanPairs = 2

// Pairs holds parallel predicted and observed ratings for one model.
type Pairs struct {
	Predicted []float64
	Actual    []float64
}

// GroupByModel collects the logged predictions of each model. Entries
// without a prediction or model name are skipped.
func GroupByModel(entries []predlog.Entry) map[string][]float64 {
	out := make(map[string][]float64)
	for _, e := range entries {
		if e.ModelName == "" || e.Prediction == nil {
			continue
		}
		out[e.ModelName] = append(out[e.ModelName], *e.Prediction)
	}
	return out
}

// PairsByModel collects (predicted, actual) pairs per model from entries
// whose input snapshot carries an observed rating.
func PairsByModel(entries []predlog.Entry) map[string]Pairs {
	out := make(map[string]Pairs)
	for _, e := range entries {
		if e.ModelName == "" || e.Prediction == nil {
			continue
		}
		actual, ok := e.ActualRating()
		if !ok {
			continue
		}
		p := out[e.ModelName]
		p.Predicted = append(p.Predicted, *e.Prediction)
		p.Actual = append(p.Actual, actual)
		out[e.ModelName] = p
	}
	return out
}

// ModelReport is the analysis of one model.
type ModelReport struct {
	Name        string        `yaml:"name"`
	Predictions Summary       `yaml:"predictions"`
	Errors      *ErrorMetrics `yaml:"errors,omitempty"`
	// ErrorsSkipped explains why Errors is absent.
	ErrorsSkipped string `yaml:"errors_skipped,omitempty"`
}

// Comparison is the significance analysis of one pair of models.
type Comparison struct {
	ModelA      string     `yaml:"model_a"`
	ModelB      string     `yaml:"model_b"`
	MeanA       float64    `yaml:"mean_a"`
	MeanB       float64    `yaml:"mean_b"`
	MeanDiff    float64    `yaml:"mean_diff"`
	TTest       TestResult `yaml:"t_test"`
	MannWhitney TestResult `yaml:"mann_whitney"`
}

// Report is the full offline analysis of a prediction log.
type Report struct {
	GeneratedAt time.Time     `yaml:"generated_at"`
	Entries     int           `yaml:"entries"`
	Models      []ModelReport `yaml:"models"`
	Comparisons []Comparison  `yaml:"comparisons"`
	// InsufficientModels is set when fewer than two models have enough
	// samples to compare.
	InsufficientModels bool `yaml:"insufficient_models"`
}

// Analyze builds a report from log entries.
func Analyze(entries []predlog.Entry, now time.Time) Report {
	r := AnalyzeGroups(GroupByModel(entries), PairsByModel(entries))
	r.GeneratedAt = now
	r.Entries = len(entries)
	return r
}

// AnalyzeGroups builds a report from pre-grouped data. A model whose pairs
// are unusable gets ErrorsSkipped set; the rest of the report is unaffected.
func AnalyzeGroups(predictions map[string][]float64, pairs map[string]Pairs) Report {
	var r Report

	names := make([]string, 0, len(predictions))
	for name := range predictions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mr := ModelReport{Name: name, Predictions: Describe(predictions[name])}
		p, ok := pairs[name]
		switch {
		case !ok:
			mr.ErrorsSkipped = "no observed ratings"
		default:
			m, err := ComputeErrorMetrics(p.Predicted, p.Actual)
			if err != nil {
				mr.ErrorsSkipped = err.Error()
			} else {
				mr.Errors = &m
			}
		}
		r.Models = append(r.Models, mr)
	}

	r.Comparisons, r.InsufficientModels = CompareModels(names, predictions)
	return r
}

// CompareModels tests every unordered pair of models that both have at
// least MinSamples predictions, in name order. insufficient is true when
// fewer than two models qualify.
func CompareModels(names []string, predictions map[string][]float64) (comparisons []Comparison, insufficient bool) {
	var eligible []string
	for _, name := range names {
		if len(predictions[name]) >= MinSamples {
			eligible = append(eligible, name)
		}
	}
	if len(eligible) < 2 {
		return nil, true
	}

	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			a, b := predictions[eligible[i]], predictions[eligible[j]]
			// sizes were checked above, so neither test can fail
			tt, _ := TTest(a, b)
			mw, _ := MannWhitneyU(a, b)
			meanA, meanB := stat.Mean(a, nil), stat.Mean(b, nil)
			comparisons = append(comparisons, Comparison{
				ModelA:      eligible[i],
				ModelB:      eligible[j],
				MeanA:       meanA,
				MeanB:       meanB,
				MeanDiff:    meanA - meanB,
				TTest:       tt,
				MannWhitney: mw,
			})
		}
	}
	return comparisons, false
}

// Spearman returns the Spearman rank correlation of x and y over the
// positions where both are present and finite. It returns nil when fewer than
// minPairs positions qualify or the correlation is undefined.
func Spearman(x, y []*float64, minPairs int) *float64 {
	var xs, ys []float64
	for i := 0; i < len(x) && i < len(y); i++ {
		if x[i] == nil || y[i] == nil || !finite(*x[i]) || !finite(*y[i]) {
			continue
		}
		xs = append(xs, *x[i])
		ys = append(ys, *y[i])
	}
	if len(xs) < minPairs || len(xs) < 2 {
		return nil
	}
	rho := stat.Correlation(ranks(xs), ranks(ys), nil)
	if math.IsNaN(rho) {
		return nil
	}
	return &rho
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
