package experiment

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onnwee/listrank/internal/predlog"
)

func entry(model string, prediction *float64, actual any) predlog.Entry {
	input := map[string]any{"id": 1}
	if actual != nil {
		input["review_scores_rating"] = actual
	}
	return predlog.Entry{ModelName: model, Prediction: prediction, InputData: input}
}

func f(v float64) *float64 { return &v }

func TestGroupByModel(t *testing.T) {
	entries := []predlog.Entry{
		entry("a", f(4.1), nil),
		entry("b", f(3.0), nil),
		entry("a", nil, 4.5), // enough reviews, no prediction
		entry("", f(2.0), nil),
		entry("a", f(4.3), nil),
	}

	got := GroupByModel(entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 models, got %d", len(got))
	}
	if len(got["a"]) != 2 || got["a"][0] != 4.1 || got["a"][1] != 4.3 {
		t.Errorf("unexpected predictions for a: %v", got["a"])
	}
	if len(got["b"]) != 1 {
		t.Errorf("unexpected predictions for b: %v", got["b"])
	}
}

func TestPairsByModel(t *testing.T) {
	entries := []predlog.Entry{
		entry("a", f(4.0), 4.5),
		entry("a", f(3.0), nil),
		entry("a", f(2.0), "not a number"),
		entry("b", f(1.0), 2.0),
	}

	got := PairsByModel(entries)
	if p := got["a"]; len(p.Predicted) != 1 || p.Predicted[0] != 4.0 || p.Actual[0] != 4.5 {
		t.Errorf("unexpected pairs for a: %+v", p)
	}
	if p := got["b"]; len(p.Actual) != 1 || p.Actual[0] != 2.0 {
		t.Errorf("unexpected pairs for b: %+v", p)
	}
}

func TestAnalyzeGroups_MetricErrorDoesNotAbort(t *testing.T) {
	predictions := map[string][]float64{
		"a": {1, 2, 3},
		"b": {2, 3, 4},
	}
	pairs := map[string]Pairs{
		"a": {Predicted: []float64{1, 2}, Actual: []float64{1}},
		"b": {Predicted: []float64{2, 3}, Actual: []float64{2, 4}},
	}

	r := AnalyzeGroups(predictions, pairs)
	if len(r.Models) != 2 {
		t.Fatalf("expected 2 model reports, got %d", len(r.Models))
	}
	a, b := r.Models[0], r.Models[1]
	if a.Name != "a" || b.Name != "b" {
		t.Fatalf("models not in name order: %s, %s", a.Name, b.Name)
	}
	if a.Errors != nil || !strings.Contains(a.ErrorsSkipped, ErrLengthMismatch.Error()) {
		t.Errorf("expected skipped errors for a, got %+v", a)
	}
	if b.Errors == nil || b.Errors.N != 2 {
		t.Errorf("expected error metrics for b, got %+v", b)
	}
	if len(r.Comparisons) != 1 || r.InsufficientModels {
		t.Errorf("expected one comparison, got %+v", r.Comparisons)
	}
}

func TestAnalyzeGroups_NoObservedRatings(t *testing.T) {
	r := AnalyzeGroups(map[string][]float64{"a": {1, 2}}, nil)
	if r.Models[0].ErrorsSkipped != "no observed ratings" {
		t.Errorf("unexpected skip reason %q", r.Models[0].ErrorsSkipped)
	}
}

func TestCompareModels(t *testing.T) {
	tests := []struct {
		name         string
		predictions  map[string][]float64
		wantPairs    int
		insufficient bool
	}{
		{"no models", map[string][]float64{}, 0, true},
		{"single model", map[string][]float64{"a": {1, 2, 3}}, 0, true},
		{"second model too small", map[string][]float64{"a": {1, 2, 3}, "b": {4}}, 0, true},
		{"two models", map[string][]float64{"a": sampleA, "b": sampleB}, 1, false},
		{"three models", map[string][]float64{"a": sampleA, "b": sampleB, "c": {9, 8, 7}}, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, 0, len(tt.predictions))
			for _, n := range []string{"a", "b", "c"} {
				if _, ok := tt.predictions[n]; ok {
					names = append(names, n)
				}
			}
			got, insufficient := CompareModels(names, tt.predictions)
			if insufficient != tt.insufficient {
				t.Errorf("expected insufficient=%v, got %v", tt.insufficient, insufficient)
			}
			if len(got) != tt.wantPairs {
				t.Errorf("expected %d comparisons, got %d", tt.wantPairs, len(got))
			}
		})
	}
}

func TestCompareModels_WorkedExample(t *testing.T) {
	got, _ := CompareModels([]string{"a", "b"}, map[string][]float64{"a": sampleA, "b": sampleB})
	c := got[0]
	approx(t, "mean diff", c.MeanDiff, -2, 1e-9)
	approx(t, "t", c.TTest.Statistic, -2, 1e-9)
	approx(t, "U", c.MannWhitney.Statistic, 4.5, 1e-9)
	if c.TTest.Significant || c.MannWhitney.Significant {
		t.Error("worked example must not be significant")
	}
}

func TestSpearman(t *testing.T) {
	tests := []struct {
		name string
		x, y []*float64
		want *float64
	}{
		{
			name: "missing actual excluded",
			x:    []*float64{f(4.0), nil, f(3.0), f(5.0)},
			y:    []*float64{f(4.1), f(2.0), f(3.2), f(4.9)},
			want: f(1),
		},
		{
			name: "reversed order",
			x:    []*float64{f(1), f(2), f(3)},
			y:    []*float64{f(3), f(2), f(1)},
			want: f(-1),
		},
		{
			name: "single pair",
			x:    []*float64{f(4.0), nil},
			y:    []*float64{f(4.0), f(3.0)},
		},
		{
			name: "constant ratings",
			x:    []*float64{f(4), f(4), f(4)},
			y:    []*float64{f(1), f(2), f(3)},
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Spearman(tt.x, tt.y, MinSpearmanPairs)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %f", *got)
			case tt.want != nil && got == nil:
				t.Errorf("expected %f, got nil", *tt.want)
			case tt.want != nil:
				approx(t, "rho", *got, *tt.want, 1e-9)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := []predlog.Entry{
		entry("a", f(4.0), 4.2),
		entry("a", f(3.5), nil),
		entry("b", f(2.5), 3.0),
		entry("b", f(2.0), nil),
		entry("b", nil, 4.8),
	}

	r := Analyze(entries, now)
	if r.Entries != 5 || !r.GeneratedAt.Equal(now) {
		t.Errorf("unexpected header: entries=%d generated=%s", r.Entries, r.GeneratedAt)
	}
	if len(r.Models) != 2 || r.Models[0].Predictions.Count != 2 || r.Models[1].Predictions.Count != 2 {
		t.Errorf("unexpected models: %+v", r.Models)
	}
	if len(r.Comparisons) != 1 {
		t.Errorf("expected one comparison, got %d", len(r.Comparisons))
	}
}

func TestRender(t *testing.T) {
	r := AnalyzeGroups(
		map[string][]float64{"a": sampleA, "b": sampleB, "c": {2}},
		map[string]Pairs{"a": {Predicted: []float64{2, 2}, Actual: []float64{1, 3}}},
	)
	r.Entries = 11

	var text bytes.Buffer
	if err := Render(&text, r, FormatText); err != nil {
		t.Fatalf("Render text: %v", err)
	}
	out := text.String()
	for _, want := range []string{"11 entries", "a vs b", "skipped: no observed ratings", "n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}

	var y bytes.Buffer
	if err := Render(&y, r, FormatYAML); err != nil {
		t.Fatalf("Render yaml: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(y.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid YAML: %v\n%s", err, y.String())
	}
	if decoded["entries"] != 11 {
		t.Errorf("expected entries 11, got %v", decoded["entries"])
	}
	models, ok := decoded["models"].([]any)
	if !ok || len(models) != 3 {
		t.Errorf("expected 3 models in YAML, got %v", decoded["models"])
	}
}

func TestRender_InsufficientModels(t *testing.T) {
	r := AnalyzeGroups(map[string][]float64{"a": {1, 2}}, nil)
	var buf bytes.Buffer
	if err := RenderText(&buf, r); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if !strings.Contains(buf.String(), "Insufficient models") {
		t.Errorf("expected insufficient models notice:\n%s", buf.String())
	}
}

func TestRender_ModelWithoutPredictions(t *testing.T) {
	r := AnalyzeGroups(map[string][]float64{"idle": nil}, nil)
	var buf bytes.Buffer
	if err := RenderText(&buf, r); err != nil {
		t.Fatalf("RenderText: %v", err)
	}

	want := []string{"idle", "0", "-", "-", "-", "-", "-", "-", "-"}
	for _, line := range strings.Split(buf.String(), "\n") {
		if fields := strings.Fields(line); slices.Equal(fields, want) {
			return
		}
	}
	t.Errorf("expected a dashed summary row for idle:\n%s", buf.String())
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderText(&buf, Report{}); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if !strings.Contains(buf.String(), "No predictions logged") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, Report{}, "xml")
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if errors.Is(err, ErrEmptySample) {
		t.Errorf("unexpected error type: %v", err)
	}
}
