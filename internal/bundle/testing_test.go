package bundle

import (
	"context"
	"testing"
)

const (
	testPredictor   = `{"kind": "linear", "intercept": 3.5, "coefficients": {"num__accommodates": 0.1}}`
	testTransformer = `{"kind": "column", "numeric": [{"name": "accommodates", "impute": 2, "mean": 2, "scale": 1}]}`
	testConfig      = `{"min_reviews": 5, "rating_weight": 5}`
)

func validArtifacts() []Artifact {
	return []Artifact{
		{Filename: FilePredictor, Data: []byte(testPredictor)},
		{Filename: FileTransformer, Data: []byte(testTransformer)},
		{Filename: FileConfig, Data: []byte(testConfig)},
	}
}

func withArtifact(filename, data string) []Artifact {
	out := validArtifacts()
	for i := range out {
		if out[i].Filename == filename {
			out[i].Data = []byte(data)
		}
	}
	return out
}

func mustRegister(t *testing.T, r *Router, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := r.Register(context.Background(), name, validArtifacts()); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
}
