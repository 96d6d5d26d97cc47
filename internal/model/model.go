// Package model defines the scoring capabilities a bundle provides and the
// JSON artifact formats that implement them.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/onnwee/listrank/internal/listing"
)

// Features is a named numeric feature vector.
type Features map[string]float64

// Predictor turns a feature vector into a rating estimate.
type Predictor interface {
	Predict(features Features) (float64, error)
}

// FeatureTransformer turns a raw listing into a feature vector.
type FeatureTransformer interface {
	Transform(l listing.Listing) (Features, error)
}

// Artifact errors
var (
	ErrUnknownKind     = errors.New("unknown artifact kind")
	ErrMalformed       = errors.New("malformed artifact")
	ErrInvalidFeature  = errors.New("invalid feature value")
	ErrNonFiniteOutput = errors.New("prediction is not finite")
)

// PredictorDecoder builds a Predictor from its artifact bytes.
type PredictorDecoder func(data []byte) (Predictor, error)

// TransformerDecoder builds a FeatureTransformer from its artifact bytes.
type TransformerDecoder func(data []byte) (FeatureTransformer, error)

var (
	registryMu   sync.RWMutex
	predictors   = map[string]PredictorDecoder{KindLinear: decodeLinear}
	transformers = map[string]TransformerDecoder{KindColumn: decodeColumn}
)

// RegisterPredictor makes a predictor kind available to DecodePredictor.
// Registering an existing kind replaces it.
func RegisterPredictor(kind string, dec PredictorDecoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	predictors[kind] = dec
}

// RegisterTransformer makes a transformer kind available to DecodeTransformer.
func RegisterTransformer(kind string, dec TransformerDecoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	transformers[kind] = dec
}

// Kinds returns the registered predictor and transformer kinds, sorted.
func Kinds() (predictorKinds, transformerKinds []string) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for k := range predictors {
		predictorKinds = append(predictorKinds, k)
	}
	for k := range transformers {
		transformerKinds = append(transformerKinds, k)
	}
	sort.Strings(predictorKinds)
	sort.Strings(transformerKinds)
	return predictorKinds, transformerKinds
}

type header struct {
	Kind string `json:"kind"`
}

func readKind(data []byte) (string, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if h.Kind == "" {
		return "", fmt.Errorf("%w: missing \"kind\"", ErrMalformed)
	}
	return h.Kind, nil
}

// DecodePredictor builds a predictor from an artifact whose "kind" field
// selects the implementation.
func DecodePredictor(data []byte) (Predictor, error) {
	kind, err := readKind(data)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	dec, ok := predictors[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: predictor %q", ErrUnknownKind, kind)
	}
	return dec(data)
}

// DecodeTransformer builds a transformer from an artifact whose "kind" field
// selects the implementation.
func DecodeTransformer(data []byte) (FeatureTransformer, error) {
	kind, err := readKind(data)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	dec, ok := transformers[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transformer %q", ErrUnknownKind, kind)
	}
	return dec(data)
}
