package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
)

// KindLinear identifies LinearPredictor artifacts.
const KindLinear = "linear"

// LinearPredictor is an ordinary linear regression:
//
//	rating = intercept + sum(coefficient_i * feature_i)
//
// Features without a coefficient are ignored and coefficients without a
// feature contribute nothing. When Clip is set the output is clamped to it.
type LinearPredictor struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Clip         *[2]float64        `json:"clip,omitempty"`

	// order fixes the summation order so equal inputs give bit-identical
	// outputs.
	order []string
}

func decodeLinear(data []byte) (Predictor, error) {
	type plain LinearPredictor
	var a plain
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p := LinearPredictor(a)
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.order = slices.Sorted(maps.Keys(p.Coefficients))
	return &p, nil
}

func (p *LinearPredictor) validate() error {
	if math.IsNaN(p.Intercept) || math.IsInf(p.Intercept, 0) {
		return fmt.Errorf("%w: intercept must be finite", ErrMalformed)
	}
	for name, c := range p.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: coefficient %q must be finite", ErrMalformed, name)
		}
	}
	if p.Clip != nil && p.Clip[0] > p.Clip[1] {
		return fmt.Errorf("%w: clip lower bound above upper bound", ErrMalformed)
	}
	return nil
}

// Predict implements Predictor.
func (p *LinearPredictor) Predict(features Features) (float64, error) {
	order := p.order
	if order == nil {
		order = slices.Sorted(maps.Keys(p.Coefficients))
	}
	score := p.Intercept
	for _, name := range order {
		if v, ok := features[name]; ok {
			score += p.Coefficients[name] * v
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, ErrNonFiniteOutput
	}
	if p.Clip != nil {
		score = math.Max(p.Clip[0], math.Min(p.Clip[1], score))
	}
	return score, nil
}

// MarshalJSON writes the artifact form, including its kind.
func (p LinearPredictor) MarshalJSON() ([]byte, error) {
	type plain LinearPredictor
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: KindLinear, plain: plain(p)})
}
