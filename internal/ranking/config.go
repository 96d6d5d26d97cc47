package ranking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Defaults used when blending is configured in code rather than from a bundle.
const (
	DefaultMinReviews   = 5
	DefaultRatingWeight = 5.0
)

// Config field names as they appear in a bundle's config artifact.
const (
	KeyMinReviews   = "min_reviews"
	KeyRatingWeight = "rating_weight"
)

// ErrInvalidConfig is the sentinel wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("invalid model config")

// ConfigError describes why a bundle config was rejected.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// BlendConfig holds the per-bundle blending parameters.
type BlendConfig struct {
	MinReviews   int     `json:"min_reviews" yaml:"min_reviews"`
	RatingWeight float64 `json:"rating_weight" yaml:"rating_weight"`
}

// DefaultBlendConfig returns the parameters used by the reference models.
func DefaultBlendConfig() BlendConfig {
	return BlendConfig{MinReviews: DefaultMinReviews, RatingWeight: DefaultRatingWeight}
}

// Validate checks the parameter ranges.
func (c BlendConfig) Validate() error {
	if c.MinReviews < 0 {
		return &ConfigError{Reason: fmt.Sprintf("'%s' must be a non-negative integer", KeyMinReviews)}
	}
	if c.RatingWeight < 0 || math.IsNaN(c.RatingWeight) {
		return &ConfigError{Reason: fmt.Sprintf("'%s' must be a non-negative number", KeyRatingWeight)}
	}
	return nil
}

// Blend applies the configured parameters to one listing.
func (c BlendConfig) Blend(actual, predicted *float64, reviewCount int) float64 {
	return Blend(actual, predicted, reviewCount, c.MinReviews, c.RatingWeight)
}

// ParseBlendConfig decodes and validates a config artifact. Both fields are
// required; min_reviews must be an integer literal, rating_weight any number.
// Every failure is a *ConfigError.
func ParseBlendConfig(data []byte) (BlendConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("Invalid JSON in config file: %v", err)}
	}
	if dec.More() {
		return BlendConfig{}, &ConfigError{Reason: "Invalid JSON in config file: trailing data"}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return BlendConfig{}, &ConfigError{Reason: "Config file must contain a JSON object"}
	}

	var cfg BlendConfig

	raw, ok := obj[KeyMinReviews]
	if !ok {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("Config file must contain '%s' field", KeyMinReviews)}
	}
	num, ok := raw.(json.Number)
	if !ok {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("'%s' must be a non-negative integer", KeyMinReviews)}
	}
	n, err := num.Int64()
	if err != nil || n < 0 {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("'%s' must be a non-negative integer", KeyMinReviews)}
	}
	cfg.MinReviews = int(n)

	raw, ok = obj[KeyRatingWeight]
	if !ok {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("Config file must contain '%s' field", KeyRatingWeight)}
	}
	num, ok = raw.(json.Number)
	if !ok {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("'%s' must be a non-negative number", KeyRatingWeight)}
	}
	w, err := num.Float64()
	if err != nil || w < 0 {
		return BlendConfig{}, &ConfigError{Reason: fmt.Sprintf("'%s' must be a non-negative number", KeyRatingWeight)}
	}
	cfg.RatingWeight = w

	return cfg, nil
}

// MarshalConfig encodes cfg in the artifact format accepted by ParseBlendConfig.
func MarshalConfig(cfg BlendConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(cfg, "", "  ")
}
