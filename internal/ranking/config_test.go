package ranking

import (
	"errors"
	"strings"
	"testing"
)

func TestParseBlendConfig(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		want       BlendConfig
		wantReason string
	}{
		{
			name: "valid integer weight",
			data: `{"min_reviews": 5, "rating_weight": 5}`,
			want: BlendConfig{MinReviews: 5, RatingWeight: 5},
		},
		{
			name: "valid fractional weight and extra keys",
			data: `{"min_reviews": 0, "rating_weight": 2.5, "note": "v2"}`,
			want: BlendConfig{MinReviews: 0, RatingWeight: 2.5},
		},
		{
			name:       "not json",
			data:       `{min_reviews: 5`,
			wantReason: "Invalid JSON",
		},
		{
			name:       "trailing document",
			data:       `{"min_reviews": 5, "rating_weight": 5} {}`,
			wantReason: "Invalid JSON",
		},
		{
			name:       "array instead of object",
			data:       `[5, 5]`,
			wantReason: "must contain a JSON object",
		},
		{
			name:       "missing min_reviews",
			data:       `{"rating_weight": 5}`,
			wantReason: "must contain 'min_reviews' field",
		},
		{
			name:       "missing rating_weight",
			data:       `{"min_reviews": 5}`,
			wantReason: "must contain 'rating_weight' field",
		},
		{
			name:       "negative min_reviews",
			data:       `{"min_reviews": -1, "rating_weight": 5}`,
			wantReason: "'min_reviews' must be a non-negative integer",
		},
		{
			name:       "fractional min_reviews",
			data:       `{"min_reviews": 2.5, "rating_weight": 5}`,
			wantReason: "'min_reviews' must be a non-negative integer",
		},
		{
			name:       "string min_reviews",
			data:       `{"min_reviews": "5", "rating_weight": 5}`,
			wantReason: "'min_reviews' must be a non-negative integer",
		},
		{
			name:       "negative rating_weight",
			data:       `{"min_reviews": 5, "rating_weight": -0.5}`,
			wantReason: "'rating_weight' must be a non-negative number",
		},
		{
			name:       "null rating_weight",
			data:       `{"min_reviews": 5, "rating_weight": null}`,
			wantReason: "'rating_weight' must be a non-negative number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseBlendConfig([]byte(tt.data))
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if cfg != tt.want {
					t.Errorf("expected %+v, got %+v", tt.want, cfg)
				}
				return
			}

			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if !strings.Contains(cfgErr.Reason, tt.wantReason) {
				t.Errorf("reason %q does not contain %q", cfgErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestMarshalConfig_RoundTrip(t *testing.T) {
	data, err := MarshalConfig(DefaultBlendConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := ParseBlendConfig(data)
	if err != nil {
		t.Fatalf("marshalled config rejected: %v", err)
	}
	if cfg != DefaultBlendConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestBlendConfig_Validate(t *testing.T) {
	if err := (BlendConfig{MinReviews: -1}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for negative threshold, got %v", err)
	}
	if err := (BlendConfig{RatingWeight: -1}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for negative weight, got %v", err)
	}
	if err := DefaultBlendConfig().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
