package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/onnwee/listrank/internal/listing"
)

// KindColumn identifies ColumnTransformer artifacts.
const KindColumn = "column"

// Output feature name prefixes.
const (
	prefixNumeric     = "num__"
	prefixCategorical = "cat__"
	prefixBoolean     = "bool__"
)

// NumericColumn imputes a missing value and standardizes with a z-score.
type NumericColumn struct {
	Name   string  `json:"name"`
	Impute float64 `json:"impute"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalColumn one-hot encodes a value against a fixed category list.
// Unknown and missing values encode as all zeros.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	DropFirst  bool     `json:"drop_first,omitempty"`
}

// BooleanColumn maps truthy values to 1 and everything else to 0.
type BooleanColumn struct {
	Name string `json:"name"`
}

// ColumnTransformer applies per-column preprocessing to listing attributes.
// Output features are named num__<col>, cat__<col>_<category> and
// bool__<col>.
type ColumnTransformer struct {
	Numeric     []NumericColumn     `json:"numeric,omitempty"`
	Categorical []CategoricalColumn `json:"categorical,omitempty"`
	Boolean     []BooleanColumn     `json:"boolean,omitempty"`
}

func decodeColumn(data []byte) (FeatureTransformer, error) {
	type plain ColumnTransformer
	var a plain
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	t := ColumnTransformer(a)
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *ColumnTransformer) validate() error {
	seen := make(map[string]bool)
	check := func(name string) error {
		if name == "" {
			return fmt.Errorf("%w: column without a name", ErrMalformed)
		}
		if seen[name] {
			return fmt.Errorf("%w: column %q listed twice", ErrMalformed, name)
		}
		seen[name] = true
		return nil
	}
	for _, c := range t.Numeric {
		if err := check(c.Name); err != nil {
			return err
		}
		if c.Scale < 0 {
			return fmt.Errorf("%w: column %q has negative scale", ErrMalformed, c.Name)
		}
	}
	for _, c := range t.Categorical {
		if err := check(c.Name); err != nil {
			return err
		}
		if len(c.Categories) == 0 {
			return fmt.Errorf("%w: column %q has no categories", ErrMalformed, c.Name)
		}
	}
	for _, c := range t.Boolean {
		if err := check(c.Name); err != nil {
			return err
		}
	}
	return nil
}

// Transform implements FeatureTransformer.
func (t *ColumnTransformer) Transform(l listing.Listing) (Features, error) {
	out := make(Features, t.width())

	for _, c := range t.Numeric {
		v := c.Impute
		if raw, ok := l.Attribute(c.Name); ok {
			f, err := toFloat(raw)
			if err != nil {
				return nil, fmt.Errorf("listing %d column %s: %w", l.ID, c.Name, err)
			}
			v = f
		}
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		out[prefixNumeric+c.Name] = (v - c.Mean) / scale
	}

	for _, c := range t.Categorical {
		var val string
		raw, present := l.Attribute(c.Name)
		if present {
			val = fmt.Sprintf("%v", raw)
		}
		for i, cat := range c.Categories {
			if c.DropFirst && i == 0 {
				continue
			}
			hot := 0.0
			if present && cat == val {
				hot = 1
			}
			out[prefixCategorical+c.Name+"_"+cat] = hot
		}
	}

	for _, c := range t.Boolean {
		v := 0.0
		if raw, ok := l.Attribute(c.Name); ok && truthy(raw) {
			v = 1
		}
		out[prefixBoolean+c.Name] = v
	}

	return out, nil
}

func (t *ColumnTransformer) width() int {
	n := len(t.Numeric) + len(t.Boolean)
	for _, c := range t.Categorical {
		n += len(c.Categories)
	}
	return n
}

// MarshalJSON writes the artifact form, including its kind.
func (t ColumnTransformer) MarshalJSON() ([]byte, error) {
	type plain ColumnTransformer
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: KindColumn, plain: plain(t)})
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFeature, x)
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFeature, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidFeature, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidFeature)
	}
	return f, nil
}

// truthy accepts the t/f encoding used in listing exports alongside real booleans.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "t", "true", "1", "yes", "y":
			return true
		}
		return false
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return false
}
