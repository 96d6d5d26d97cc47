// Package listing defines the property listing record carried by ranking requests.
package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
)

// Field names with meaning to the ranking core. Every other field is an
// opaque feature attribute passed through to the feature transformer.
const (
	FieldID           = "id"
	FieldReviewCount  = "number_of_reviews"
	FieldActualRating = "review_scores_rating"
)

// Rating bounds accepted for review_scores_rating.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Validation errors
var (
	ErrNegativeReviewCount = errors.New("number_of_reviews must be non-negative")
	ErrRatingOutOfRange    = errors.New("review_scores_rating must be between 0 and 5")
	ErrDuplicateID         = errors.New("duplicate listing id")
)

// Listing is a single property listing. It is treated as immutable once a
// request has been decoded.
type Listing struct {
	ID           int64
	ReviewCount  *int
	ActualRating *float64
	// Attributes holds every other field of the listing keyed by its JSON name.
	Attributes map[string]any
}

// Reviews returns the review count, treating an absent value as zero.
func (l Listing) Reviews() int {
	if l.ReviewCount == nil {
		return 0
	}
	return *l.ReviewCount
}

// Attribute returns the named attribute. The three core fields are served too
// so transformers can use them as features.
func (l Listing) Attribute(name string) (any, bool) {
	switch name {
	case FieldID:
		return l.ID, true
	case FieldReviewCount:
		if l.ReviewCount == nil {
			return nil, false
		}
		return *l.ReviewCount, true
	case FieldActualRating:
		if l.ActualRating == nil {
			return nil, false
		}
		return *l.ActualRating, true
	}
	v, ok := l.Attributes[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Snapshot returns the listing as a flat map, the shape it had on the wire.
func (l Listing) Snapshot() map[string]any {
	out := make(map[string]any, len(l.Attributes)+3)
	maps.Copy(out, l.Attributes)
	out[FieldID] = l.ID
	if l.ReviewCount != nil {
		out[FieldReviewCount] = *l.ReviewCount
	} else {
		out[FieldReviewCount] = nil
	}
	if l.ActualRating != nil {
		out[FieldActualRating] = *l.ActualRating
	} else {
		out[FieldActualRating] = nil
	}
	return out
}

// Validate checks the fields the ranking core depends on.
func (l Listing) Validate() error {
	if l.ReviewCount != nil && *l.ReviewCount < 0 {
		return fmt.Errorf("listing %d: %w", l.ID, ErrNegativeReviewCount)
	}
	if l.ActualRating != nil {
		r := *l.ActualRating
		if math.IsNaN(r) || r < MinRating || r > MaxRating {
			return fmt.Errorf("listing %d: %w", l.ID, ErrRatingOutOfRange)
		}
	}
	return nil
}

// ValidateBatch validates every listing and rejects repeated ids.
func ValidateBatch(listings []Listing) error {
	seen := make(map[int64]struct{}, len(listings))
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return err
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("listing %d: %w", l.ID, ErrDuplicateID)
		}
		seen[l.ID] = struct{}{}
	}
	return nil
}

// MarshalJSON flattens the core fields and attributes into one object.
func (l Listing) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Snapshot())
}

// UnmarshalJSON decodes a flat listing object. Unknown fields are kept as
// attributes, with numbers decoded as float64.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	idRaw, ok := raw[FieldID]
	if !ok || bytes.Equal(bytes.TrimSpace(idRaw), []byte("null")) {
		return errors.New("listing id is required")
	}
	var id int64
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return fmt.Errorf("listing id must be an integer: %w", err)
	}

	var out Listing
	out.ID = id

	if v, ok := raw[FieldReviewCount]; ok {
		if err := json.Unmarshal(v, &out.ReviewCount); err != nil {
			return fmt.Errorf("listing %d: number_of_reviews must be an integer: %w", id, err)
		}
	}
	if v, ok := raw[FieldActualRating]; ok {
		if err := json.Unmarshal(v, &out.ActualRating); err != nil {
			return fmt.Errorf("listing %d: review_scores_rating must be a number: %w", id, err)
		}
	}

	out.Attributes = make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case FieldID, FieldReviewCount, FieldActualRating:
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("listing %d: field %s: %w", id, k, err)
		}
		out.Attributes[k] = val
	}

	*l = out
	return nil
}

// Float is a convenience for building listings in code.
func Float(v float64) *float64 { return &v }

// Int is a convenience for building listings in code.
func Int(v int) *int { return &v }
