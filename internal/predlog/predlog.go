// Package predlog records every blending decision as one JSON line per
// listing and reads those records back for offline analysis.
package predlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/onnwee/listrank/internal/listing"
)

// Entry is one prediction log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	CallerID  string         `json:"caller_id"`
	ModelName string         `json:"model_name"`
	ListingID int64          `json:"listing_id"`
	InputData map[string]any `json:"input_data"`
	// Prediction is the rounded model output used while blending, or nil
	// when the listing had enough reviews to skip the model.
	Prediction *float64 `json:"prediction"`
}

// ActualRating returns the review_scores_rating recorded in the input
// snapshot, if it is a number.
func (e Entry) ActualRating() (float64, bool) {
	switch v := e.InputData[listing.FieldActualRating].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// NewEntries builds one entry per listing. predictions runs parallel to
// listings; all entries share one timestamp.
func NewEntries(now time.Time, callerID, modelName string, listings []listing.Listing, predictions []*float64) []Entry {
	entries := make([]Entry, len(listings))
	for i, l := range listings {
		var p *float64
		if i < len(predictions) {
			p = predictions[i]
		}
		entries[i] = Entry{
			Timestamp:  now,
			CallerID:   callerID,
			ModelName:  modelName,
			ListingID:  l.ID,
			InputData:  l.Snapshot(),
			Prediction: p,
		}
	}
	return entries
}

// Logger appends entries to the prediction log.
type Logger interface {
	Log(ctx context.Context, entries []Entry) error
}

// Nop discards entries.
type Nop struct{}

// Log implements Logger.
func (Nop) Log(context.Context, []Entry) error { return nil }
