// Package scoring implements the ranking request flow: route the caller to
// a model bundle, predict ratings for thinly reviewed listings, blend them
// with observed ratings, rank, and log the decision.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/listrank/internal/bundle"
	"github.com/onnwee/listrank/internal/experiment"
	"github.com/onnwee/listrank/internal/listing"
	"github.com/onnwee/listrank/internal/predlog"
	"github.com/onnwee/listrank/internal/ranking"
	"github.com/onnwee/listrank/internal/tracing"
)

// ErrPrediction wraps failures of a bundle's transformer or predictor.
var ErrPrediction = errors.New("prediction failed")

// Selector picks and loads the bundle serving a caller.
type Selector interface {
	Select(ctx context.Context, callerID string) (*bundle.Bundle, error)
}

// Config holds the dependencies of a Service.
type Config struct {
	Selector   Selector
	Log        predlog.Logger   // Defaults to predlog.Nop
	Metrics    *Metrics         // Optional
	LogMetrics *predlog.Metrics // Optional
	Logger     *slog.Logger
	Now        func() time.Time
}

// Service ranks listing batches.
type Service struct {
	selector   Selector
	log        predlog.Logger
	metrics    *Metrics
	logMetrics *predlog.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = predlog.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		selector:   cfg.Selector,
		log:        cfg.Log,
		metrics:    cfg.Metrics,
		logMetrics: cfg.LogMetrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Result is a ranked batch.
type Result struct {
	ModelName string
	Listings  []listing.Listing
	Ratings   []float64
	// Spearman compares the observed ratings with the final ratings; nil
	// when fewer than two listings carry an observed rating.
	Spearman *float64
}

// Rank scores and orders listings for callerID.
//
// A bundle deleted by another replica between discovery and load surfaces
// as bundle.ErrBundleNotFound; the selection is then retried once against a
// fresh discovery.
func (s *Service) Rank(ctx context.Context, callerID string, listings []listing.Listing) (res *Result, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "scoring.Rank")
	tracing.SetAttributes(ctx, attribute.Int("listings.count", len(listings)))

	var modelName string
	var predicted int
	defer func() {
		s.metrics.observe(modelName, time.Since(start).Seconds(), predicted, len(listings), err)
		endSpan(err)
	}()

	b, err := s.selector.Select(ctx, callerID)
	if errors.Is(err, bundle.ErrBundleNotFound) {
		tracing.AddEvent(ctx, "scoring.reselect")
		s.logger.WarnContext(ctx, "selected model disappeared, retrying", "error", err)
		b, err = s.selector.Select(ctx, callerID)
	}
	if err != nil {
		return nil, err
	}
	modelName = b.Name
	tracing.SetAttributes(ctx, attribute.String("model.name", b.Name))

	predictions, final, err := score(b, listings)
	if err != nil {
		return nil, err
	}
	for _, p := range predictions {
		if p != nil {
			predicted++
		}
	}

	actual := make([]*float64, len(listings))
	finalPtrs := make([]*float64, len(listings))
	for i, l := range listings {
		actual[i] = l.ActualRating
		finalPtrs[i] = &final[i]
	}
	spearman := experiment.Spearman(actual, finalPtrs, experiment.MinSpearmanPairs)

	ranked, ratings, err := ranking.Rank(listings, final)
	if err != nil {
		return nil, err
	}

	s.record(ctx, predlog.NewEntries(s.now().UTC(), callerID, b.Name, listings, predictions))

	return &Result{
		ModelName: b.Name,
		Listings:  ranked,
		Ratings:   ratings,
		Spearman:  spearman,
	}, nil
}

// score returns the rounded prediction (nil when skipped) and the final
// rating of every listing, in input order.
func score(b *bundle.Bundle, listings []listing.Listing) ([]*float64, []float64, error) {
	predictions := make([]*float64, len(listings))
	final := make([]float64, len(listings))
	for i, l := range listings {
		reviews := l.Reviews()
		if ranking.NeedsPrediction(reviews, b.Config.MinReviews) {
			p, err := predict(b, l)
			if err != nil {
				return nil, nil, err
			}
			predictions[i] = &p
		}
		final[i] = b.Config.Blend(l.ActualRating, predictions[i], reviews)
	}
	return predictions, final, nil
}

func predict(b *bundle.Bundle, l listing.Listing) (float64, error) {
	features, err := b.Transformer.Transform(l)
	if err != nil {
		return 0, fmt.Errorf("%w: listing %d: %w", ErrPrediction, l.ID, err)
	}
	p, err := b.Predictor.Predict(features)
	if err != nil {
		return 0, fmt.Errorf("%w: listing %d: %w", ErrPrediction, l.ID, err)
	}
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: listing %d: non-finite output", ErrPrediction, l.ID)
	}
	return ranking.RoundPrediction(p), nil
}

// record appends entries to the prediction log. Failures are logged and
// counted but never returned. A request ranked before its caller went away
// is still logged, so the write ignores cancellation.
func (s *Service) record(ctx context.Context, entries []predlog.Entry) {
	if len(entries) == 0 {
		return
	}
	if err := s.log.Log(context.WithoutCancel(ctx), entries); err != nil {
		s.logMetrics.IncFailures()
		s.logger.ErrorContext(ctx, "failed to write prediction log", "error", err, "entries", len(entries))
		return
	}
	s.logMetrics.AddEntries(len(entries))
}
