// Package ranking blends observed and predicted listing ratings and orders
// listings by the result.
//
// Basic Usage:
//
//	cfg, err := ranking.ParseBlendConfig(configArtifact)
//	if err != nil {
//		return err // wraps ranking.ErrInvalidConfig
//	}
//
//	final := make([]float64, len(listings))
//	for i, l := range listings {
//		var predicted *float64
//		if ranking.NeedsPrediction(l.Reviews(), cfg.MinReviews) {
//			p := ranking.RoundPrediction(raw[i])
//			predicted = &p
//		}
//		final[i] = cfg.Blend(l.ActualRating, predicted, l.Reviews())
//	}
//	ordered, ratings, err := ranking.Rank(listings, final)
//
// Blending:
//
// Listings with enough reviews keep their observed rating. Sparse listings
// are pulled toward the model estimate in proportion to rating_weight, which
// acts as a number of virtual reviews backing the prediction. Listings with
// no observed rating take the prediction, or zero when there is none.
//
// Ordering:
//
// Rank is a stable descending sort. Ties keep their request order, which
// experiment comparisons depend on.
package ranking
