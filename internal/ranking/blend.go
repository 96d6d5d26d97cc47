package ranking

import (
	"math"
)

// FallbackRating is the final rating of a listing with neither an observed
// nor a predicted rating.
const FallbackRating = 0.0

// PredictionPrecision is the number of decimal places predictions are rounded
// to before blending.
const PredictionPrecision = 3

// Blend combines an observed rating and a model prediction into the final
// rating of one listing.
//
// Policy, in priority order:
//  1. No reviews or no observed rating: the prediction, or FallbackRating.
//  2. At least minReviews reviews, or no prediction: the observed rating.
//  3. Otherwise the credibility-weighted average, where ratingWeight acts as
//     a virtual review count for the prediction:
//     (n / (n + w)) * actual + (w / (n + w)) * predicted
//
// The result of rule 3 always lies between actual and predicted.
func Blend(actual, predicted *float64, reviewCount, minReviews int, ratingWeight float64) float64 {
	if reviewCount == 0 || actual == nil {
		if predicted != nil {
			return *predicted
		}
		return FallbackRating
	}

	if reviewCount >= minReviews || predicted == nil {
		return *actual
	}

	return credibilityAverage(*actual, *predicted, reviewCount, ratingWeight)
}

// credibilityAverage is only reached with reviewCount > 0, so the weight sum
// is strictly positive for any non-negative ratingWeight.
func credibilityAverage(actual, predicted float64, reviewCount int, ratingWeight float64) float64 {
	n := float64(reviewCount)
	sum := n + ratingWeight
	blended := (n/sum)*actual + (ratingWeight/sum)*predicted

	// Floating point can land a hair outside the interval; clamp to keep the
	// result a convex combination.
	lo, hi := math.Min(actual, predicted), math.Max(actual, predicted)
	return math.Max(lo, math.Min(hi, blended))
}

// RoundPrediction rounds a raw model output to PredictionPrecision decimals.
func RoundPrediction(p float64) float64 {
	scale := math.Pow10(PredictionPrecision)
	return math.Round(p*scale) / scale
}

// NeedsPrediction reports whether a listing with the given review count gets
// a model prediction. Listings at or above the threshold never do.
func NeedsPrediction(reviewCount, minReviews int) bool {
	return reviewCount < minReviews
}
