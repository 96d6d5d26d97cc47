package ranking

import (
	"errors"
	"slices"
)

// ErrLengthMismatch is returned by Rank when listings and ratings differ in length.
var ErrLengthMismatch = errors.New("listings and ratings must have the same length")

// Rank orders items by rating, highest first. Items with equal ratings keep
// their relative input order; callers compare experiments on that guarantee,
// so the sort must stay stable.
//
// The inputs are not modified.
func Rank[T any](items []T, ratings []float64) ([]T, []float64, error) {
	if len(items) != len(ratings) {
		return nil, nil, ErrLengthMismatch
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case ratings[a] > ratings[b]:
			return -1
		case ratings[a] < ratings[b]:
			return 1
		default:
			return 0
		}
	})

	rankedItems := make([]T, len(items))
	rankedRatings := make([]float64, len(ratings))
	for pos, idx := range order {
		rankedItems[pos] = items[idx]
		rankedRatings[pos] = ratings[idx]
	}
	return rankedItems, rankedRatings, nil
}

// SortByActual orders items ascending by their observed rating with missing
// ratings last, stable for ties. It backs the legacy sort endpoint.
func SortByActual[T any](items []T, actual func(T) *float64) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		ra, rb := actual(a), actual(b)
		switch {
		case ra == nil && rb == nil:
			return 0
		case ra == nil:
			return 1
		case rb == nil:
			return -1
		case *ra < *rb:
			return -1
		case *ra > *rb:
			return 1
		default:
			return 0
		}
	})
	return out
}
