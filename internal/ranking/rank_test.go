package ranking

import (
	"errors"
	"slices"
	"testing"
)

type item struct {
	id     int
	rating *float64
}

func ids(items []item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestRank_Descending(t *testing.T) {
	items := []item{{id: 1}, {id: 2}, {id: 3}}
	ratings := []float64{3.0, 4.5, 1.0}

	ranked, rankedRatings, err := Rank(items, ratings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(ranked); !slices.Equal(got, []int{2, 1, 3}) {
		t.Errorf("expected order [2 1 3], got %v", got)
	}
	if !slices.Equal(rankedRatings, []float64{4.5, 3.0, 1.0}) {
		t.Errorf("ratings not reordered with items: %v", rankedRatings)
	}
	// inputs untouched
	if !slices.Equal(ratings, []float64{3.0, 4.5, 1.0}) {
		t.Errorf("input ratings mutated: %v", ratings)
	}
}

// TestRank_Stable verifies ties keep their request order.
func TestRank_Stable(t *testing.T) {
	items := []item{{id: 10}, {id: 11}, {id: 12}, {id: 13}, {id: 14}, {id: 15}}
	ratings := []float64{4.0, 5.0, 4.0, 4.0, 5.0, 0.0}

	ranked, _, err := Rank(items, ratings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{11, 14, 10, 12, 13, 15}
	if got := ids(ranked); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRank_Idempotent(t *testing.T) {
	items := []item{{id: 1}, {id: 2}, {id: 3}, {id: 4}}
	ratings := []float64{2, 2, 3, 1}

	once, onceRatings, err := Rank(items, ratings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, twiceRatings, err := Rank(once, onceRatings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(ids(once), ids(twice)) || !slices.Equal(onceRatings, twiceRatings) {
		t.Errorf("ranking not idempotent: %v then %v", ids(once), ids(twice))
	}
}

func TestRank_Empty(t *testing.T) {
	ranked, ratings, err := Rank([]item{}, []float64{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 0 || len(ratings) != 0 {
		t.Errorf("expected empty result, got %d items", len(ranked))
	}
}

func TestRank_LengthMismatch(t *testing.T) {
	_, _, err := Rank([]item{{id: 1}}, []float64{1, 2})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestSortByActual(t *testing.T) {
	items := []item{
		{id: 1, rating: ptr(4.0)},
		{id: 2},
		{id: 3, rating: ptr(2.0)},
		{id: 4, rating: ptr(4.0)},
		{id: 5},
	}

	sorted := SortByActual(items, func(it item) *float64 { return it.rating })

	want := []int{3, 1, 4, 2, 5}
	if got := ids(sorted); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if items[0].id != 1 {
		t.Error("input slice was reordered")
	}
}
