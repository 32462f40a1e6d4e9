package retrieval

import (
	"math"
	"testing"
)

func TestTopKRanksDescendingWithDeterministicTies(t *testing.T) {
	index := NewIndex([][]float64{
		{0, 1},   // orthogonal to query
		{1, 0},   // identical direction
		{1, 1},   // 45 degrees
		{2, 0},   // identical direction, same similarity as corpus 1
		{-1, 0},  // opposite
		{1, 0.1}, // nearly aligned
	})

	matches := index.TopK([]float64{1, 0}, 4, 0.0)
	if len(matches) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(matches))
	}
	// Corpus 1 and 3 both have similarity 1.0; the lower index must win.
	if matches[0].Index != 1 || matches[1].Index != 3 {
		t.Fatalf("expected tie broken by ascending index, got %d then %d", matches[0].Index, matches[1].Index)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("matches not sorted descending: %#v", matches)
		}
	}
}

func TestTopKAppliesMinSimilarity(t *testing.T) {
	index := NewIndex([][]float64{
		{1, 0},
		{0, 1},
		{-1, 0},
	})
	matches := index.TopK([]float64{1, 0}, 10, 0.5)
	if len(matches) != 1 || matches[0].Index != 0 {
		t.Fatalf("expected only the aligned vector, got %#v", matches)
	}
}

func TestTopKEmptyCorpusReturnsEmpty(t *testing.T) {
	index := NewIndex(nil)
	if matches := index.TopK([]float64{1, 0}, 5, 0); len(matches) != 0 {
		t.Fatalf("expected empty result, got %#v", matches)
	}
}

func TestTopKZeroKReturnsEmpty(t *testing.T) {
	index := NewIndex([][]float64{{1, 0}})
	if matches := index.TopK([]float64{1, 0}, 0, 0); len(matches) != 0 {
		t.Fatalf("expected empty result for k=0, got %#v", matches)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); math.Abs(got-tc.expected) > 1e-12 {
				t.Fatalf("Cosine(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
