package retrieval

import (
	"context"
	"math"
	"sort"
)

// Match is one corpus neighbor returned by a similarity query.
type Match struct {
	Index      int
	Similarity float64
}

// Index ranks a fixed training corpus by cosine similarity against query
// vectors. The corpus is immutable after construction and safe to share
// across goroutines.
type Index struct {
	vectors [][]float64
}

// NewIndex builds an index over pre-computed corpus vectors.
func NewIndex(vectors [][]float64) *Index {
	return &Index{vectors: vectors}
}

// BuildIndex embeds the corpus texts and returns an index over the result.
func BuildIndex(ctx context.Context, embedder Embedder, texts []string) (*Index, error) {
	if len(texts) == 0 {
		return NewIndex(nil), nil
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	return NewIndex(vectors), nil
}

// Len returns the corpus size.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.vectors)
}

// TopK returns up to k corpus entries with similarity >= minSimilarity,
// ranked descending by similarity. Ties break toward the lower corpus index
// so results are deterministic. An empty corpus yields an empty result.
func (x *Index) TopK(query []float64, k int, minSimilarity float64) []Match {
	if x == nil || len(x.vectors) == 0 || k <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(x.vectors))
	for i, vector := range x.vectors {
		similarity := Cosine(query, vector)
		if similarity < minSimilarity {
			continue
		}
		matches = append(matches, Match{Index: i, Similarity: similarity})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Index < matches[j].Index
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// or zero-norm vectors yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
