package rag

import (
	"math"
	"sort"
)

// scoreEpsilon absorbs floating-point noise when comparing similarities, so
// that tie-breaking is stable across runs.
const scoreEpsilon = 1e-9

// Cosine returns the cosine similarity of a and b in [-1, 1]. ok is false
// when either vector is zero or the lengths differ; similarity is undefined
// in both cases.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// sortScored orders by descending score; scores within scoreEpsilon of each
// other are ordered by lexicographically smaller passage id, which makes
// repeated searches over identical data return identical orderings.
func sortScored(results []ScoredPassage) {
	sort.SliceStable(results, func(i, j int) bool {
		if math.Abs(results[i].Score-results[j].Score) <= scoreEpsilon {
			return results[i].Passage.ID < results[j].Passage.ID
		}
		return results[i].Score > results[j].Score
	})
}
