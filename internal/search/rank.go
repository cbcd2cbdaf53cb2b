package search

import (
	"math"
	"sort"

	"github.com/hyperjump/vecscan/internal/result"
)

// Rank sorts results by score descending, keeping input order among equal
// scores, and truncates to k. k <= 0 keeps everything. NaN scores sort last.
func Rank(results []result.SimilarityResult, k int) []result.SimilarityResult {
	sort.SliceStable(results, func(i, j int) bool {
		return higher(results[i].Score, results[j].Score)
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func higher(a, b float32) bool {
	if math.IsNaN(float64(b)) {
		return !math.IsNaN(float64(a))
	}
	return a > b
}

// TopK ranks the scores of one file and keeps the best k.
func (f FileScores) TopK(k int) []result.SimilarityResult {
	cands := f.Candidates()
	out := make([]result.SimilarityResult, len(cands))
	for i, c := range cands {
		out[i] = result.SimilarityResult{Hash: c.Hash, Score: c.Score}
	}
	return Rank(out, k)
}
