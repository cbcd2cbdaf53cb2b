package scorer

import (
	"context"
	"math"
)

// CosineScorer computes cosine similarity on the CPU. A zero-norm vector scores 0.
type CosineScorer struct{}

// NewCosineScorer returns a CPU cosine scorer.
func NewCosineScorer() *CosineScorer {
	return &CosineScorer{}
}

// Score returns cosine(query, row) for every candidate row.
func (c *CosineScorer) Score(ctx context.Context, query []float32, candidates Matrix) ([]float32, error) {
	if err := CheckInputs(query, candidates); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qn := norm(query)
	scores := make([]float32, candidates.Rows)
	if qn == 0 {
		return scores, nil
	}
	for i := 0; i < candidates.Rows; i++ {
		row := candidates.Row(i)
		var dot, rn float64
		for j, q := range query {
			x := float64(row[j])
			dot += float64(q) * x
			rn += x * x
		}
		if rn == 0 {
			continue
		}
		scores[i] = float32(dot / (qn * math.Sqrt(rn)))
	}
	return scores, nil
}

func norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// MaxBatch is unbounded for the CPU scorer.
func (c *CosineScorer) MaxBatch() int { return 0 }

// Name returns the scorer identifier.
func (c *CosineScorer) Name() string { return string(TypeCosine) }

// Close is a no-op for CosineScorer.
func (c *CosineScorer) Close() error { return nil }
