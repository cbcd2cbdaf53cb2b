// Package search scores query vectors against vector dumps: batched scoring
// within one dump, a parallel corpus scan, and ranking.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/scorer"
)

const (
	// DefaultBatchSize bounds the rows passed to one scorer call.
	DefaultBatchSize = config.DefaultBatchSize
	// MaxBatchSize is the largest accepted batch size.
	MaxBatchSize = config.MaxBatchSize
	// DefaultSelfMatchThreshold is the near-identity score above which index 0 is
	// treated as the query itself when the query was taken from the dump. This is a
	// heuristic: near-duplicates can be dropped and numerical drift can let the
	// query vector through.
	DefaultSelfMatchThreshold = config.DefaultSelfMatchThreshold
)

var (
	// ErrScoring wraps any scorer failure or malformed scorer output, including
	// non-finite scores.
	ErrScoring = errors.New("search: scoring failed")
	// ErrDimensionMismatch is returned when the query length differs from the dump dimensions.
	ErrDimensionMismatch = errors.New("search: query dimension mismatch")
	// ErrInvalidBatchSize is returned when the batch size is out of range for the scorer.
	ErrInvalidBatchSize = errors.New("search: invalid batch size")
	// ErrEmptyQuery is returned for a non-nil zero-length query.
	ErrEmptyQuery = errors.New("search: empty query vector")
)

// Candidates is a row-major vector set with one hash per row. *dump.Reader implements it.
type Candidates interface {
	Count() uint32
	Dimensions() uint32
	Rows(start, end int) ([]float32, bool)
	HashAt(i int) (uint64, bool)
}

// ScoredCandidate is one scored row of a dump.
type ScoredCandidate struct {
	Index int
	Hash  uint64
	Score float32
}

// FileScores holds the scores of one dump keyed by global row index.
type FileScores struct {
	Scores map[int]float32
	Hashes map[int]uint64
}

func newFileScores(n int) FileScores {
	return FileScores{Scores: make(map[int]float32, n), Hashes: make(map[int]uint64, n)}
}

// merge records a batch; a repeated index overwrites the earlier entry.
func (f FileScores) merge(batch []ScoredCandidate) {
	for _, c := range batch {
		f.Scores[c.Index] = c.Score
		f.Hashes[c.Index] = c.Hash
	}
}

// Len returns the number of scored rows.
func (f FileScores) Len() int { return len(f.Scores) }

// Candidates returns the scored rows in index order.
func (f FileScores) Candidates() []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(f.Scores))
	for idx, s := range f.Scores {
		out = append(out, ScoredCandidate{Index: idx, Hash: f.Hashes[idx], Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// BatchOptions configures a Batcher. Zero values select the defaults.
type BatchOptions struct {
	BatchSize          int
	SelfMatchThreshold float32
}

// Batcher scores every row of a dump against a query, in batches of at most BatchSize rows.
type Batcher struct {
	scorer    scorer.Scorer
	batchSize int
	threshold float32
}

// NewBatcher creates a batcher over s. The batch size is checked on each call.
func NewBatcher(s scorer.Scorer, opts BatchOptions) *Batcher {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SelfMatchThreshold == 0 {
		opts.SelfMatchThreshold = DefaultSelfMatchThreshold
	}
	return &Batcher{scorer: s, batchSize: opts.BatchSize, threshold: opts.SelfMatchThreshold}
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int { return b.batchSize }

// SelfMatchThreshold returns the configured self-match threshold.
func (b *Batcher) SelfMatchThreshold() float32 { return b.threshold }

// ValidateBatchSize checks size against MaxBatchSize and the scorer's own limit (0 = none).
func ValidateBatchSize(size, scorerMax int) error {
	if size < 1 || size > MaxBatchSize {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidBatchSize, size, MaxBatchSize)
	}
	if scorerMax > 0 && size > scorerMax {
		return fmt.Errorf("%w: %d exceeds scorer limit %d", ErrInvalidBatchSize, size, scorerMax)
	}
	return nil
}

// SearchFile scores every row of c against query. A nil query selects row 0 of c
// as the query; in that mode row 0 is dropped when it scores above the
// self-match threshold. No partial results are returned on failure.
func (b *Batcher) SearchFile(ctx context.Context, c Candidates, query []float32) (FileScores, error) {
	selfQuery := query == nil
	if selfQuery {
		if c.Count() == 0 {
			return newFileScores(0), nil
		}
		row, _ := c.Rows(0, 1)
		query = row
	}
	return b.search(ctx, c, query, selfQuery)
}

func (b *Batcher) search(ctx context.Context, c Candidates, query []float32, selfQuery bool) (FileScores, error) {
	if err := ValidateBatchSize(b.batchSize, b.scorer.MaxBatch()); err != nil {
		return FileScores{}, err
	}
	if len(query) == 0 {
		return FileScores{}, ErrEmptyQuery
	}
	dims := int(c.Dimensions())
	if len(query) != dims {
		return FileScores{}, fmt.Errorf("%w: query has %d dimensions, dump has %d", ErrDimensionMismatch, len(query), dims)
	}

	n := int(c.Count())
	scores := newFileScores(n)
	batch := make([]ScoredCandidate, 0, min(b.batchSize, n))
	for start := 0; start < n; start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return FileScores{}, err
		}
		end := min(start+b.batchSize, n)
		rows, ok := c.Rows(start, end)
		if !ok {
			return FileScores{}, fmt.Errorf("%w: rows [%d, %d) out of range", ErrScoring, start, end)
		}
		m, err := scorer.NewMatrix(rows, dims)
		if err != nil {
			return FileScores{}, fmt.Errorf("%w: rows [%d, %d) have the wrong shape", ErrScoring, start, end)
		}
		out, err := b.scorer.Score(ctx, query, m)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return FileScores{}, ctxErr
			}
			return FileScores{}, fmt.Errorf("%w: batch [%d, %d): %v", ErrScoring, start, end, err)
		}
		if len(out) != end-start {
			return FileScores{}, fmt.Errorf("%w: scorer returned %d scores for %d rows", ErrScoring, len(out), end-start)
		}

		batch = batch[:0]
		for j, s := range out {
			idx := start + j
			if f := float64(s); math.IsNaN(f) || math.IsInf(f, 0) {
				return FileScores{}, fmt.Errorf("%w: non-finite score %v at row %d", ErrScoring, s, idx)
			}
			if selfQuery && idx == 0 && s > b.threshold {
				continue
			}
			h, _ := c.HashAt(idx)
			batch = append(batch, ScoredCandidate{Index: idx, Hash: h, Score: s})
		}
		scores.merge(batch)
	}
	return scores, nil
}
