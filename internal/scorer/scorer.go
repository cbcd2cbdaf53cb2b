// Package scorer defines the similarity scoring capability consumed by the search
// engine and provides CPU and ONNX Runtime implementations.
package scorer

import (
	"context"
	"errors"
	"fmt"
)

// ErrShape is returned when query and candidate shapes are incompatible or a
// scorer produced the wrong number of scores.
var ErrShape = errors.New("scorer: shape mismatch")

// Scorer scores a [1, D] query against [N, D] candidates, returning N scores
// where higher means more similar. Scores must be deterministic.
type Scorer interface {
	Score(ctx context.Context, query []float32, candidates Matrix) ([]float32, error)
	// MaxBatch is the largest N accepted by one Score call; 0 means unbounded.
	MaxBatch() int
	Name() string
	Close() error
}

// Matrix is a row-major [Rows, Cols] view. Data may alias a memory-mapped file.
type Matrix struct {
	Data []float32
	Rows int
	Cols int
}

// NewMatrix wraps data as a matrix with cols columns.
func NewMatrix(data []float32, cols int) (Matrix, error) {
	if cols <= 0 {
		return Matrix{}, fmt.Errorf("%w: %d columns", ErrShape, cols)
	}
	if len(data)%cols != 0 {
		return Matrix{}, fmt.Errorf("%w: %d values is not a multiple of %d columns", ErrShape, len(data), cols)
	}
	return Matrix{Data: data, Rows: len(data) / cols, Cols: cols}, nil
}

// FromRows copies rows into a new contiguous matrix. All rows must have the same length.
func FromRows(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	cols := len(rows[0])
	if cols == 0 {
		return Matrix{}, fmt.Errorf("%w: zero-length rows", ErrShape)
	}
	data := make([]float32, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return Matrix{Data: data, Rows: len(rows), Cols: cols}, nil
}

// Row returns row i without copying.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols : (i+1)*m.Cols]
}

// CheckInputs validates a query/candidates pair before scoring.
func CheckInputs(query []float32, candidates Matrix) error {
	if len(query) == 0 {
		return fmt.Errorf("%w: empty query", ErrShape)
	}
	if candidates.Cols != len(query) {
		return fmt.Errorf("%w: query has %d dimensions, candidates have %d", ErrShape, len(query), candidates.Cols)
	}
	if len(candidates.Data) != candidates.Rows*candidates.Cols {
		return fmt.Errorf("%w: %d values for %dx%d candidates", ErrShape, len(candidates.Data), candidates.Rows, candidates.Cols)
	}
	return nil
}
