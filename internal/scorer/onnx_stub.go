//go:build !cgo
// +build !cgo

package scorer

import "context"

// ONNXScorer stub type when built without CGO (see onnx.go for real implementation).
type ONNXScorer struct{}

// NewONNXScorer returns an error when built without CGO (ONNX not available).
func NewONNXScorer(_ ONNXConfig) (*ONNXScorer, error) {
	return nil, ErrONNXUnavailable
}

// Score is not implemented without CGO.
func (s *ONNXScorer) Score(context.Context, []float32, Matrix) ([]float32, error) {
	return nil, ErrONNXUnavailable
}

// MaxBatch returns 0 without CGO.
func (s *ONNXScorer) MaxBatch() int { return 0 }

// Name returns the scorer identifier.
func (s *ONNXScorer) Name() string { return string(TypeONNX) }

// Close is a no-op without CGO.
func (s *ONNXScorer) Close() error { return nil }
