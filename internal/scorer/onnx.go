//go:build cgo
// +build cgo

package scorer

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXScorer runs a similarity model through ONNX Runtime. The model takes a
// [1, D] query and an [N, D] candidate tensor and returns [N] scores, e.g. an
// exported torch.nn.CosineSimilarity(dim=1). It requires CGO and the onnxruntime shared library.
type ONNXScorer struct {
	session *ort.DynamicAdvancedSession
	cfg     ONNXConfig
	mu      sync.Mutex
}

// NewONNXScorer loads the model at cfg.ModelPath. The runtime environment is initialized if needed.
func NewONNXScorer(cfg ONNXConfig) (*ONNXScorer, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx scorer: model path is required")
	}
	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.QueryInput, cfg.CandidateInput},
		[]string{cfg.Output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ONNXScorer{session: session, cfg: cfg}, nil
}

// Score runs one inference. With a fixed batch width the candidates are zero-padded
// to FixedBatch rows and the padding scores are dropped.
func (s *ONNXScorer) Score(ctx context.Context, query []float32, candidates Matrix) ([]float32, error) {
	if err := CheckInputs(query, candidates); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := candidates.Rows
	rows := n
	data := candidates.Data
	if fb := s.cfg.FixedBatch; fb > 0 {
		if n > fb {
			return nil, fmt.Errorf("%w: %d candidates exceed fixed batch %d", ErrShape, n, fb)
		}
		if n < fb {
			padded := make([]float32, fb*candidates.Cols)
			copy(padded, data)
			data = padded
		}
		rows = fb
	}
	dims := int64(len(query))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, fmt.Errorf("onnx scorer: closed")
	}

	queryTensor, err := ort.NewTensor(ort.NewShape(1, dims), query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query tensor: %w", err)
	}
	defer queryTensor.Destroy()
	candidateTensor, err := ort.NewTensor(ort.NewShape(int64(rows), dims), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create candidate tensor: %w", err)
	}
	defer candidateTensor.Destroy()
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(rows)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	inputs := []ort.ArbitraryTensor{queryTensor, candidateTensor}
	outputs := []ort.ArbitraryTensor{outputTensor}
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	out := outputTensor.GetData()
	if len(out) < n {
		return nil, fmt.Errorf("%w: model returned %d scores for %d candidates", ErrShape, len(out), n)
	}
	scores := make([]float32, n)
	copy(scores, out[:n])
	return scores, nil
}

// MaxBatch returns the fixed batch width, or 0 when the model accepts any N.
func (s *ONNXScorer) MaxBatch() int { return s.cfg.FixedBatch }

// Name returns the scorer identifier.
func (s *ONNXScorer) Name() string { return string(TypeONNX) }

// Close destroys the session.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	return err
}
