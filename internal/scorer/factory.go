package scorer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrONNXUnavailable is returned by ONNX constructors in builds without CGO.
var ErrONNXUnavailable = errors.New("ONNX scorer requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// Type identifies a scorer implementation.
type Type string

const (
	// TypeCosine is the built-in CPU cosine scorer.
	TypeCosine Type = "cosine"
	// TypeONNX runs a similarity model with ONNX Runtime. Requires CGO.
	TypeONNX Type = "onnx"
)

// Default ONNX tensor names, matching a cosine model exported with two named inputs.
const (
	DefaultQueryInput     = "input1"
	DefaultCandidateInput = "input2"
	DefaultOutput         = "output"
)

// ONNXConfig configures an ONNX scorer.
type ONNXConfig struct {
	ModelPath      string
	LibraryPath    string
	QueryInput     string
	CandidateInput string
	Output         string
	// FixedBatch pads every call to this many candidate rows for models exported
	// with a static batch dimension. 0 means the model accepts any N.
	FixedBatch int
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.QueryInput == "" {
		c.QueryInput = DefaultQueryInput
	}
	if c.CandidateInput == "" {
		c.CandidateInput = DefaultCandidateInput
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	return c
}

// New creates a scorer of the given type. Supported types: "cosine" (default), "onnx".
func New(scorerType string, onnx ONNXConfig) (Scorer, error) {
	switch Type(scorerType) {
	case TypeCosine, "":
		return NewCosineScorer(), nil
	case TypeONNX:
		return NewONNXScorer(onnx)
	default:
		return nil, fmt.Errorf("unknown scorer type: %s (supported: cosine, onnx)", scorerType)
	}
}

// Open resolves a model reference. "" and "cosine" select the CPU scorer; a path
// ending in .onnx loads that model with default tensor names.
func Open(ref string) (Scorer, error) {
	switch {
	case ref == "" || ref == string(TypeCosine):
		return NewCosineScorer(), nil
	case strings.HasSuffix(strings.ToLower(ref), ".onnx"):
		return NewONNXScorer(ONNXConfig{ModelPath: ref})
	default:
		return nil, fmt.Errorf("unknown model reference: %s (use \"cosine\" or a .onnx file)", ref)
	}
}

// IsONNXAvailable returns true if ONNX Runtime support is compiled in.
func IsONNXAvailable() bool {
	_, err := NewONNXScorer(ONNXConfig{})
	return !errors.Is(err, ErrONNXUnavailable)
}
