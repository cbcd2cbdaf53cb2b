//go:build cgo

package main

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/scorer"
	"github.com/hyperjump/vecscan/internal/search"
	"github.com/hyperjump/vecscan/pkg/utils"
)

// registry keeps one engine per model reference so an ONNX session is created once
// per process rather than once per call.
type registry struct {
	mu      sync.Mutex
	engines map[string]*search.Engine
	cfg     *config.Config
	logger  *zap.Logger
}

func newRegistry() *registry {
	cfg, err := config.Default()
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		logger = zap.NewNop()
	}
	return &registry{engines: make(map[string]*search.Engine), cfg: cfg, logger: logger}
}

// engine returns the engine for a model reference: "" or "cosine" for the CPU
// scorer, a *.onnx path for ONNX Runtime.
func (r *registry) engine(modelRef string) (*search.Engine, error) {
	key := strings.TrimSpace(modelRef)
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[key]; ok {
		return e, nil
	}
	sc, err := r.open(key)
	if err != nil {
		return nil, err
	}
	e := search.NewEngine(sc, &r.cfg.Search, r.cfg.Corpus.Extension, r.logger)
	r.engines[key] = e
	return e, nil
}

func (r *registry) open(ref string) (scorer.Scorer, error) {
	if ref == "" && r.cfg.Scorer.ModelPath != "" {
		ref = r.cfg.Scorer.ModelPath
	}
	if !strings.HasSuffix(strings.ToLower(ref), ".onnx") {
		return scorer.Open(ref)
	}
	sc, err := scorer.New(string(scorer.TypeONNX), scorer.ONNXConfig{
		ModelPath:      ref,
		LibraryPath:    r.cfg.Scorer.LibraryPath,
		QueryInput:     r.cfg.Scorer.QueryInput,
		CandidateInput: r.cfg.Scorer.CandidateInput,
		Output:         r.cfg.Scorer.OutputName,
		FixedBatch:     r.cfg.Scorer.FixedBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", ref, err)
	}
	return sc, nil
}

// errorState is the per-process record of the last failure.
type errorState struct {
	mu  sync.Mutex
	msg string
}

func (s *errorState) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.msg = ""
		return
	}
	s.msg = err.Error()
}

func (s *errorState) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

// splitRows views a flat row-major buffer as count rows of dims values.
func splitRows(flat []float32, count, dims int) ([][]float32, error) {
	if count < 0 || dims <= 0 {
		return nil, fmt.Errorf("invalid candidate shape %dx%d", count, dims)
	}
	if len(flat) != count*dims {
		return nil, fmt.Errorf("candidate buffer has %d values, want %d", len(flat), count*dims)
	}
	rows := make([][]float32, count)
	for i := range rows {
		rows[i] = flat[i*dims : (i+1)*dims : (i+1)*dims]
	}
	return rows, nil
}
