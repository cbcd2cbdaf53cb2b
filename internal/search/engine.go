package search

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/dump"
	"github.com/hyperjump/vecscan/internal/result"
	"github.com/hyperjump/vecscan/internal/scorer"
)

// Engine exposes the three search entry points over one scorer. Every
// successful call returns a Buffer the caller must Release.
type Engine struct {
	scorer   scorer.Scorer
	batcher  *Batcher
	scanner  *Scanner
	config   config.SearchConfig
	logger   *zap.Logger
	mu       sync.Mutex
	lastScan *ScanStats
}

// NewEngine creates an engine. cfg may be nil for defaults; extension selects
// which files a corpus scan reads ("" for dump.Extension).
func NewEngine(s scorer.Scorer, cfg *config.SearchConfig, extension string, logger *zap.Logger) *Engine {
	var c config.SearchConfig
	if cfg != nil {
		c = *cfg
	}
	config.ApplySearchDefaults(&c)
	if logger == nil {
		logger = zap.NewNop()
	}
	if extension == "" {
		extension = dump.Extension
	}
	b := NewBatcher(s, BatchOptions{BatchSize: c.BatchSize, SelfMatchThreshold: c.SelfMatchThreshold})
	return &Engine{
		scorer:  s,
		batcher: b,
		scanner: NewScanner(b, WithMaxWorkers(c.MaxWorkers), WithExtension(extension), WithScanLogger(logger)),
		config:  c,
		logger:  logger,
	}
}

// Scorer returns the engine's scorer.
func (e *Engine) Scorer() scorer.Scorer { return e.scorer }

// Config returns the effective search settings.
func (e *Engine) Config() config.SearchConfig { return e.config }

// SearchSingleDump scores every entry of one dump and returns them all, ranked.
// A nil query uses the dump's first vector and drops it as a self-match.
func (e *Engine) SearchSingleDump(ctx context.Context, dumpPath string, query []float32) (*result.Buffer, error) {
	r, err := dump.Open(dumpPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	scores, err := e.batcher.SearchFile(ctx, r, query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", dumpPath, err)
	}
	return result.Export(scores.TopK(0)), nil
}

// SearchCorpus returns the global top-k over every dump under corpusDir.
// k <= 0 selects the configured default; k is capped at the configured maximum.
func (e *Engine) SearchCorpus(ctx context.Context, corpusDir string, query []float32, k int) (*result.Buffer, error) {
	buf, _, err := e.SearchCorpusWithStats(ctx, corpusDir, query, k)
	return buf, err
}

// SearchCorpusWithStats is SearchCorpus returning the statistics of this scan.
func (e *Engine) SearchCorpusWithStats(ctx context.Context, corpusDir string, query []float32, k int) (*result.Buffer, ScanStats, error) {
	k = e.clampK(k)
	ranked, stats, err := e.scanner.Scan(ctx, corpusDir, query, k)
	if err != nil {
		return nil, ScanStats{}, err
	}
	e.mu.Lock()
	e.lastScan = &stats
	e.mu.Unlock()
	return result.Export(ranked), stats, nil
}

// LastScan returns the statistics of the most recent successful corpus scan.
func (e *Engine) LastScan() (ScanStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastScan == nil {
		return ScanStats{}, false
	}
	return *e.lastScan, true
}

func (e *Engine) clampK(k int) int {
	if k <= 0 {
		k = e.config.DefaultK
	}
	if e.config.MaxK > 0 && k > e.config.MaxK {
		k = e.config.MaxK
	}
	return k
}

// ScoreExplicit scores caller-supplied candidates against query and returns them
// all, ranked. When hashes is empty each candidate's hash is its index.
func (e *Engine) ScoreExplicit(ctx context.Context, query []float32, candidates [][]float32, hashes []uint64) (*result.Buffer, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	if len(hashes) > 0 && len(hashes) != len(candidates) {
		return nil, fmt.Errorf("%w: %d hashes for %d candidates", dump.ErrInvalidInput, len(hashes), len(candidates))
	}
	if len(candidates) == 0 {
		return result.Export(nil), nil
	}
	m, err := scorer.FromRows(candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dump.ErrInvalidInput, err)
	}
	src := &memCandidates{m: m, hashes: hashes}
	scores, err := e.batcher.search(ctx, src, query, false)
	if err != nil {
		return nil, err
	}
	return result.Export(scores.TopK(0)), nil
}

// memCandidates adapts an in-memory matrix to Candidates.
type memCandidates struct {
	m      scorer.Matrix
	hashes []uint64
}

func (c *memCandidates) Count() uint32      { return uint32(c.m.Rows) }
func (c *memCandidates) Dimensions() uint32 { return uint32(c.m.Cols) }

func (c *memCandidates) Rows(start, end int) ([]float32, bool) {
	if start < 0 || start >= end || end > c.m.Rows {
		return nil, false
	}
	return c.m.Data[start*c.m.Cols : end*c.m.Cols], true
}

func (c *memCandidates) HashAt(i int) (uint64, bool) {
	if i < 0 || i >= c.m.Rows {
		return 0, false
	}
	if len(c.hashes) == 0 {
		return uint64(i), true
	}
	return c.hashes[i], true
}
