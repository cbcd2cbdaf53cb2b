package search

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/corpus"
	"github.com/hyperjump/vecscan/internal/dump"
	"github.com/hyperjump/vecscan/internal/result"
)

// DefaultMaxWorkers caps the scan worker pool.
const DefaultMaxWorkers = config.DefaultMaxWorkers

// ScanStats describes a finished corpus scan.
type ScanStats struct {
	ScanID     string        `json:"scan_id"`
	Files      int           `json:"files"`
	Failed     int           `json:"failed"`
	Candidates int           `json:"candidates"`
	Workers    int           `json:"workers"`
	Duration   time.Duration `json:"duration"`
}

// Scanner runs a Batcher over every dump under a directory tree.
type Scanner struct {
	batcher    *Batcher
	maxWorkers int
	extension  string
	logger     *zap.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithMaxWorkers caps the worker pool. Values below 1 are ignored.
func WithMaxWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// WithExtension sets the dump file extension matched during discovery.
func WithExtension(ext string) ScannerOption {
	return func(s *Scanner) { s.extension = ext }
}

// WithScanLogger sets the logger for scan progress and per-file failures.
func WithScanLogger(l *zap.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner creates a corpus scanner.
func NewScanner(b *Batcher, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		batcher:    b,
		maxWorkers: DefaultMaxWorkers,
		extension:  dump.Extension,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fileResult is one file's ranked top-k, tagged with its discovery position.
type fileResult struct {
	order   int
	results []result.SimilarityResult
	failed  bool
}

// Scan returns the global top-k over every dump under root. A nil query uses
// row 0 of the first readable dump, excluding that row from that dump only.
// Files that fail to open or score are logged and contribute nothing. The scan
// returns an error only when root cannot be read or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, root string, query []float32, k int) ([]result.SimilarityResult, ScanStats, error) {
	began := time.Now()
	stats := ScanStats{ScanID: uuid.NewString()}
	logger := s.logger.With(zap.String("scan_id", stats.ScanID))

	if err := ValidateBatchSize(s.batcher.batchSize, s.batcher.scorer.MaxBatch()); err != nil {
		return nil, stats, err
	}
	if query != nil && len(query) == 0 {
		return nil, stats, ErrEmptyQuery
	}

	files, err := corpus.Discover(root, corpus.DiscoverOptions{Extension: s.extension, Logger: logger})
	if err != nil {
		return nil, stats, err
	}
	stats.Files = len(files)
	if len(files) == 0 {
		logger.Info("Scan found no dump files", zap.String("root", root))
		return []result.SimilarityResult{}, stats, nil
	}

	selfPath := ""
	if query == nil {
		selfPath, query = s.firstQuery(files, logger)
		if query == nil {
			logger.Warn("No readable dump supplies a query vector", zap.String("root", root))
			stats.Failed = len(files)
			return []result.SimilarityResult{}, stats, nil
		}
	}

	workers := min(s.maxWorkers, runtime.NumCPU(), len(files))
	stats.Workers = workers
	logger.Info("Scan started",
		zap.String("root", root),
		zap.Int("files", len(files)),
		zap.Int("workers", workers),
		zap.Int("k", k),
	)

	groups := make([][]int, workers)
	for i := range files {
		groups[i%workers] = append(groups[i%workers], i)
	}

	resultsCh := make(chan fileResult)
	perFile := make([][]result.SimilarityResult, len(files))
	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		for fr := range resultsCh {
			perFile[fr.order] = fr.results
			if fr.failed {
				stats.Failed++
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, i := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				path := files[i]
				res, err := s.scanFile(gctx, path, query, path == selfPath, k)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					logger.Warn("Skipping dump", zap.String("path", path), zap.Error(err))
					resultsCh <- fileResult{order: i, failed: true}
					continue
				}
				resultsCh <- fileResult{order: i, results: res}
			}
			return nil
		})
	}
	err = g.Wait()
	close(resultsCh)
	<-aggregated
	if err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	var merged []result.SimilarityResult
	for _, res := range perFile {
		merged = append(merged, res...)
	}
	stats.Candidates = len(merged)
	ranked := Rank(merged, k)
	if ranked == nil {
		ranked = []result.SimilarityResult{}
	}
	stats.Duration = time.Since(began)
	logger.Info("Scan finished",
		zap.Int("files", stats.Files),
		zap.Int("failed", stats.Failed),
		zap.Int("candidates", stats.Candidates),
		zap.Int("results", len(ranked)),
		zap.Duration("duration", stats.Duration),
	)
	return ranked, stats, nil
}

func (s *Scanner) scanFile(ctx context.Context, path string, query []float32, selfQuery bool, k int) ([]result.SimilarityResult, error) {
	r, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	scores, err := s.batcher.search(ctx, r, query, selfQuery)
	if err != nil {
		return nil, err
	}
	return scores.TopK(k), nil
}

// firstQuery copies row 0 of the first dump that opens and is non-empty.
func (s *Scanner) firstQuery(files []string, logger *zap.Logger) (string, []float32) {
	for _, path := range files {
		r, err := dump.Open(path)
		if err != nil {
			logger.Warn("Cannot read query vector", zap.String("path", path), zap.Error(err))
			continue
		}
		v, ok := r.VectorAt(0)
		var q []float32
		if ok {
			q = append([]float32(nil), v...)
		}
		_ = r.Close()
		if ok && len(q) > 0 {
			return path, q
		}
	}
	return "", nil
}

// IsCancelled reports whether err came from context cancellation or deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
