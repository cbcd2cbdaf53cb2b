// Package result holds the ranked output handed across the engine boundary.
package result

import (
	"errors"
	"sync"
)

// ErrAlreadyReleased is returned when a Buffer is released a second time.
var ErrAlreadyReleased = errors.New("result: buffer already released")

// SimilarityResult is one ranked match: the content hash of a dump entry and its score.
type SimilarityResult struct {
	Hash  uint64  `json:"hash"`
	Score float32 `json:"score"`
}

// Buffer owns an exactly-sized copy of a result list until Release is called.
type Buffer struct {
	mu       sync.Mutex
	results  []SimilarityResult
	released bool
}

// Export copies results into a new Buffer owned by the caller.
func Export(results []SimilarityResult) *Buffer {
	out := make([]SimilarityResult, len(results))
	copy(out, results)
	return &Buffer{results: out}
}

// Results returns the held results, or nil once released.
func (b *Buffer) Results() []SimilarityResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	return b.results
}

// Len returns the number of results held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.results)
}

// Empty reports whether the buffer holds no results.
func (b *Buffer) Empty() bool { return b.Len() == 0 }

// Release drops the results. Releasing twice returns ErrAlreadyReleased.
func (b *Buffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrAlreadyReleased
	}
	b.released = true
	b.results = nil
	return nil
}
