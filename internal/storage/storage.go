// Package storage persists the text behind each dump entry, keyed by content hash.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrChunkNotFound is returned when no chunk is stored under a hash.
var ErrChunkNotFound = errors.New("chunk not found")

// Chunk is the text a vector was computed from.
type Chunk struct {
	Hash      uint64    `json:"hash"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkStore defines chunk persistence operations.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, hash uint64) (*Chunk, error)
	// GetChunksByHashes returns the chunks found; missing hashes are simply absent.
	GetChunksByHashes(ctx context.Context, hashes []uint64) (map[uint64]*Chunk, error)
	DeleteChunksBySource(ctx context.Context, source string) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	Close() error
}
