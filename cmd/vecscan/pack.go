package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/vecscan/internal/dump"
	"github.com/hyperjump/vecscan/internal/storage"
	"github.com/hyperjump/vecscan/pkg/utils"
)

// maxPackLine bounds one JSONL record; a 4096-dim vector in JSON is well under this.
const maxPackLine = 16 << 20

type packRecord struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

type packResult struct {
	Vectors [][]float32
	Hashes  []uint64
	// Chunks holds one row per record with text.
	Chunks []*storage.Chunk
}

// readPackInput reads JSONL records. Blank lines are skipped; every vector must be
// finite and share the first record's dimension. Hashes are content hashes of the
// (possibly normalized) vectors.
func readPackInput(r io.Reader, normalize bool) (*packResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxPackLine)
	out := &packResult{}
	now := time.Now()
	dims := 0
	line := 0
	var texts []string
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec packRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec.Vector) == 0 {
			return nil, fmt.Errorf("line %d: empty vector", line)
		}
		if dims == 0 {
			dims = len(rec.Vector)
		} else if len(rec.Vector) != dims {
			return nil, fmt.Errorf("line %d: vector has %d dimensions, want %d", line, len(rec.Vector), dims)
		}
		if !utils.IsFinite(rec.Vector) {
			return nil, fmt.Errorf("line %d: vector has NaN or infinite components", line)
		}
		if normalize {
			utils.NormalizeL2(rec.Vector)
		}
		out.Vectors = append(out.Vectors, rec.Vector)
		texts = append(texts, rec.Text)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	out.Hashes = dump.HashVectors(out.Vectors)
	for i, text := range texts {
		if text != "" {
			out.Chunks = append(out.Chunks, &storage.Chunk{Hash: out.Hashes[i], Text: text, CreatedAt: now})
		}
	}
	return out, nil
}
