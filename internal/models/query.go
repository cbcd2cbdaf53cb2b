// Package models defines the request and response shapes shared by the HTTP API and the CLI.
package models

import "fmt"

// CorpusSearchRequest asks for the global top-k over a directory of dumps.
type CorpusSearchRequest struct {
	// CorpusDir defaults to the first configured corpus directory.
	CorpusDir string `json:"corpus_dir,omitempty"`
	// Query omitted means: use the first vector of the first dump.
	Query       []float32 `json:"query,omitempty"`
	K           int       `json:"k,omitempty"`
	IncludeText bool      `json:"include_text,omitempty"`
}

// Validate checks the request and fills CorpusDir from defaultDir when empty.
func (q *CorpusSearchRequest) Validate(defaultDir string) error {
	if q.CorpusDir == "" {
		q.CorpusDir = defaultDir
	}
	if q.CorpusDir == "" {
		return fmt.Errorf("corpus_dir is required")
	}
	if q.Query != nil && len(q.Query) == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K < 0 {
		return fmt.Errorf("k cannot be negative")
	}
	return nil
}

// DumpSearchRequest asks for every entry of one dump, ranked.
type DumpSearchRequest struct {
	DumpPath    string    `json:"dump_path"`
	Query       []float32 `json:"query,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	IncludeText bool      `json:"include_text,omitempty"`
}

// Validate checks the request.
func (q *DumpSearchRequest) Validate() error {
	if q.DumpPath == "" {
		return fmt.Errorf("dump_path is required")
	}
	if q.Query != nil && len(q.Query) == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return nil
}

// ScoreRequest scores caller-supplied candidates directly.
type ScoreRequest struct {
	Query      []float32   `json:"query"`
	Candidates [][]float32 `json:"candidates"`
	// Hashes defaults to the candidate index.
	Hashes []uint64 `json:"hashes,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// Validate checks the request.
func (q *ScoreRequest) Validate() error {
	if len(q.Query) == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	if len(q.Hashes) > 0 && len(q.Hashes) != len(q.Candidates) {
		return fmt.Errorf("got %d hashes for %d candidates", len(q.Hashes), len(q.Candidates))
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return nil
}
