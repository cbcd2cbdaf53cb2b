package models

import "github.com/hyperjump/vecscan/internal/result"

// Hit is one ranked match, optionally with the chunk text behind its hash.
type Hit struct {
	Rank  int     `json:"rank"`
	Hash  uint64  `json:"hash"`
	Score float32 `json:"score"`
	Text  string  `json:"text,omitempty"`
}

// SearchResponse is the response for every search endpoint. An empty Results
// list with a 200 status means no matches; failures use an error body instead.
type SearchResponse struct {
	Results   []*Hit `json:"results"`
	Total     int    `json:"total"`
	QueryTime int64  `json:"query_time_ms"`
	ScanID    string `json:"scan_id,omitempty"`
	// MissingText counts hits whose hash had no stored chunk, when text was requested.
	MissingText int `json:"missing_text,omitempty"`
}

// NewSearchResponse builds a response from ranked results, truncated to limit when limit > 0.
func NewSearchResponse(results []result.SimilarityResult, limit int) *SearchResponse {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	hits := make([]*Hit, len(results))
	for i, r := range results {
		hits[i] = &Hit{Rank: i + 1, Hash: r.Hash, Score: r.Score}
	}
	return &SearchResponse{Results: hits, Total: len(hits)}
}

// Hashes returns the hashes of all hits in rank order.
func (r *SearchResponse) Hashes() []uint64 {
	out := make([]uint64, len(r.Results))
	for i, h := range r.Results {
		out[i] = h.Hash
	}
	return out
}
