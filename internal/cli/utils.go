// Package cli provides output helpers for the vecscan command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/vecscan/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one "hash<TAB>score" line per hit.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat maps a --format value to a SearchOutputFormat. Unknown values fall back to text.
func ParseOutputFormat(s string) SearchOutputFormat {
	switch SearchOutputFormat(strings.ToLower(s)) {
	case OutputJSON:
		return OutputJSON
	case OutputCompact:
		return OutputCompact
	default:
		return OutputText
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, hit := range response.Results {
			if _, err := fmt.Fprintf(w, "%016x\t%.6f\n", hit.Hash, hit.Score); err != nil {
				return err
			}
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n", response.Total, response.QueryTime)
	if response.ScanID != "" {
		fmt.Fprintf(w, "Scan: %s\n", response.ScanID)
	}
	fmt.Fprintln(w)
	for _, hit := range response.Results {
		writeOneResult(w, hit)
	}
	if response.MissingText > 0 {
		fmt.Fprintf(w, "(%d results have no stored text)\n", response.MissingText)
	}
}

func writeOneResult(w io.Writer, hit *models.Hit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Hash: %016x\n", hit.Rank, hit.Score, hit.Hash)
	if hit.Text != "" {
		fmt.Fprintf(w, "\n%s\n", Truncate(hit.Text, 200))
	}
	fmt.Fprintln(w)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
