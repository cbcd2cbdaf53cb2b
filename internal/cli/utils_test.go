package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/vecscan/internal/models"
	"github.com/hyperjump/vecscan/internal/result"
)

func sampleResponse() *models.SearchResponse {
	resp := models.NewSearchResponse([]result.SimilarityResult{
		{Hash: 0xabc, Score: 0.95},
		{Hash: 0x42, Score: 0.5},
	}, 0)
	resp.QueryTime = 42
	resp.ScanID = "scan-1"
	resp.Results[0].Text = "Content here"
	resp.MissingText = 1
	return resp
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	out := buf.String()
	var decoded models.SearchResponse
	if err := json.NewDecoder(strings.NewReader(out)).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if decoded.Total != 2 || decoded.QueryTime != 42 || decoded.ScanID != "scan-1" {
		t.Errorf("decoded total=%d query_time=%d scan_id=%q", decoded.Total, decoded.QueryTime, decoded.ScanID)
	}
	if len(decoded.Results) != 2 || decoded.Results[0].Hash != 0xabc || decoded.Results[0].Text != "Content here" {
		t.Errorf("decoded results: %+v", decoded.Results)
	}
}

func TestWriteSearchResults_JSON_empty(t *testing.T) {
	response := models.NewSearchResponse(nil, 0)
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("empty response should encode an empty list, got %s", buf.String())
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 2 results", "42ms", "Scan: scan-1", "Rank: 1", "0000000000000abc", "Content here", "1 results have no stored text"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatalf("WriteSearchResults(compact): %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[0] != "0000000000000abc\t0.950000" {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, models.NewSearchResponse(nil, 0), SearchOutputFormat("unknown")); err != nil {
		t.Fatalf("WriteSearchResults(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := map[string]SearchOutputFormat{
		"json":    OutputJSON,
		"JSON":    OutputJSON,
		"compact": OutputCompact,
		"text":    OutputText,
		"":        OutputText,
		"xml":     OutputText,
	}
	for in, want := range tests {
		if got := ParseOutputFormat(in); got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"maxLen zero", "ab", 0, "ab"},
		{"maxLen negative", "ab", -1, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}
