package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/corpus"
	"github.com/hyperjump/vecscan/internal/dump"
	"github.com/hyperjump/vecscan/internal/models"
	"github.com/hyperjump/vecscan/internal/scorer"
	"github.com/hyperjump/vecscan/internal/search"
	"github.com/hyperjump/vecscan/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	srv    *Server
	dir    string
	corpus string
	chunks *storage.SQLiteChunkStore
	cfg    *config.Config
}

// newTestEnv builds a server over a corpus with two dumps:
// a.vecdump holds hashes 1..3, b.vecdump holds 10 and 11.
func newTestEnv(t *testing.T, watch WatchService) *testEnv {
	t.Helper()
	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	if err := dump.WriteFile(filepath.Join(corpusDir, "a.vecdump"),
		[][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}, []uint64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := dump.WriteFile(filepath.Join(corpusDir, "b.vecdump"),
		[][]float32{{0.5, 0.5}, {1, 0.05}}, []uint64{10, 11}); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Storage.DatabasePath = filepath.Join(dir, "chunks.db")
	cfg.Corpus.Directories = []string{corpusDir}

	chunks, err := storage.NewSQLiteChunkStore(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = chunks.Close() })

	logger := zap.NewNop()
	catalog := corpus.NewCatalog(corpus.DiscoverOptions{Extension: cfg.Corpus.Extension, Logger: logger})
	if err := catalog.Refresh(cfg.Corpus.Directories); err != nil {
		t.Fatal(err)
	}
	engine := search.NewEngine(scorer.NewCosineScorer(), &cfg.Search, cfg.Corpus.Extension, logger)
	srv := NewServer(engine, catalog, chunks, cfg, logger, watch, "")
	return &testEnv{srv: srv, dir: dir, corpus: corpusDir, chunks: chunks, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, r)
	return w
}

func decodeSearch(t *testing.T, w *httptest.ResponseRecorder) models.SearchResponse {
	t.Helper()
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHandleSearchCorpus(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/v1/search/corpus", models.CorpusSearchRequest{
		Query: []float32{1, 0},
		K:     3,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeSearch(t, w)
	if resp.Total != 3 {
		t.Fatalf("total: got %d", resp.Total)
	}
	want := []uint64{1, 11, 2}
	for i, h := range want {
		if resp.Results[i].Hash != h {
			t.Errorf("result %d: got hash %d, want %d", i, resp.Results[i].Hash, h)
		}
		if resp.Results[i].Rank != i+1 {
			t.Errorf("result %d: got rank %d", i, resp.Results[i].Rank)
		}
	}
	if resp.ScanID == "" {
		t.Error("expected scan_id")
	}
}

func TestHandleSearchCorpus_ImplicitQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/v1/search/corpus", models.CorpusSearchRequest{K: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeSearch(t, w)
	for _, h := range resp.Results {
		if h.Hash == 1 {
			t.Error("self-match should be excluded")
		}
	}
	if resp.Total != 2 || resp.Results[0].Hash != 11 {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestHandleSearchCorpus_EmptyCorpus(t *testing.T) {
	env := newTestEnv(t, nil)
	empty := filepath.Join(env.dir, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/search/corpus", models.CorpusSearchRequest{CorpusDir: empty})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	resp := decodeSearch(t, w)
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty result list, got %+v", resp.Results)
	}
}

func TestHandleSearchCorpus_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing root", models.CorpusSearchRequest{CorpusDir: filepath.Join(env.dir, "nope")}, http.StatusNotFound},
		{"empty query", map[string]interface{}{"query": []float32{}}, http.StatusBadRequest},
		{"negative k", models.CorpusSearchRequest{K: -1}, http.StatusBadRequest},
		{"bad body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/search/corpus", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			var body map[string]string
			_ = json.NewDecoder(w.Body).Decode(&body)
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestHandleSearchCorpus_DimensionMismatchSkipsFiles(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/v1/search/corpus", models.CorpusSearchRequest{Query: []float32{1, 0, 0}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if resp := decodeSearch(t, w); len(resp.Results) != 0 {
		t.Errorf("expected no results, got %+v", resp.Results)
	}
	stats, ok := env.srv.engine.LastScan()
	if !ok || stats.Failed != 2 {
		t.Errorf("last scan: %+v", stats)
	}
}

func TestHandleSearchCorpus_ScanIDPerRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := env.do(t, http.MethodPost, "/api/v1/search/corpus", models.CorpusSearchRequest{Query: []float32{1, 0}})
			var resp models.SearchResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err == nil {
				ids[i] = resp.ScanID
			}
		}(i)
	}
	wg.Wait()
	seen := make(map[string]bool, n)
	for i, id := range ids {
		if id == "" {
			t.Fatalf("request %d: empty scan id", i)
		}
		if seen[id] {
			t.Errorf("scan id %s reported by more than one request", id)
		}
		seen[id] = true
	}
}

func TestHandleSearchDump_NonFiniteScore(t *testing.T) {
	env := newTestEnv(t, nil)
	path := filepath.Join(env.dir, "nan.vecdump")
	if err := dump.WriteFile(path, [][]float32{{1, 0}, {float32(math.NaN()), 0}}, []uint64{1, 2}); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/search/dump", models.DumpSearchRequest{DumpPath: path, Query: []float32{1, 0}})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestRespondJSON_EncodeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	w := httptest.NewRecorder()
	env.srv.respondJSON(w, http.StatusOK, map[string]float64{"score": math.NaN()})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Errorf("error body: %q (%v)", w.Body.String(), err)
	}
}

func TestHandleSearchDump(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if err := env.chunks.UpsertChunks(ctx, []*storage.Chunk{{Hash: 2, Text: "second", Source: "a"}}); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/search/dump", models.DumpSearchRequest{
		DumpPath:    filepath.Join(env.corpus, "a.vecdump"),
		IncludeText: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeSearch(t, w)
	if resp.Total != 2 {
		t.Fatalf("total: got %d", resp.Total)
	}
	if resp.Results[0].Hash != 2 || resp.Results[0].Text != "second" {
		t.Errorf("first hit: %+v", resp.Results[0])
	}
	if resp.MissingText != 1 {
		t.Errorf("missing_text: got %d, want 1", resp.MissingText)
	}
}

func TestHandleSearchDump_Corrupt(t *testing.T) {
	env := newTestEnv(t, nil)
	bad := filepath.Join(env.dir, "bad.vecdump")
	if err := os.WriteFile(bad, make([]byte, 20), 0600); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/search/dump", models.DumpSearchRequest{DumpPath: bad})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/search/dump", models.DumpSearchRequest{DumpPath: filepath.Join(env.dir, "none.vecdump")})
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleScore(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{
		Query:      []float32{1, 0},
		Candidates: [][]float32{{0, 1}, {1, 0}, {-1, 0}},
		Hashes:     []uint64{7, 8, 9},
		Limit:      2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeSearch(t, w)
	if resp.Total != 2 || resp.Results[0].Hash != 8 || resp.Results[1].Hash != 7 {
		t.Errorf("unexpected results: %+v %+v", resp.Results[0], resp.Results[1])
	}

	w = env.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{
		Query:      []float32{1, 0},
		Candidates: [][]float32{{1, 0}, {1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("ragged candidates: got %d, want 400", w.Code)
	}
}

func TestHandleListDumps(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/v1/dumps", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Dumps []corpus.Entry `json:"dumps"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || filepath.Base(out.Dumps[0].Path) != "a.vecdump" {
		t.Errorf("unexpected dumps: %+v", out)
	}
	if out.Dumps[1].Header.NumEntries != 2 {
		t.Errorf("b.vecdump entries: got %d", out.Dumps[1].Header.NumEntries)
	}
}

func TestHandleListDumps_ByPath(t *testing.T) {
	env := newTestEnv(t, nil)
	path := filepath.Join(env.corpus, "b.vecdump")
	w := env.do(t, http.MethodGet, "/api/v1/dumps?path="+path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Dumps []corpus.Entry `json:"dumps"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || out.Dumps[0].Path != path {
		t.Errorf("unexpected dumps: %+v", out)
	}

	w = env.do(t, http.MethodGet, "/api/v1/dumps?path="+filepath.Join(env.corpus, "missing.vecdump"), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown path status: got %d, want 404", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/search/corpus", models.CorpusSearchRequest{Query: []float32{1, 0}})

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["scorer"] != "cosine" {
		t.Errorf("scorer: got %v", out["scorer"])
	}
	if _, ok := out["chunks"]; !ok {
		t.Error("expected chunks in status")
	}
	if _, ok := out["disk_usage_bytes"]; !ok {
		t.Error("expected disk_usage_bytes in status")
	}
	scan, ok := out["last_scan"].(map[string]interface{})
	if !ok {
		t.Fatal("expected last_scan in status")
	}
	if scan["files"] != float64(2) {
		t.Errorf("last_scan.files: got %v", scan["files"])
	}
	cfg, ok := out["config"].(map[string]interface{})
	if !ok {
		t.Fatal("expected config in status")
	}
	if cfg["batch_size"] != float64(config.DefaultBatchSize) {
		t.Errorf("batch_size: got %v", cfg["batch_size"])
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	env := newTestEnv(t, &mockWatchService{dirs: []string{"/tmp/dumps"}})
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/dumps" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd(t *testing.T) {
	mock := &mockWatchService{}
	env := newTestEnv(t, mock)
	configPath := filepath.Join(env.dir, "config.yaml")
	env.srv.configPath = configPath

	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": env.corpus})
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 1 || mock.dirs[0] != env.corpus {
		t.Errorf("watch dirs: got %v", mock.dirs)
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load persisted config: %v", err)
	}
	if len(saved.Corpus.Directories) != 1 || saved.Corpus.Directories[0] != env.corpus {
		t.Errorf("persisted directories: got %v", saved.Corpus.Directories)
	}
}

func TestHandleWatchDirectoriesAdd_InvalidPath(t *testing.T) {
	env := newTestEnv(t, &mockWatchService{})
	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(env.dir, "missing")})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d, want 404", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(env.corpus, "a.vecdump")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("file path: got %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty path: got %d, want 400", w.Code)
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	mock := &mockWatchService{dirs: []string{env.corpus}}
	env.srv.watch = mock

	w := env.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+env.corpus, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 0 {
		t.Errorf("watch dirs: got %v", mock.dirs)
	}
	if n := env.srv.catalog.Stats().Dumps; n != 0 {
		t.Errorf("catalog dumps after remove: got %d, want 0", n)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dump.ErrIO, http.StatusNotFound},
		{dump.ErrTruncatedBody, http.StatusUnprocessableEntity},
		{dump.ErrEmptyFile, http.StatusUnprocessableEntity},
		{search.ErrEmptyQuery, http.StatusBadRequest},
		{search.ErrScoring, http.StatusInternalServerError},
		{context.Canceled, http.StatusServiceUnavailable},
		{fmt.Errorf("scan: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
