package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/corpus"
	"github.com/hyperjump/vecscan/internal/dump"
	"github.com/hyperjump/vecscan/internal/models"
	"github.com/hyperjump/vecscan/internal/result"
	"github.com/hyperjump/vecscan/internal/search"
	"github.com/hyperjump/vecscan/internal/storage"
)

func (s *Server) handleSearchCorpus(w http.ResponseWriter, r *http.Request) {
	var req models.CorpusSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.defaultCorpusDir()); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("corpus search request", zap.String("corpus_dir", req.CorpusDir), zap.Int("k", req.K))
	start := time.Now()
	buf, stats, err := s.engine.SearchCorpusWithStats(r.Context(), req.CorpusDir, req.Query, req.K)
	if err != nil {
		s.logger.Error("corpus search failed", zap.Error(err))
		s.respondSearchError(w, err)
		return
	}
	resp := s.buildResponse(r, buf, 0, req.IncludeText, start)
	resp.ScanID = stats.ScanID
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchDump(w http.ResponseWriter, r *http.Request) {
	var req models.DumpSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("dump search request", zap.String("dump_path", req.DumpPath), zap.Int("limit", req.Limit))
	start := time.Now()
	buf, err := s.engine.SearchSingleDump(r.Context(), req.DumpPath, req.Query)
	if err != nil {
		s.logger.Error("dump search failed", zap.Error(err))
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.buildResponse(r, buf, req.Limit, req.IncludeText, start))
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req models.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("score request", zap.Int("candidates", len(req.Candidates)))
	start := time.Now()
	buf, err := s.engine.ScoreExplicit(r.Context(), req.Query, req.Candidates, req.Hashes)
	if err != nil {
		s.logger.Error("score failed", zap.Error(err))
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.buildResponse(r, buf, req.Limit, false, start))
}

// buildResponse converts and releases buf.
func (s *Server) buildResponse(r *http.Request, buf *result.Buffer, limit int, includeText bool, start time.Time) *models.SearchResponse {
	resp := models.NewSearchResponse(buf.Results(), limit)
	if err := buf.Release(); err != nil {
		s.logger.Warn("release result buffer", zap.Error(err))
	}
	if includeText {
		if s.chunks == nil {
			resp.MissingText = len(resp.Results)
		} else if err := storage.ResolveText(r.Context(), s.chunks, resp); err != nil {
			s.logger.Warn("resolve chunk text failed", zap.Error(err))
		}
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp
}

func (s *Server) respondSearchError(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case search.IsCancelled(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, dump.ErrIO):
		return http.StatusNotFound
	case dump.IsFormatError(err), errors.Is(err, dump.ErrEmptyFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, search.ErrDimensionMismatch),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrInvalidBatchSize),
		errors.Is(err, dump.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) defaultCorpusDir() string {
	if s.config != nil && len(s.config.Corpus.Directories) > 0 {
		return s.config.Corpus.Directories[0]
	}
	return ""
}

func (s *Server) handleListDumps(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"dumps": []interface{}{}, "total": 0})
		return
	}
	if path := r.URL.Query().Get("path"); path != "" {
		entry, ok := s.catalog.Get(path)
		if !ok {
			s.respondError(w, http.StatusNotFound, "dump not in catalog")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"dumps": []corpus.Entry{entry}, "total": 1})
		return
	}
	entries := s.catalog.List()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"dumps": entries, "total": len(entries)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"scorer": s.engine.Scorer().Name(),
	}
	if s.catalog != nil {
		resp["corpus"] = s.catalog.Stats()
	}
	if s.chunks != nil {
		count, err := s.chunks.CountChunks(r.Context())
		if err != nil {
			s.logger.Error("status: count chunks failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["chunks"] = count
	}
	if stats, ok := s.engine.LastScan(); ok {
		resp["last_scan"] = map[string]interface{}{
			"scan_id":     stats.ScanID,
			"files":       stats.Files,
			"failed":      stats.Failed,
			"candidates":  stats.Candidates,
			"workers":     stats.Workers,
			"duration_ms": stats.Duration.Milliseconds(),
		}
	}

	sc := s.engine.Config()
	configInfo := map[string]interface{}{
		"batch_size":           sc.BatchSize,
		"self_match_threshold": sc.SelfMatchThreshold,
		"default_k":            sc.DefaultK,
		"max_k":                sc.MaxK,
		"max_workers":          sc.MaxWorkers,
	}
	if s.config != nil {
		configInfo["scorer_type"] = s.config.Scorer.Type
		configInfo["model_path"] = s.config.Scorer.ModelPath
		configInfo["database_path"] = s.config.Storage.DatabasePath
		configInfo["corpus_directories"] = s.config.Corpus.Directories
		configInfo["extension"] = s.config.Corpus.Extension

		if s.config.Storage.DatabasePath != "" {
			diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(s.config.Storage.DatabasePath)...)
			if err == nil {
				resp["disk_usage_bytes"] = diskBytes
			}
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.catalog != nil {
		s.catalog.RemoveUnder(abs)
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistDirectories writes the watched directory list back to the config file.
func (s *Server) persistDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Corpus.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondJSON encodes data before writing the status so an encoding failure
// still reaches the client as a 500.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		body.Reset()
		_ = json.NewEncoder(&body).Encode(map[string]string{"error": "failed to encode response"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
