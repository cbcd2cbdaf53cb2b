// Package main is the vecscan CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/cli"
	"github.com/hyperjump/vecscan/internal/config"
	"github.com/hyperjump/vecscan/internal/corpus"
	"github.com/hyperjump/vecscan/internal/dump"
	"github.com/hyperjump/vecscan/internal/models"
	"github.com/hyperjump/vecscan/internal/result"
	"github.com/hyperjump/vecscan/internal/scorer"
	"github.com/hyperjump/vecscan/internal/search"
	"github.com/hyperjump/vecscan/internal/server"
	"github.com/hyperjump/vecscan/internal/storage"
	"github.com/hyperjump/vecscan/internal/watcher"
	"github.com/hyperjump/vecscan/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vecscan/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory is preferred if present, and a missing default file falls back
// to built-in defaults (the returned path is then empty, so nothing is saved).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Best effort: a missing .env is normal.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "dump":
		runDump()
	case "score":
		runScore()
	case "info":
		runInfo()
	case "pack":
		runPack()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("vecscan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Catalog.Refresh(cfg.Corpus.Directories); err != nil {
		logger.Warn("catalog refresh failed", zap.Error(err))
	}
	stats := components.Catalog.Stats()
	logger.Info("corpus catalog loaded",
		zap.Strings("directories", cfg.Corpus.Directories),
		zap.Int("dumps", stats.Dumps),
		zap.Uint64("entries", stats.Entries),
	)

	var watchSvc server.WatchService
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Corpus.Watch {
		w := watcher.NewWatcher(
			cfg.Corpus.Directories,
			cfg.Corpus.Extension,
			cfg.Corpus.RecursiveOrDefault(),
			components.Catalog,
			watcher.WithLogger(logger),
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		watchSvc = w
	}

	srv := server.NewServer(
		components.Engine,
		components.Catalog,
		components.Chunks,
		cfg,
		logger,
		watchSvc,
		resolvedConfigPath,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// parseVector parses "0.1,0.2,0.3" or a JSON array. An empty string yields nil.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "[") {
		var v []float32
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("parse vector: %w", err)
		}
		return v, nil
	}
	parts := strings.Split(s, ",")
	v := make([]float32, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		v = append(v, float32(f))
	}
	return v, nil
}

// readQuery returns the query from --query, or from the file named by --query-file.
func readQuery(inline, file string) ([]float32, error) {
	if file == "" {
		return parseVector(inline)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	return parseVector(string(data))
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front, since flag.Parse stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = scan the corpus directly)")
	queryFlag := fs.String("query", "", "query vector, comma separated or JSON array (empty = first vector of the first dump)")
	queryFile := fs.String("query-file", "", "file holding the query vector")
	k := fs.Int("k", 0, "number of results (0 = config default_k)")
	withText := fs.Bool("text", false, "resolve chunk text from the database")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query, err := readQuery(*queryFlag, *queryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	req := &models.CorpusSearchRequest{CorpusDir: fs.Arg(0), Query: query, K: *k, IncludeText: *withText}
	format := cli.ParseOutputFormat(*outputFormat)

	if *serverURL != "" {
		if req.CorpusDir != "" {
			req.CorpusDir, _ = filepath.Abs(req.CorpusDir)
		}
		var response models.SearchResponse
		if err := postJSON(*serverURL+"/api/v1/search/corpus", req, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		writeOrExit(&response, format)
		return
	}

	cfg, logger, components := setupDirect(*configPath, *withText)
	defer logger.Sync()
	defer components.Close()

	defaultDir := ""
	if len(cfg.Corpus.Directories) > 0 {
		defaultDir = cfg.Corpus.Directories[0]
	}
	if err := req.Validate(defaultDir); err != nil {
		fmt.Fprintf(os.Stderr, "Usage: vecscan search [flags] [corpus-dir]: %v\n", err)
		os.Exit(1)
	}
	start := time.Now()
	buf, stats, err := components.Engine.SearchCorpusWithStats(context.Background(), req.CorpusDir, req.Query, req.K)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	response := finishResponse(components, buf.Results(), 0, req.IncludeText, start, logger)
	_ = buf.Release()
	response.ScanID = stats.ScanID
	writeOrExit(response, format)
}

func runDump() {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	queryFlag := fs.String("query", "", "query vector (empty = first vector of the dump, excluded from results)")
	queryFile := fs.String("query-file", "", "file holding the query vector")
	limit := fs.Int("limit", 0, "maximum results (0 = all)")
	withText := fs.Bool("text", false, "resolve chunk text from the database")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: vecscan dump [flags] <file.vecdump>")
		os.Exit(1)
	}
	query, err := readQuery(*queryFlag, *queryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	req := &models.DumpSearchRequest{DumpPath: fs.Arg(0), Query: query, Limit: *limit, IncludeText: *withText}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid request: %v\n", err)
		os.Exit(1)
	}

	_, logger, components := setupDirect(*configPath, *withText)
	defer logger.Sync()
	defer components.Close()

	start := time.Now()
	buf, err := components.Engine.SearchSingleDump(context.Background(), req.DumpPath, req.Query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	response := finishResponse(components, buf.Results(), req.Limit, req.IncludeText, start, logger)
	_ = buf.Release()
	writeOrExit(response, cli.ParseOutputFormat(*outputFormat))
}

func runScore() {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println(`Usage: vecscan score [flags] <request.json|->`)
		fmt.Println(`  request: {"query": [...], "candidates": [[...], ...], "hashes": [...], "limit": 0}`)
		os.Exit(1)
	}
	var in io.Reader = os.Stdin
	if fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Open request: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	var req models.ScoreRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintf(os.Stderr, "Parse request: %v\n", err)
		os.Exit(1)
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid request: %v\n", err)
		os.Exit(1)
	}

	_, logger, components := setupDirect(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	start := time.Now()
	buf, err := components.Engine.ScoreExplicit(context.Background(), req.Query, req.Candidates, req.Hashes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Score failed: %v\n", err)
		os.Exit(1)
	}
	response := finishResponse(components, buf.Results(), req.Limit, false, start, logger)
	_ = buf.Release()
	writeOrExit(response, cli.ParseOutputFormat(*outputFormat))
}

func runInfo() {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: vecscan info [flags] <file.vecdump>...")
		os.Exit(1)
	}
	var infos []dump.Info
	for _, path := range fs.Args() {
		r, err := dump.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Open %s: %v\n", path, err)
			os.Exit(1)
		}
		infos = append(infos, dump.Describe(r))
		_ = r.Close()
	}
	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	for _, info := range infos {
		info.WriteText(os.Stdout)
	}
}

func runPack() {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "", "output dump path (required)")
	normalize := fs.Bool("normalize", false, "L2-normalize every vector before writing")
	store := fs.Bool("store", true, "store chunk text in the database")
	source := fs.String("source", "", "source label for stored chunks (default: output path)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if *out == "" || fs.NArg() > 1 {
		fmt.Println("Usage: vecscan pack --out <file.vecdump> [flags] [input.jsonl]")
		fmt.Println(`  each input line: {"text": "...", "vector": [...]}; stdin when no input is given`)
		os.Exit(1)
	}
	var in io.Reader = os.Stdin
	if fs.NArg() == 1 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	packed, err := readPackInput(in, *normalize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read input: %v\n", err)
		os.Exit(1)
	}
	if err := dump.WriteFile(*out, packed.Vectors, packed.Hashes); err != nil {
		fmt.Fprintf(os.Stderr, "Write dump: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Packed %d vector(s) into %s\n", len(packed.Vectors), *out)

	if !*store || len(packed.Chunks) == 0 {
		return
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	label := *source
	if label == "" {
		label, _ = filepath.Abs(*out)
	}
	for _, c := range packed.Chunks {
		c.Source = label
	}
	chunks, err := storage.NewSQLiteChunkStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Open chunk store: %v\n", err)
		os.Exit(1)
	}
	defer chunks.Close()
	ctx := context.Background()
	if _, err := chunks.DeleteChunksBySource(ctx, label); err != nil {
		fmt.Fprintf(os.Stderr, "Clear previous chunks: %v\n", err)
		os.Exit(1)
	}
	if err := chunks.UpsertChunks(ctx, packed.Chunks); err != nil {
		fmt.Fprintf(os.Stderr, "Store chunks: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Stored %d chunk(s) in %s\n", len(packed.Chunks), cfg.Storage.DatabasePath)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Scorer         string                 `json:"scorer"`
	Corpus         *corpus.Stats          `json:"corpus,omitempty"`
	Chunks         *int64                 `json:"chunks,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	LastScan       map[string]interface{} `json:"last_scan,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the corpus and database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger, components := setupDirect(*configPath, true)
		defer logger.Sync()
		defer components.Close()
		if err := components.Catalog.Refresh(cfg.Corpus.Directories); err != nil {
			fmt.Fprintf(os.Stderr, "Read corpus: %v\n", err)
			os.Exit(1)
		}
		stats := components.Catalog.Stats()
		count, err := components.Chunks.CountChunks(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Scorer: components.Engine.Scorer().Name(),
			Corpus: &stats,
			Chunks: &count,
			Config: map[string]interface{}{
				"database_path":      cfg.Storage.DatabasePath,
				"corpus_directories": cfg.Corpus.Directories,
				"batch_size":         cfg.Search.BatchSize,
				"default_k":          cfg.Search.DefaultK,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(cfg.Storage.DatabasePath)...)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "scorer:             %s\n", status.Scorer)
	if status.Corpus != nil {
		fmt.Fprintf(w, "dumps:              %d   # valid dump files in the corpus\n", status.Corpus.Dumps)
		fmt.Fprintf(w, "entries:            %d   # vectors across all dumps\n", status.Corpus.Entries)
		fmt.Fprintf(w, "corpus_bytes:       %d\n", status.Corpus.TotalBytes)
	}
	if status.Chunks != nil {
		fmt.Fprintf(w, "chunks:             %d   # stored chunk texts\n", *status.Chunks)
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # chunk database on disk\n", *status.DiskUsageBytes)
	}
	if status.LastScan != nil {
		fmt.Fprintf(w, "last_scan:          %v (%v files, %v failed)\n",
			status.LastScan["scan_id"], status.LastScan["files"], status.LastScan["failed"])
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range []string{"scorer_type", "batch_size", "self_match_threshold", "default_k", "max_k", "max_workers", "database_path", "corpus_directories"} {
			if v, ok := status.Config[key]; ok {
				fmt.Fprintf(w, "%-20s%v\n", key+":", v)
			}
		}
	}
}

// setupDirect loads config and initializes components for a one-shot command, exiting on failure.
func setupDirect(configPath string, withChunks bool) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, withChunks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

func finishResponse(c *Components, results []result.SimilarityResult, limit int, includeText bool, start time.Time, logger *zap.Logger) *models.SearchResponse {
	response := models.NewSearchResponse(results, limit)
	if includeText && c.Chunks != nil {
		if err := storage.ResolveText(context.Background(), c.Chunks, response); err != nil {
			logger.Warn("resolve chunk text failed", zap.Error(err))
		}
	}
	response.QueryTime = time.Since(start).Milliseconds()
	return response
}

func writeOrExit(response *models.SearchResponse, format cli.SearchOutputFormat) {
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Scorer  scorer.Scorer
	Engine  *search.Engine
	Catalog *corpus.Catalog
	Chunks  storage.ChunkStore
}

func (c *Components) Close() {
	if c.Chunks != nil {
		_ = c.Chunks.Close()
	}
	if c.Scorer != nil {
		_ = c.Scorer.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withChunks bool) (*Components, error) {
	sc, err := scorer.New(cfg.Scorer.Type, scorer.ONNXConfig{
		ModelPath:      cfg.Scorer.ModelPath,
		LibraryPath:    cfg.Scorer.LibraryPath,
		QueryInput:     cfg.Scorer.QueryInput,
		CandidateInput: cfg.Scorer.CandidateInput,
		Output:         cfg.Scorer.OutputName,
		FixedBatch:     cfg.Scorer.FixedBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scorer: %w", err)
	}
	logger.Info("scorer initialized",
		zap.String("type", sc.Name()),
		zap.Int("max_batch", sc.MaxBatch()),
		zap.Bool("onnx_available", scorer.IsONNXAvailable()))

	c := &Components{
		Scorer:  sc,
		Engine:  search.NewEngine(sc, &cfg.Search, cfg.Corpus.Extension, logger),
		Catalog: corpus.NewCatalog(corpus.DiscoverOptions{Extension: cfg.Corpus.Extension, Logger: logger}),
	}
	if withChunks {
		chunks, err := storage.NewSQLiteChunkStore(cfg.Storage.DatabasePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize chunk store: %w", err)
		}
		c.Chunks = chunks
	}
	return c, nil
}

func printUsage() {
	fmt.Println(`vecscan - Similarity search over memory-mapped vector dumps

Usage:
  vecscan server [flags]                 Start the HTTP server
  vecscan search [flags] [corpus-dir]    Global top-k over every dump in a directory
  vecscan dump [flags] <file.vecdump>    Rank every entry of one dump
  vecscan score [flags] <request.json>   Score explicit candidates against a query
  vecscan info [flags] <file.vecdump>    Show dump header and a sample entry
  vecscan pack --out <file> [input]      Build a dump from JSONL {"text","vector"} lines
  vecscan status [flags]                 Show corpus, database and scorer status
  vecscan version                        Show version
  vecscan help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/vecscan/config.yaml)
  --debug            Enable debug logging

Search / Dump Flags:
  --query string       Query vector, "0.1,0.2,..." or a JSON array. Omit to use the
                       first vector of the first dump (that entry is excluded).
  --query-file string  File holding the query vector
  --k int              Number of results for search (default: config default_k)
  --limit int          Maximum results for dump (default: all)
  --text               Attach stored chunk text to each hit
  --output string      Output format: text, compact, or json (default: text)
  --server string      (search only) Server URL; empty scans directly

Pack Flags:
  --out string       Output dump path
  --normalize        L2-normalize vectors
  --store            Store chunk text in the database (default: true)
  --source string    Source label for stored chunks

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read directly.
  --output string    Output format: text or json (default: text)

Examples:
  vecscan server
  vecscan search ./dumps
  vecscan search --query 0.1,0.7,0.2 --k 10 --text ./dumps
  vecscan dump --output json notes.vecdump
  vecscan pack --out dumps/notes.vecdump notes.jsonl
  vecscan info dumps/notes.vecdump
  vecscan status --output json`)
}
