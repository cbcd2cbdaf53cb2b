// Package config provides configuration loading and structs for the vecscan server and CLI.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvModelPath    = "VECSCAN_MODEL_PATH"
	EnvCorpusDir    = "VECSCAN_CORPUS_DIR"
	EnvDatabasePath = "VECSCAN_DATABASE_PATH"
	EnvDebug        = "VECSCAN_DEBUG"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Scorer  ScorerConfig  `yaml:"scorer"`
	Search  SearchConfig  `yaml:"search"`
	Corpus  CorpusConfig  `yaml:"corpus"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the chunk text database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ScorerConfig selects and configures the similarity scorer.
type ScorerConfig struct {
	// Type is "cosine" (CPU) or "onnx". Empty selects onnx when ModelPath is set.
	Type           string `yaml:"type"`
	ModelPath      string `yaml:"model_path"`
	LibraryPath    string `yaml:"library_path"`
	QueryInput     string `yaml:"query_input"`
	CandidateInput string `yaml:"candidate_input"`
	OutputName     string `yaml:"output_name"`
	FixedBatch     int    `yaml:"fixed_batch"`
}

// SearchConfig holds batching, self-match and ranking settings.
type SearchConfig struct {
	BatchSize          int     `yaml:"batch_size"`
	SelfMatchThreshold float32 `yaml:"self_match_threshold"`
	DefaultK           int     `yaml:"default_k"`
	MaxK               int     `yaml:"max_k"`
	MaxWorkers         int     `yaml:"max_workers"`
}

// CorpusConfig holds the dump directories and watch settings.
type CorpusConfig struct {
	Directories []string `yaml:"directories"`
	Extension   string   `yaml:"extension"`
	Watch       bool     `yaml:"watch"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (c *CorpusConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and then environment overrides.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Scorer.ModelPath != "" {
		cfg.Scorer.ModelPath = expandPath(cfg.Scorer.ModelPath, configDir)
	}
	if cfg.Scorer.LibraryPath != "" {
		cfg.Scorer.LibraryPath = expandPath(cfg.Scorer.LibraryPath, configDir)
	}
	for i := range cfg.Corpus.Directories {
		cfg.Corpus.Directories[i] = expandPath(cfg.Corpus.Directories[i], configDir)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with defaults and environment overrides applied.
func Default() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from VECSCAN_* environment variables. Relative
// paths are resolved against the working directory.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvModelPath); v != "" {
		cfg.Scorer.ModelPath = absPath(v)
		if strings.HasSuffix(strings.ToLower(v), ".onnx") {
			cfg.Scorer.Type = "onnx"
		}
	}
	if v := os.Getenv(EnvCorpusDir); v != "" {
		dirs := filepath.SplitList(v)
		for i := range dirs {
			dirs[i] = absPath(dirs[i])
		}
		cfg.Corpus.Directories = dirs
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.Storage.DatabasePath = absPath(v)
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	switch c.Scorer.Type {
	case "cosine":
	case "onnx":
		if c.Scorer.ModelPath == "" {
			return fmt.Errorf("%w: scorer.model_path is required for onnx", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown scorer.type %q", ErrInvalid, c.Scorer.Type)
	}
	if c.Scorer.FixedBatch < 0 {
		return fmt.Errorf("%w: scorer.fixed_batch must not be negative", ErrInvalid)
	}
	s := c.Search
	if s.BatchSize < 1 || s.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: search.batch_size %d must be between 1 and %d", ErrInvalid, s.BatchSize, MaxBatchSize)
	}
	if c.Scorer.FixedBatch > 0 && s.BatchSize > c.Scorer.FixedBatch {
		return fmt.Errorf("%w: search.batch_size %d exceeds scorer.fixed_batch %d", ErrInvalid, s.BatchSize, c.Scorer.FixedBatch)
	}
	if t := float64(s.SelfMatchThreshold); math.IsNaN(t) || t <= 0 {
		return fmt.Errorf("%w: search.self_match_threshold must be positive", ErrInvalid)
	}
	if s.DefaultK < 1 || s.DefaultK > s.MaxK {
		return fmt.Errorf("%w: search.default_k %d must be between 1 and max_k %d", ErrInvalid, s.DefaultK, s.MaxK)
	}
	if s.MaxWorkers < 1 {
		return fmt.Errorf("%w: search.max_workers must be at least 1", ErrInvalid)
	}
	if !strings.HasPrefix(c.Corpus.Extension, ".") {
		return fmt.Errorf("%w: corpus.extension %q must start with a dot", ErrInvalid, c.Corpus.Extension)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
