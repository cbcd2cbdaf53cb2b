package config

import "strings"

// Search defaults. MaxBatchSize is the upper bound accepted for search.batch_size.
const (
	DefaultBatchSize                  = 1024
	MaxBatchSize                      = 1 << 17
	DefaultSelfMatchThreshold float32 = 0.99
	DefaultK                          = 5
	DefaultMaxK                       = 100
	DefaultMaxWorkers                 = 8
	DefaultExtension                  = ".vecdump"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vecscan/data/db/chunks.db"
	}
	if cfg.Scorer.Type == "" {
		if strings.HasSuffix(strings.ToLower(cfg.Scorer.ModelPath), ".onnx") {
			cfg.Scorer.Type = "onnx"
		} else {
			cfg.Scorer.Type = "cosine"
		}
	}
	// A static-batch model needs every call padded to its width, so batch at that width.
	if cfg.Search.BatchSize == 0 && cfg.Scorer.FixedBatch > 0 {
		cfg.Search.BatchSize = cfg.Scorer.FixedBatch
	}
	ApplySearchDefaults(&cfg.Search)
	if cfg.Corpus.Extension == "" {
		cfg.Corpus.Extension = DefaultExtension
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Corpus.Directories) > 0 && cfg.Corpus.Recursive == nil {
		t := true
		cfg.Corpus.Recursive = &t
	}
}

// ApplySearchDefaults sets default values for any zero values in s.
func ApplySearchDefaults(s *SearchConfig) {
	if s.BatchSize == 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.SelfMatchThreshold == 0 {
		s.SelfMatchThreshold = DefaultSelfMatchThreshold
	}
	if s.DefaultK == 0 {
		s.DefaultK = DefaultK
	}
	if s.MaxK == 0 {
		s.MaxK = DefaultMaxK
	}
	if s.MaxWorkers == 0 {
		s.MaxWorkers = DefaultMaxWorkers
	}
}
