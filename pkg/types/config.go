// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SelectorConfig holds the weights the strategy selector combines.
// The exact formula is configuration, not code: tests assert ordering
// properties, not scores.
type SelectorConfig struct {
	// HistoryWeight scales the historical success rate term.
	HistoryWeight float64 `json:"history_weight" yaml:"history_weight"`

	// PredictorWeight scales the predicted success probability term.
	PredictorWeight float64 `json:"predictor_weight" yaml:"predictor_weight"`

	// RiskWeight scales the inverse-risk term. With equal other terms,
	// lower-risk strategies rank first.
	RiskWeight float64 `json:"risk_weight" yaml:"risk_weight"`

	// ErrorBoost is added when a strategy's fix domain matches a recent
	// compilation error category.
	ErrorBoost float64 `json:"error_boost" yaml:"error_boost"`
}

// Config holds all settings for one compilation engine instance.
type Config struct {
	// Backend selects the primary LaTeX compiler.
	Backend Backend `json:"backend" yaml:"backend"`

	// FallbackBackends are tried in order when the primary is
	// unavailable or fails terminally.
	FallbackBackends []Backend `json:"fallback_backends" yaml:"fallback_backends"`

	// OptimizationLevel bounds which strategies the optimizer may apply.
	OptimizationLevel OptimizationLevel `json:"optimization_level" yaml:"optimization_level"`

	// MaxIterations bounds the optimization loop (default 3).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MaxRetries bounds Compile-stage retries per job (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// CacheDir is the stage cache location (default ".latexforge-cache").
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// MaxCacheSizeBytes bounds the cache; least-recently-used entries
	// are evicted past the bound (default 1 GiB).
	MaxCacheSizeBytes int64 `json:"max_cache_size_bytes" yaml:"max_cache_size_bytes"`

	// EnableLearning turns the learned predictor on. When false the
	// selector uses a constant neutral probability.
	EnableLearning bool `json:"enable_learning" yaml:"enable_learning"`

	// HistoryPath is the append-only compilation history log
	// (default "<cache_dir>/history.jsonl").
	HistoryPath string `json:"history_path" yaml:"history_path"`

	// OutputDir receives the PDF and auxiliary files. Empty means the
	// input file's directory.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// CompressPDF enables ghostscript compression in the Finalize stage.
	CompressPDF bool `json:"compress_pdf" yaml:"compress_pdf"`

	// CompileTimeout bounds one backend invocation (default 2m).
	CompileTimeout time.Duration `json:"compile_timeout" yaml:"compile_timeout"`

	// Workers is the batch worker pool width (default 4, capped at 10).
	Workers int `json:"workers" yaml:"workers"`

	Selector SelectorConfig `json:"selector" yaml:"selector"`
}

const maxWorkers = 10

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	return Config{
		Backend:           BackendPdflatex,
		FallbackBackends:  []Backend{BackendXelatex, BackendLualatex},
		OptimizationLevel: LevelModerate,
		MaxIterations:     3,
		MaxRetries:        3,
		CacheDir:          ".latexforge-cache",
		MaxCacheSizeBytes: 1 << 30,
		EnableLearning:    true,
		CompileTimeout:    2 * time.Minute,
		Workers:           4,
		Selector: SelectorConfig{
			HistoryWeight:   0.5,
			PredictorWeight: 0.3,
			RiskWeight:      0.2,
			ErrorBoost:      0.25,
		},
	}
}

// Normalize fills unset fields with defaults and clamps bounds.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.OptimizationLevel == "" {
		c.OptimizationLevel = def.OptimizationLevel
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.MaxCacheSizeBytes <= 0 {
		c.MaxCacheSizeBytes = def.MaxCacheSizeBytes
	}
	if c.HistoryPath == "" {
		c.HistoryPath = c.CacheDir + "/history.jsonl"
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = def.CompileTimeout
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.Workers > maxWorkers {
		c.Workers = maxWorkers
	}
	if c.Selector == (SelectorConfig{}) {
		c.Selector = def.Selector
	}
	return c
}

// Hash returns a stable digest of the fields that affect stage outputs.
// It is part of every cache key: changing the backend or optimization
// settings must never reuse stale stage results.
func (c Config) Hash() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend=%s;", c.Backend)
	fmt.Fprintf(&b, "fallbacks=%v;", c.FallbackBackends)
	fmt.Fprintf(&b, "level=%s;", c.OptimizationLevel)
	fmt.Fprintf(&b, "compress=%t;", c.CompressPDF)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
