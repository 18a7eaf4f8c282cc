// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine wires the pipeline, cache, optimizer, and learner into
// the two entry points the CLI calls: Compile and Optimize.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/backend"
	"github.com/meshintel/latexforge/internal/cache"
	"github.com/meshintel/latexforge/internal/document"
	"github.com/meshintel/latexforge/internal/learn"
	"github.com/meshintel/latexforge/internal/pipeline"
	"github.com/meshintel/latexforge/internal/recovery"
	"github.com/meshintel/latexforge/internal/strategy"
	"github.com/meshintel/latexforge/internal/workers"
	"github.com/meshintel/latexforge/pkg/types"
)

// Engine is one configured compilation engine instance.
type Engine struct {
	cfg      types.Config
	store    *cache.Store
	adapter  *backend.Adapter
	pipe     *pipeline.Pipeline
	history  *learn.HistoryStore
	learner  *learn.Learner
	selector *strategy.Selector
	log      *zap.Logger
}

// New opens the cache and history and assembles the engine. Close
// releases both.
func New(cfg types.Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.Normalize()

	store, err := cache.NewStore(cfg.CacheDir, cfg.MaxCacheSizeBytes, log)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	history, err := learn.OpenHistory(cfg.HistoryPath, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}
	learner := learn.NewLearner(history)

	var predictor strategy.Predictor = learn.NeutralPredictor{}
	if cfg.EnableLearning {
		predictor = learn.NewHistoryPredictor(learner)
	}

	adapter := backend.NewAdapter()
	return &Engine{
		cfg:      cfg,
		store:    store,
		adapter:  adapter,
		pipe:     pipeline.New(cfg, store, adapter, log),
		history:  history,
		learner:  learner,
		selector: strategy.NewSelector(cfg.Selector, cfg.OptimizationLevel, learner, predictor),
		log:      log,
	}, nil
}

// Close releases the cache store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Config returns the normalized configuration in effect.
func (e *Engine) Config() types.Config {
	return e.cfg
}

// Cache exposes the store for maintenance commands.
func (e *Engine) Cache() *cache.Store {
	return e.store
}

// Learner exposes the performance aggregates for reporting.
func (e *Engine) Learner() *learn.Learner {
	return e.learner
}

// History exposes the record log for reporting and compaction.
func (e *Engine) History() *learn.HistoryStore {
	return e.history
}

// Compile runs the full pipeline over inputPath and records the outcome
// in history.
func (e *Engine) Compile(ctx context.Context, inputPath string) (types.CompilationResult, error) {
	start := time.Now()
	result, err := e.pipe.Run(ctx, inputPath)
	if err != nil {
		return result, err
	}

	status := types.StatusSuccess
	switch {
	case !result.Success && timedOut(result):
		status = types.StatusTimeout
	case !result.Success:
		status = types.StatusError
	case len(result.Warnings) > 0:
		status = types.StatusWarning
	}
	raw, readErr := os.ReadFile(inputPath)
	if readErr != nil {
		raw = nil
	}
	doc := document.Parse(string(raw))
	rec := types.CompilationRecord{
		Timestamp:    time.Now().UTC(),
		DocumentHash: contentHash(raw),
		DocumentType: document.Analyze(doc).Type,
		Status:       status,
		CompileTime:  time.Since(start),
		Errors:       result.ErrorStrings(),
	}
	if recErr := e.learner.Record(rec); recErr != nil {
		e.log.Warn("recording compilation failed", zap.Error(recErr))
	}
	return result, nil
}

// CompileBatch compiles paths through the worker pool, writing progress
// to w.
func (e *Engine) CompileBatch(ctx context.Context, paths []string, w io.Writer) (workers.BatchResult, error) {
	pool := workers.NewPool(e.cfg.Workers)
	return pool.Run(ctx, paths, e.Compile, w)
}

// Optimize rewrites content through the strategy engine and returns the
// optimized source plus run metrics. maxIterations zero means the
// configured default.
func (e *Engine) Optimize(ctx context.Context, content string, maxIterations int) (string, strategy.Metrics) {
	if maxIterations <= 0 {
		maxIterations = e.cfg.MaxIterations
	}
	var recorder strategy.Recorder
	if e.cfg.EnableLearning {
		recorder = e.learner
	}
	opt := strategy.NewEngine(e.selector, recorder, e.log)
	return opt.Optimize(ctx, content, maxIterations, e.recentErrors())
}

// Analyze parses and scores a document without compiling it.
func (e *Engine) Analyze(content string) (*types.SourceDocument, types.DocumentComplexity) {
	doc := document.Parse(content)
	return doc, document.Analyze(doc)
}

// recentErrors returns classified errors from the latest failed record,
// used to boost strategies whose fix domain matches.
func (e *Engine) recentErrors() []types.CompilationError {
	records := e.history.Records()
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Status == types.StatusError && len(records[i].Errors) > 0 {
			out := make([]types.CompilationError, len(records[i].Errors))
			for j, msg := range records[i].Errors {
				out[j] = types.CompilationError{
					Severity: types.SeverityError,
					Category: recovery.Categorize(msg),
					Message:  msg,
				}
			}
			return out
		}
	}
	return nil
}

func timedOut(result types.CompilationResult) bool {
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "timed out") {
			return true
		}
	}
	return false
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
