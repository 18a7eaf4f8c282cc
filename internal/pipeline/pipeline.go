// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline executes the five-stage compilation pipeline:
// normalize, preprocess, compile, postprocess, finalize. Stages run
// strictly in that order; a stage is skipped only when its
// content-addressed cache entry hits. Identical input, configuration,
// and toolchain always produce an identical artifact hash.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/backend"
	"github.com/meshintel/latexforge/internal/cache"
	"github.com/meshintel/latexforge/internal/recovery"
	"github.com/meshintel/latexforge/internal/telemetry"
	"github.com/meshintel/latexforge/pkg/types"
)

// Toolchain is the TeX toolchain surface the pipeline needs. The
// backend adapter implements it; tests substitute fakes.
type Toolchain interface {
	Available(b types.Backend) bool
	HasTool(name string) bool
	Invoke(ctx context.Context, b types.Backend, dir, mainFile, outDir string) (backend.Invocation, error)
	RunTool(ctx context.Context, dir, name string, args ...string) (backend.Invocation, error)
	Version(ctx context.Context, b types.Backend) string
	Order(primary types.Backend, fallbacks []types.Backend) []types.Backend
}

// Pipeline compiles LaTeX documents through the staged engine.
type Pipeline struct {
	cfg     types.Config
	cache   *cache.Store
	adapter Toolchain
	recover *recovery.Engine
	log     *zap.Logger
}

// New builds a pipeline over an open cache store.
func New(cfg types.Config, store *cache.Store, adapter Toolchain, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		cache:   store,
		adapter: adapter,
		recover: recovery.NewEngine(cfg.MaxRetries, log),
		log:     log,
	}
}

// run carries the state threaded through one pipeline execution.
type run struct {
	inputPath string
	workDir   string
	outDir    string
	stem      string

	raw          string
	normalized   string
	preprocessed string
	doc          *types.SourceDocument

	pdf         []byte
	jobname     string
	backendUsed types.Backend
	toolVersion string
	compileLog  string

	results     []types.StageResult
	warnings    []string
	incremental bool
}

// stageFunc executes one stage over its input and returns the stage
// payload that downstream stages consume.
type stageFunc func(ctx context.Context, r *run) (payload []byte, errs []types.CompilationError, warnings []string, err error)

// stageEntry is the cached envelope for one stage: the payload plus the
// result metadata a cache hit must reproduce. Backend and ToolVersion
// are recorded for the compile stage so a cached rerun stamps the
// receipt with the toolchain that actually produced the artifact.
type stageEntry struct {
	Payload     []byte        `json:"payload"`
	Warnings    []string      `json:"warnings,omitempty"`
	Backend     types.Backend `json:"backend,omitempty"`
	ToolVersion string        `json:"tool_version,omitempty"`
}

// Run compiles inputPath and returns the full result. The pipeline
// never panics on malformed input: failures surface as structured
// errors in the result.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (types.CompilationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run")
	defer span.End()

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return types.CompilationResult{}, fmt.Errorf("reading %s: %w", inputPath, err)
	}

	workDir := filepath.Dir(inputPath)
	outDir := p.cfg.OutputDir
	if outDir == "" {
		outDir = workDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return types.CompilationResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	r := &run{
		inputPath: inputPath,
		workDir:   workDir,
		outDir:    outDir,
		stem:      strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)),
		raw:       string(raw),
	}
	r.jobname = r.stem

	stages := []struct {
		stage types.Stage
		fn    stageFunc
		// input selects the content hashed into the stage's cache key.
		input func(r *run) string
	}{
		{types.StageNormalize, p.normalize, func(r *run) string { return r.raw }},
		{types.StagePreprocess, p.preprocess, func(r *run) string { return r.normalized }},
		{types.StageCompile, p.compile, func(r *run) string { return r.preprocessed }},
		{types.StagePostprocess, p.postprocess, func(r *run) string { return r.preprocessed + "\x00" + cache.ContentHash(r.pdf) }},
		{types.StageFinalize, p.finalize, func(r *run) string { return cache.ContentHash(r.pdf) }},
	}

	for _, s := range stages {
		result, fatal := p.runStage(ctx, r, s.stage, s.input(r), s.fn)
		r.results = append(r.results, result)
		r.warnings = append(r.warnings, result.Warnings...)
		if fatal {
			return p.failed(r), nil
		}
	}

	return p.succeeded(ctx, r)
}

// runStage wraps one stage with cache lookup, timing, and hashing.
// A cache hit installs the cached payload without executing the stage.
func (p *Pipeline) runStage(ctx context.Context, r *run, stage types.Stage, input string, fn stageFunc) (types.StageResult, bool) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.stage."+string(stage))
	defer span.End()

	key := cache.Key(input, string(stage), p.cfg.Hash())
	start := time.Now()

	if data, ok := p.cache.Get(ctx, key); ok {
		var entry stageEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			// An undecodable entry is stale or corrupt; drop it and
			// execute the stage.
			p.cache.Invalidate(ctx, key)
		} else if err := p.install(r, stage, entry); err == nil {
			r.incremental = true
			p.log.Debug("stage served from cache", zap.String("stage", string(stage)))
			return types.StageResult{
				Stage:      stage,
				Success:    true,
				Duration:   time.Since(start),
				OutputHash: cache.ContentHash(entry.Payload),
				Warnings:   entry.Warnings,
				CacheHit:   true,
			}, false
		}
	}

	payload, errs, warnings, err := fn(ctx, r)
	duration := time.Since(start)
	telemetry.Observe(ctx, "pipeline.stage_seconds", duration.Seconds())

	if err != nil {
		errs = append(errs, types.CompilationError{
			Severity: types.SeverityError,
			Category: types.CatUnknown,
			Message:  err.Error(),
		})
	}
	if hasFatal(errs) || err != nil {
		return types.StageResult{
			Stage:    stage,
			Duration: duration,
			Errors:   errs,
			Warnings: warnings,
		}, true
	}

	entry := stageEntry{Payload: payload, Warnings: warnings}
	if stage == types.StageCompile {
		entry.Backend = r.backendUsed
		entry.ToolVersion = r.toolVersion
	}
	if data, marshalErr := json.Marshal(entry); marshalErr != nil {
		p.log.Warn("encoding stage entry failed",
			zap.String("stage", string(stage)), zap.Error(marshalErr))
	} else if putErr := p.cache.Put(ctx, key, string(stage), data); putErr != nil {
		p.log.Warn("caching stage output failed",
			zap.String("stage", string(stage)), zap.Error(putErr))
	}

	return types.StageResult{
		Stage:      stage,
		Success:    true,
		Duration:   duration,
		OutputHash: cache.ContentHash(payload),
		Errors:     errs,
		Warnings:   warnings,
	}, false
}

// install places a cached stage entry into the run state.
func (p *Pipeline) install(r *run, stage types.Stage, entry stageEntry) error {
	switch stage {
	case types.StageNormalize:
		r.normalized = string(entry.Payload)
	case types.StagePreprocess:
		r.preprocessed = string(entry.Payload)
		r.doc = parseDocument(r.preprocessed)
	case types.StageCompile, types.StagePostprocess, types.StageFinalize:
		r.pdf = entry.Payload
		if entry.Backend != "" {
			r.backendUsed = entry.Backend
		}
		if entry.ToolVersion != "" {
			r.toolVersion = entry.ToolVersion
		}
		if r.backendUsed == "" {
			r.backendUsed = p.cfg.Backend
		}
		if stage == types.StageFinalize {
			return p.writeArtifact(r)
		}
	}
	return nil
}

func hasFatal(errs []types.CompilationError) bool {
	for _, e := range errs {
		if e.Severity == types.SeverityError {
			return true
		}
	}
	return false
}

func (p *Pipeline) failed(r *run) types.CompilationResult {
	res := types.CompilationResult{
		Backend:      r.backendUsed,
		StageResults: r.results,
		Warnings:     r.warnings,
		Incremental:  r.incremental,
	}
	if res.Backend == "" {
		res.Backend = p.cfg.Backend
	}
	for _, sr := range r.results {
		res.Errors = append(res.Errors, sr.Errors...)
	}
	return res
}

func (p *Pipeline) succeeded(ctx context.Context, r *run) (types.CompilationResult, error) {
	receipt := p.buildReceipt(ctx, r)
	if err := p.writeReceipt(r, receipt); err != nil {
		p.log.Warn("writing receipt failed", zap.Error(err))
	}

	metrics := map[string]float64{}
	var total time.Duration
	for _, sr := range r.results {
		metrics["stage_"+string(sr.Stage)+"_ms"] = float64(sr.Duration.Milliseconds())
		total += sr.Duration
	}
	metrics["total_ms"] = float64(total.Milliseconds())
	metrics["artifact_bytes"] = float64(len(r.pdf))

	return types.CompilationResult{
		Success:      true,
		ArtifactPath: r.artifactPath(),
		Backend:      r.backendUsed,
		Warnings:     r.warnings,
		Metrics:      metrics,
		StageResults: r.results,
		Receipt:      receipt,
		Incremental:  r.incremental,
	}, nil
}

func (r *run) artifactPath() string {
	return filepath.Join(r.outDir, r.stem+".pdf")
}

// writeArtifact installs the final PDF bytes at the artifact path.
func (p *Pipeline) writeArtifact(r *run) error {
	return os.WriteFile(r.artifactPath(), r.pdf, 0o644)
}
