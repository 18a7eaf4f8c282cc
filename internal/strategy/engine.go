// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/document"
	"github.com/meshintel/latexforge/internal/telemetry"
	"github.com/meshintel/latexforge/pkg/types"
)

// OptimizationResult is the outcome of applying one strategy to one
// document. When ValidationPassed is false the candidate content must be
// discarded; Accepted content is always the validated candidate.
type OptimizationResult struct {
	Success          bool
	Strategy         string
	OriginalContent  string
	CandidateContent string
	Changes          []string
	Confidence       float64
	ValidationPassed bool
	Failures         []string
}

// Metrics aggregates one optimization run.
type Metrics struct {
	Iterations              int
	SuccessfulOptimizations int
	FailedOptimizations     int
	StrategiesUsed          map[string]int
	Confidence              map[string]float64
}

// Recorder receives one record per optimization attempt; the learner
// implements it. A nil recorder disables recording.
type Recorder interface {
	Record(rec types.CompilationRecord) error
}

// Engine drives the perceive-reason-generate loop: analyze complexity,
// rank strategies, apply the best unapplied one, validate, and either
// accept the candidate or roll back.
type Engine struct {
	selector *Selector
	recorder Recorder
	log      *zap.Logger
}

// NewEngine builds an optimization engine. recorder may be nil.
func NewEngine(selector *Selector, recorder Recorder, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{selector: selector, recorder: recorder, log: log}
}

// Optimize runs up to maxIterations optimization iterations over content
// and returns the final document plus run metrics. Each iteration applies
// at most one strategy; a strategy that fails validation is skipped for
// the remainder of the run.
func (e *Engine) Optimize(ctx context.Context, content string, maxIterations int, recentErrors []types.CompilationError) (string, Metrics) {
	ctx, span := telemetry.StartSpan(ctx, "optimizer.optimize")
	defer span.End()

	metrics := Metrics{
		StrategiesUsed: map[string]int{},
		Confidence:     map[string]float64{},
	}
	failed := map[string]bool{}
	current := content

	for metrics.Iterations < maxIterations {
		if ctx.Err() != nil {
			break
		}
		complexity := document.Analyze(document.Parse(current))
		ranked := e.selector.Select(complexity, recentErrors)

		var next Strategy
		for _, s := range ranked {
			name := s.Strategy.Name()
			if !failed[name] && metrics.StrategiesUsed[name] == 0 {
				next = s.Strategy
				break
			}
		}
		if next == nil {
			break // ranked list exhausted
		}
		metrics.Iterations++

		result := e.applyOne(ctx, current, next, complexity)
		e.record(result, complexity.Type)

		if result.Success && result.ValidationPassed {
			current = result.CandidateContent
			metrics.SuccessfulOptimizations++
			metrics.StrategiesUsed[result.Strategy]++
			metrics.Confidence[result.Strategy] = result.Confidence
			e.log.Debug("optimization accepted",
				zap.String("strategy", result.Strategy),
				zap.Float64("confidence", result.Confidence))
		} else {
			failed[next.Name()] = true
			metrics.FailedOptimizations++
			e.log.Debug("optimization rejected",
				zap.String("strategy", next.Name()),
				zap.Strings("failures", result.Failures))
		}
	}

	telemetry.Count(ctx, "optimizer.iterations", int64(metrics.Iterations))
	return current, metrics
}

// applyOne runs a single strategy through analyze, apply, and validate.
func (e *Engine) applyOne(ctx context.Context, content string, strat Strategy, c types.DocumentComplexity) OptimizationResult {
	_, span := telemetry.StartSpan(ctx, "optimizer.apply")
	defer span.End()

	impact := strat.Analyze(content)
	candidate := strat.Apply(content, c)

	ok, failures := Validate(content, candidate)
	if !ok {
		// The candidate never leaves this function on rejection.
		return OptimizationResult{
			Strategy:         strat.Name(),
			OriginalContent:  content,
			CandidateContent: content,
			ValidationPassed: false,
			Failures:         failures,
		}
	}

	confidence := 0.5 + float64(impact.Total())*0.1
	if confidence > 1.0 {
		confidence = 1.0
	}

	return OptimizationResult{
		Success:          true,
		Strategy:         strat.Name(),
		OriginalContent:  content,
		CandidateContent: candidate,
		Changes:          impact.Changes(),
		Confidence:       confidence,
		ValidationPassed: true,
	}
}

func (e *Engine) record(result OptimizationResult, docType types.DocumentType) {
	if e.recorder == nil {
		return
	}
	status := types.StatusSuccess
	if !result.ValidationPassed {
		status = types.StatusError
	}
	sum := sha256.Sum256([]byte(result.CandidateContent))
	rec := types.CompilationRecord{
		Timestamp:    time.Now().UTC(),
		DocumentHash: hex.EncodeToString(sum[:]),
		DocumentType: docType,
		Status:       status,
		Strategy:     result.Strategy,
	}
	if err := e.recorder.Record(rec); err != nil {
		e.log.Warn("recording optimization outcome failed", zap.Error(err))
	}
}
