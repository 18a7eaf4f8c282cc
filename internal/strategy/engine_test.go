// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"strings"
	"testing"

	"github.com/meshintel/latexforge/pkg/types"
)

// captureRecorder collects records handed to the learner.
type captureRecorder struct {
	records []types.CompilationRecord
}

func (c *captureRecorder) Record(rec types.CompilationRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func newTestEngine(rec Recorder) *Engine {
	selector := NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})
	return NewEngine(selector, rec, nil)
}

func TestOptimizeAcceptsSafeRewrite(t *testing.T) {
	content := `\documentclass{article}
\usepackage{graphicx}
\usepackage{graphicx}
\usepackage{epsfig}
\begin{document}
\begin{figure}[h]
\includegraphics{plot.pdf}
\end{figure}
Enough body text to keep the length ratio comfortably above the floor
after duplicate package lines are removed from the preamble.
\end{document}
`
	rec := &captureRecorder{}
	eng := newTestEngine(rec)

	out, metrics := eng.Optimize(context.Background(), content, 5, nil)

	if metrics.SuccessfulOptimizations == 0 {
		t.Fatal("expected at least one accepted optimization")
	}
	if strings.Count(out, `\usepackage{graphicx}`) != 1 {
		t.Errorf("duplicate packages survived:\n%s", out)
	}
	if strings.Contains(out, "epsfig") {
		t.Errorf("obsolete package survived:\n%s", out)
	}
	if metrics.StrategiesUsed["package_consolidation"] != 1 {
		t.Errorf("strategies used = %v", metrics.StrategiesUsed)
	}
	if len(rec.records) == 0 {
		t.Error("accepted optimizations should be recorded")
	}
}

func TestOptimizeRejectsDestructiveRewrite(t *testing.T) {
	// The spacing run collapses to a fraction of the original length,
	// tripping the length floor; the engine must keep the original.
	content := `\documentclass{article}
\begin{document}
\begin{equation}
a ` + strings.Repeat(`\,`, 300) + ` b
\end{equation}
\end{document}
`
	rec := &captureRecorder{}
	eng := newTestEngine(rec)

	out, metrics := eng.Optimize(context.Background(), content, 3, nil)

	if out != content {
		t.Error("rejected rewrite must leave content unchanged")
	}
	if metrics.SuccessfulOptimizations != 0 {
		t.Errorf("accepted = %d, want 0", metrics.SuccessfulOptimizations)
	}
	if metrics.FailedOptimizations == 0 {
		t.Error("rejection should be counted")
	}

	sawFailure := false
	for _, r := range rec.records {
		if r.Status == types.StatusError {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("rejected optimization should be recorded as a failure")
	}
}

func TestOptimizeFailedStrategyNotRetried(t *testing.T) {
	content := `\documentclass{article}
\begin{document}
\begin{equation}
a ` + strings.Repeat(`\,`, 300) + ` b
\end{equation}
\end{document}
`
	eng := newTestEngine(nil)
	_, metrics := eng.Optimize(context.Background(), content, 10, nil)

	if metrics.FailedOptimizations > 1 {
		t.Errorf("failed strategy retried: %d failures", metrics.FailedOptimizations)
	}
}

func TestOptimizeHonorsIterationBudget(t *testing.T) {
	content := `\documentclass{article}
\usepackage{graphicx}
\usepackage{graphicx}
\begin{document}
\begin{figure}[h]
\includegraphics{figs/plot.pdf}
\end{figure}
\begin{equation}x\end{equation}
Body text for the ratio.
\end{document}
`
	eng := newTestEngine(nil)
	_, metrics := eng.Optimize(context.Background(), content, 1, nil)
	if metrics.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", metrics.Iterations)
	}
}

func TestOptimizeNoApplicableStrategies(t *testing.T) {
	content := `\documentclass{article}
\begin{document}
Plain prose only.
\end{document}
`
	eng := newTestEngine(nil)
	out, metrics := eng.Optimize(context.Background(), content, 5, nil)
	if out != content {
		t.Error("content changed with nothing applicable")
	}
	if metrics.Iterations != 0 {
		t.Errorf("iterations = %d, want 0", metrics.Iterations)
	}
}
