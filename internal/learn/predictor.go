// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package learn

import (
	"github.com/meshintel/latexforge/pkg/types"
)

// NeutralPredictor is the no-learning predictor: every strategy gets
// the same neutral probability, so selection falls back to risk and
// applicability alone.
type NeutralPredictor struct{}

// SuccessProbability always returns 0.5.
func (NeutralPredictor) SuccessProbability(types.DocumentComplexity, string) float64 {
	return 0.5
}

// HistoryPredictor estimates success probability from recorded
// outcomes, preferring history on the same document type.
type HistoryPredictor struct {
	learner *Learner
}

// NewHistoryPredictor builds a predictor over the learner's aggregates.
func NewHistoryPredictor(learner *Learner) *HistoryPredictor {
	return &HistoryPredictor{learner: learner}
}

// SuccessProbability returns the strategy's recorded success rate,
// discounted by half when nothing was recorded for the document's type,
// and neutral 0.5 when the strategy has no history at all.
func (p *HistoryPredictor) SuccessProbability(c types.DocumentComplexity, strategy string) float64 {
	perf, ok := p.learner.Performance(strategy)
	if !ok || perf.SuccessCount+perf.FailureCount == 0 {
		return 0.5
	}
	rate := perf.SuccessRate()
	if perf.DocumentTypes[c.Type] == 0 {
		rate *= 0.5
	}
	return rate
}
