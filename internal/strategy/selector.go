// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"sort"

	"github.com/meshintel/latexforge/pkg/types"
)

// PerformanceSource exposes learned per-strategy aggregates. The learner
// implements it; a nil source scores every strategy's history as zero.
type PerformanceSource interface {
	Performance(strategy string) (types.StrategyPerformance, bool)
}

// Predictor estimates the probability that a strategy succeeds on a
// document of the given complexity. Implementations must return a
// neutral constant when they have nothing better.
type Predictor interface {
	SuccessProbability(c types.DocumentComplexity, strategy string) float64
}

// Selector ranks applicable strategies for one optimization iteration.
type Selector struct {
	cfg       types.SelectorConfig
	level     types.OptimizationLevel
	perf      PerformanceSource
	predictor Predictor
}

// NewSelector builds a selector. perf may be nil (no history); predictor
// must not be nil — pass the neutral predictor when learning is off.
func NewSelector(cfg types.SelectorConfig, level types.OptimizationLevel, perf PerformanceSource, predictor Predictor) *Selector {
	return &Selector{cfg: cfg, level: level, perf: perf, predictor: predictor}
}

// Scored is one ranked strategy with its selector score.
type Scored struct {
	Strategy Strategy
	Score    float64
}

// Select returns the applicable strategies ordered best first. The order
// is deterministic: equal scores keep catalog declaration order.
func (s *Selector) Select(c types.DocumentComplexity, recentErrors []types.CompilationError) []Scored {
	boost := map[types.ErrorCategory]bool{}
	for _, e := range recentErrors {
		if e.Category != "" && e.Category != types.CatUnknown {
			boost[e.Category] = true
		}
	}

	var ranked []Scored
	for _, strat := range Catalog() {
		if !s.applicable(strat, c) {
			continue
		}
		score := s.cfg.RiskWeight * (1.0 - strat.Risk().Weight())
		if s.perf != nil {
			if perf, ok := s.perf.Performance(strat.Name()); ok {
				rate := perf.SuccessRate()
				// Bucket by document type: history on the same type
				// counts fully, other types at half weight.
				if perf.DocumentTypes[c.Type] == 0 {
					rate *= 0.5
				}
				score += s.cfg.HistoryWeight * rate
			}
		}
		score += s.cfg.PredictorWeight * s.predictor.SuccessProbability(c, strat.Name())
		for _, domain := range strat.FixDomains() {
			if boost[domain] {
				score += s.cfg.ErrorBoost
				break
			}
		}
		ranked = append(ranked, Scored{Strategy: strat, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// applicable gates strategies on document shape and optimization level.
func (s *Selector) applicable(strat Strategy, c types.DocumentComplexity) bool {
	if s.level == types.LevelConservative && strat.Risk() != RiskLow {
		return false
	}
	switch strat.Name() {
	case "package_consolidation":
		return len(c.RedundantPackages) > 0 || len(c.ObsoletePackages) > 0 || len(c.ConflictingPackages) > 0
	case "equation_simplification":
		return c.EquationCount > 0
	case "float_placement":
		return c.FloatCount > 0
	case "graphics_path":
		return c.FigureCount > 0
	case "macro_expansion":
		return s.level == types.LevelAggressive && c.MacroCount > 0
	case "bibliography_optimization":
		return c.CitationCount > 0
	case "cross_reference_validation":
		return c.CrossRefCount > 0
	default:
		return true
	}
}
