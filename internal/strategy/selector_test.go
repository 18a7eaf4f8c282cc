// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"testing"

	"github.com/meshintel/latexforge/pkg/types"
)

// stubPerf is a fixed performance source for selector tests.
type stubPerf map[string]types.StrategyPerformance

func (s stubPerf) Performance(strategy string) (types.StrategyPerformance, bool) {
	p, ok := s[strategy]
	return p, ok
}

// stubPredictor returns fixed probabilities, defaulting to neutral.
type stubPredictor map[string]float64

func (s stubPredictor) SuccessProbability(_ types.DocumentComplexity, strategy string) float64 {
	if p, ok := s[strategy]; ok {
		return p
	}
	return 0.5
}

func testConfig() types.SelectorConfig {
	return types.SelectorConfig{
		HistoryWeight:   0.5,
		PredictorWeight: 0.3,
		RiskWeight:      0.2,
		ErrorBoost:      0.25,
	}
}

// busyComplexity makes every strategy applicable at the given level.
func busyComplexity() types.DocumentComplexity {
	return types.DocumentComplexity{
		EquationCount:     3,
		FigureCount:       2,
		TableCount:        1,
		FloatCount:        3,
		MacroCount:        2,
		CitationCount:     4,
		CrossRefCount:     5,
		RedundantPackages: []string{"graphicx"},
		Type:              types.DocArticle,
	}
}

func names(ranked []Scored) []string {
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.Strategy.Name()
	}
	return out
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

func TestSelectConservativeExcludesMediumRisk(t *testing.T) {
	s := NewSelector(testConfig(), types.LevelConservative, nil, stubPredictor{})
	ranked := s.Select(busyComplexity(), nil)
	for _, sc := range ranked {
		if sc.Strategy.Risk() != RiskLow {
			t.Errorf("conservative level selected %s with risk %s",
				sc.Strategy.Name(), sc.Strategy.Risk())
		}
	}
}

func TestSelectAggressiveIncludesMacroExpansion(t *testing.T) {
	s := NewSelector(testConfig(), types.LevelAggressive, nil, stubPredictor{})
	got := names(s.Select(busyComplexity(), nil))
	if indexOf(got, "macro_expansion") < 0 {
		t.Errorf("aggressive ranking %v missing macro_expansion", got)
	}

	s = NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})
	got = names(s.Select(busyComplexity(), nil))
	if indexOf(got, "macro_expansion") >= 0 {
		t.Errorf("moderate ranking %v should exclude macro_expansion", got)
	}
}

func TestSelectApplicabilityGates(t *testing.T) {
	s := NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})

	// No equations, no floats, no packages issues: only strategies with
	// matching content may rank.
	c := types.DocumentComplexity{CitationCount: 1, Type: types.DocArticle}
	got := names(s.Select(c, nil))
	for _, name := range got {
		if name != "bibliography_optimization" {
			t.Errorf("ranking %v contains inapplicable strategy %s", got, name)
		}
	}
}

func TestSelectHistoryRaisesRank(t *testing.T) {
	c := busyComplexity()

	perf := stubPerf{
		"float_placement": {
			Strategy:      "float_placement",
			SuccessCount:  9,
			FailureCount:  1,
			DocumentTypes: map[types.DocumentType]int{types.DocArticle: 10},
		},
	}
	with := NewSelector(testConfig(), types.LevelModerate, perf, stubPredictor{})
	without := NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})

	rankWith := indexOf(names(with.Select(c, nil)), "float_placement")
	rankWithout := indexOf(names(without.Select(c, nil)), "float_placement")
	if rankWith > rankWithout {
		t.Errorf("strong history should not lower rank: %d -> %d", rankWithout, rankWith)
	}
	if rankWith != 0 {
		t.Errorf("float_placement with 90%% success should rank first, got position %d", rankWith)
	}
}

func TestSelectErrorBoost(t *testing.T) {
	c := busyComplexity()
	s := NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})

	recent := []types.CompilationError{{
		Severity: types.SeverityError,
		Category: types.CatMissingFile,
		Message:  "File `figures/plot.pdf' not found",
	}}

	plain := indexOf(names(s.Select(c, nil)), "graphics_path")
	boosted := indexOf(names(s.Select(c, recent)), "graphics_path")
	if boosted > plain {
		t.Errorf("missing_file error should not lower graphics_path: %d -> %d", plain, boosted)
	}
	if boosted != 0 {
		t.Errorf("boosted graphics_path should rank first, got position %d", boosted)
	}
}

func TestSelectDeterministicTieBreak(t *testing.T) {
	c := busyComplexity()
	s := NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})

	first := names(s.Select(c, nil))
	for i := 0; i < 10; i++ {
		if got := names(s.Select(c, nil)); len(got) != len(first) {
			t.Fatal("ranking length changed between runs")
		} else {
			for j := range got {
				if got[j] != first[j] {
					t.Fatalf("ranking order changed: %v vs %v", first, got)
				}
			}
		}
	}
}

func TestSelectLowerRiskWinsAllElseEqual(t *testing.T) {
	// Neutral predictor, no history: score is risk-driven, so every
	// low-risk strategy must rank ahead of every medium-risk one.
	c := busyComplexity()
	s := NewSelector(testConfig(), types.LevelModerate, nil, stubPredictor{})
	ranked := s.Select(c, nil)

	sawMedium := false
	for _, sc := range ranked {
		if sc.Strategy.Risk() == RiskMedium {
			sawMedium = true
		} else if sawMedium {
			t.Errorf("low-risk %s ranked below a medium-risk strategy", sc.Strategy.Name())
		}
	}
}
