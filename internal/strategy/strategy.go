// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package strategy implements the cognitive optimization loop: a fixed
// catalog of document rewrite strategies, a selector that ranks them
// from risk and learned performance, a validation gate every candidate
// must pass, and the engine driving the perceive-reason-generate
// iteration.
package strategy

import (
	"sort"
	"strconv"

	"github.com/meshintel/latexforge/pkg/types"
)

// Risk is a strategy's risk tier. Lower risk wins score ties.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
)

// Weight maps a risk tier onto [0, 1]; higher means riskier.
func (r Risk) Weight() float64 {
	if r == RiskMedium {
		return 0.5
	}
	return 0.0
}

// Impact summarizes what a strategy would change, without changing it.
type Impact map[string]int

// Total returns the total number of prospective changes.
func (im Impact) Total() int {
	n := 0
	for _, v := range im {
		n += v
	}
	return n
}

// Changes renders the impact as sorted human-readable change entries.
func (im Impact) Changes() []string {
	keys := make([]string, 0, len(im))
	for k := range im {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+": "+strconv.Itoa(im[k]))
	}
	return out
}

// Strategy is one named, risk-tagged, pure rewrite rule. Analyze is a
// dry run; Apply returns a candidate document without mutating its input.
type Strategy interface {
	// Name is the stable strategy identity used in history records.
	Name() string

	// Risk is the strategy's risk tier.
	Risk() Risk

	// FixDomains lists the error categories this strategy can address.
	FixDomains() []types.ErrorCategory

	// Analyze reports what Apply would change, without applying.
	Analyze(content string) Impact

	// Apply returns the rewritten content. The input is never modified.
	Apply(content string, c types.DocumentComplexity) string
}

// Catalog returns the full strategy set in declaration order. The order
// is the deterministic tie-break for equal selector scores.
func Catalog() []Strategy {
	return []Strategy{
		equationSimplification{},
		packageConsolidation{},
		macroExpansion{},
		bibliographyOptimization{},
		floatPlacement{},
		graphicsPath{},
		crossReferenceValidation{},
	}
}

// byName indexes the catalog for lookups by strategy identity.
func byName() map[string]Strategy {
	m := map[string]Strategy{}
	for _, s := range Catalog() {
		m[s.Name()] = s
	}
	return m
}
