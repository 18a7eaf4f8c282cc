// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"strings"

	"github.com/meshintel/latexforge/pkg/types"
)

// Complexity score weights. Tuned against a corpus of real documents;
// the score is normalized to [0, 100].
const (
	weightEquation = 2.0
	weightFigure   = 1.5
	weightTable    = 1.5
	weightPackage  = 0.5
	weightMacro    = 1.0
	weightNesting  = 5.0
	scoreDivisor   = 10.0
	scoreCeiling   = 100.0
)

// supersededPackages maps obsolete packages to their modern replacement.
var supersededPackages = map[string]string{
	"epsfig":        "graphicx",
	"subfigure":     "subcaption",
	"doublespace":   "setspace",
	"fancyheadings": "fancyhdr",
}

// conflictingPairs lists package pairs known to break each other.
var conflictingPairs = [][2]string{
	{"subfigure", "subcaption"},
	{"subfigure", "subfig"},
	{"times", "mathptmx"},
	{"pslatex", "mathptmx"},
}

// SupersededBy returns the modern replacement for an obsolete package,
// or "" when the package is not known to be obsolete.
func SupersededBy(pkg string) string {
	return supersededPackages[pkg]
}

// Analyze derives a DocumentComplexity from a parsed document. Pure and
// deterministic; cheap enough to recompute on every document change.
func Analyze(doc *types.SourceDocument) types.DocumentComplexity {
	c := types.DocumentComplexity{
		TotalLines:            strings.Count(doc.Raw, "\n") + 1,
		EquationCount:         doc.EquationCount,
		FigureCount:           doc.FigureCount,
		TableCount:            doc.TableCount,
		CitationCount:         doc.CitationCount,
		PackageCount:          len(doc.Packages),
		MacroCount:            len(doc.Macros),
		NestingDepth:          nestingDepth(doc.Raw),
		CrossRefCount:         len(doc.Refs),
		ProblematicConstructs: doc.Problems,
	}
	c.FloatCount = c.FigureCount + c.TableCount
	c.Type = classify(doc)

	seen := map[string]int{}
	for _, p := range doc.Packages {
		seen[p.Name]++
	}
	for _, p := range doc.Packages {
		if seen[p.Name] > 1 {
			c.RedundantPackages = appendOnce(c.RedundantPackages, p.Name)
		}
		if supersededPackages[p.Name] != "" {
			c.ObsoletePackages = appendOnce(c.ObsoletePackages, p.Name)
		}
	}
	for _, pair := range conflictingPairs {
		if seen[pair[0]] > 0 && seen[pair[1]] > 0 {
			c.ConflictingPackages = append(c.ConflictingPackages, pair)
		}
	}

	score := (float64(c.EquationCount)*weightEquation +
		float64(c.FigureCount)*weightFigure +
		float64(c.TableCount)*weightTable +
		float64(c.PackageCount)*weightPackage +
		float64(c.MacroCount)*weightMacro +
		float64(c.NestingDepth)*weightNesting) / scoreDivisor
	if score > scoreCeiling {
		score = scoreCeiling
	}
	c.Score = score

	return c
}

// classify picks the document type by first-matching rule, most specific
// first, with unknown as the fallback.
func classify(doc *types.SourceDocument) types.DocumentType {
	switch {
	case strings.Contains(doc.Class, "beamer"):
		return types.DocPresentation
	case strings.Contains(doc.Class, "letter"):
		return types.DocLetter
	case strings.Contains(doc.Class, "book"):
		return types.DocBook
	case strings.Contains(doc.Class, "article"):
		return types.DocArticle
	}

	lower := strings.ToLower(doc.Raw)
	hasChapters := strings.Contains(doc.Raw, `\chapter`)
	if hasChapters && (strings.Contains(lower, "thesis") || strings.Contains(lower, "dissertation")) {
		return types.DocThesis
	}
	if strings.Contains(doc.Class, "report") {
		return types.DocReport
	}
	if hasChapters {
		return types.DocThesis
	}
	return types.DocUnknown
}

// nestingDepth approximates the deepest environment nesting by tracking
// begin/end balance line by line.
func nestingDepth(raw string) int {
	depth, max := 0, 0
	for _, line := range strings.Split(raw, "\n") {
		depth += strings.Count(line, `\begin{`)
		depth -= strings.Count(line, `\end{`)
		if depth > max {
			max = depth
		}
	}
	return max
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
