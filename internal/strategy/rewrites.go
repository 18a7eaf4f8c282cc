// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/meshintel/latexforge/internal/document"
	"github.com/meshintel/latexforge/pkg/types"
)

// equationSimplification rewrites equation formatting without changing
// mathematical meaning: displaymath to equation*, collapsed spacing runs.
type equationSimplification struct{}

var (
	displayOpenPattern  = regexp.MustCompile(`\\\[`)
	displayClosePattern = regexp.MustCompile(`\\\]`)
	thinSpaceRunPattern = regexp.MustCompile(`(\\,){2,}`)
	bigSpaceRunPattern  = regexp.MustCompile(`(\\;){2,}`)
)

func (equationSimplification) Name() string { return "equation_simplification" }
func (equationSimplification) Risk() Risk   { return RiskLow }
func (equationSimplification) FixDomains() []types.ErrorCategory {
	return []types.ErrorCategory{types.CatUnbalanced}
}

func (equationSimplification) Analyze(content string) Impact {
	display := len(displayOpenPattern.FindAllString(content, -1)) +
		len(displayClosePattern.FindAllString(content, -1))
	spacing := len(thinSpaceRunPattern.FindAllString(content, -1)) +
		len(bigSpaceRunPattern.FindAllString(content, -1))
	return Impact{
		"displaymath_conversions": display / 2,
		"spacing_simplifications": spacing,
	}
}

func (equationSimplification) Apply(content string, _ types.DocumentComplexity) string {
	content = displayOpenPattern.ReplaceAllString(content, `\begin{equation*}`)
	content = displayClosePattern.ReplaceAllString(content, `\end{equation*}`)
	content = thinSpaceRunPattern.ReplaceAllString(content, `\,`)
	return bigSpaceRunPattern.ReplaceAllString(content, `\;`)
}

// packageConsolidation removes duplicate \usepackage lines and replaces
// obsolete packages with their modern equivalents.
type packageConsolidation struct{}

var usePackageLinePattern = regexp.MustCompile(`^\\usepackage(?:\[([^\]]*)\])?\{([^}]+)\}`)

func (packageConsolidation) Name() string { return "package_consolidation" }
func (packageConsolidation) Risk() Risk   { return RiskMedium }
func (packageConsolidation) FixDomains() []types.ErrorCategory {
	return []types.ErrorCategory{types.CatMissingPackage, types.CatUndefinedCommand}
}

func (packageConsolidation) Analyze(content string) Impact {
	doc := document.Parse(content)
	seen := map[string]int{}
	obsolete := 0
	for _, p := range doc.Packages {
		seen[p.Name]++
		if document.SupersededBy(p.Name) != "" {
			obsolete++
		}
	}
	duplicates := 0
	for _, n := range seen {
		duplicates += n - 1
	}
	return Impact{
		"obsolete_replacements": obsolete,
		"duplicate_removals":    duplicates,
	}
}

func (packageConsolidation) Apply(content string, _ types.DocumentComplexity) string {
	type pkgKey struct{ name, options string }
	seen := map[pkgKey]bool{}
	loaded := map[string]bool{}

	doc := document.Parse(content)
	for _, p := range doc.Packages {
		loaded[p.Name] = true
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		m := usePackageLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			out = append(out, line)
			continue
		}
		options, name := m[1], strings.TrimSpace(m[2])

		if modern := document.SupersededBy(name); modern != "" {
			if loaded[modern] || seen[pkgKey{modern, ""}] {
				continue // modern replacement already present, drop the obsolete line
			}
			name, options, line = modern, "", `\usepackage{`+modern+`}`
		}

		key := pkgKey{name, options}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// macroExpansion inlines parameterless macros whose bodies contain
// fragile commands that break inside moving arguments.
type macroExpansion struct{}

var fragileCommands = []string{`\cite`, `\ref`, `\label`, `\footnote`}

func (macroExpansion) Name() string { return "macro_expansion" }
func (macroExpansion) Risk() Risk   { return RiskMedium }
func (macroExpansion) FixDomains() []types.ErrorCategory {
	return []types.ErrorCategory{types.CatUndefinedCommand}
}

func fragileMacros(content string) []types.Macro {
	var out []types.Macro
	for _, m := range document.Parse(content).Macros {
		if m.Args > 0 {
			continue // parameterized expansion is not safe to do textually
		}
		for _, cmd := range fragileCommands {
			if strings.Contains(m.Body, cmd) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (macroExpansion) Analyze(content string) Impact {
	return Impact{"fragile_macro_expansions": len(fragileMacros(content))}
}

func (macroExpansion) Apply(content string, _ types.DocumentComplexity) string {
	for _, m := range fragileMacros(content) {
		usage := regexp.MustCompile(`\\` + regexp.QuoteMeta(m.Name) + `\b`)
		def := `\newcommand{\` + m.Name + `}{` + m.Body + `}`
		// Expand usages everywhere except the definition itself, then
		// put the definition back so the document still parses.
		const marker = "\x00macrodef\x00"
		content = strings.Replace(content, def, marker, 1)
		content = usage.ReplaceAllString(content, strings.ReplaceAll(m.Body, "$", "$$"))
		content = strings.Replace(content, marker, def, 1)
	}
	return content
}

// bibliographyOptimization inspects citation machinery. Rewrites here
// are deliberately minimal: switching bibliography packages automatically
// is too destructive, so this strategy only normalizes duplicate
// \bibliographystyle declarations.
type bibliographyOptimization struct{}

var bibStylePattern = regexp.MustCompile(`\\bibliographystyle\{[^}]+\}`)

func (bibliographyOptimization) Name() string { return "bibliography_optimization" }
func (bibliographyOptimization) Risk() Risk   { return RiskLow }
func (bibliographyOptimization) FixDomains() []types.ErrorCategory {
	return []types.ErrorCategory{types.CatUndefinedReference}
}

func (bibliographyOptimization) Analyze(content string) Impact {
	styles := bibStylePattern.FindAllString(content, -1)
	duplicates := 0
	if len(styles) > 1 {
		duplicates = len(styles) - 1
	}
	return Impact{"duplicate_bibliographystyle": duplicates}
}

func (bibliographyOptimization) Apply(content string, _ types.DocumentComplexity) string {
	styles := bibStylePattern.FindAllString(content, -1)
	if len(styles) <= 1 {
		return content
	}
	first := true
	return bibStylePattern.ReplaceAllStringFunc(content, func(s string) string {
		if first {
			first = false
			return s
		}
		return ""
	})
}

// floatPlacement relaxes restrictive float placement specifiers so the
// typesetter has room to place figures and tables.
type floatPlacement struct{}

var (
	floatHPattern = regexp.MustCompile(`\\begin\{(figure|table)\}\[h\]`)
	floatTPattern = regexp.MustCompile(`\\begin\{(figure|table)\}\[t\]`)
)

func (floatPlacement) Name() string { return "float_placement" }
func (floatPlacement) Risk() Risk   { return RiskLow }
func (floatPlacement) FixDomains() []types.ErrorCategory { return nil }

func (floatPlacement) Analyze(content string) Impact {
	return Impact{
		"relaxed_h_placements": len(floatHPattern.FindAllString(content, -1)),
		"relaxed_t_placements": len(floatTPattern.FindAllString(content, -1)),
	}
}

func (floatPlacement) Apply(content string, _ types.DocumentComplexity) string {
	content = floatHPattern.ReplaceAllString(content, `\begin{$1}[htbp]`)
	return floatTPattern.ReplaceAllString(content, `\begin{$1}[tbp]`)
}

// graphicsPath adds a \graphicspath directive when figures are included
// from subdirectories and none is declared, so the backend resolves
// graphics without per-file path searches.
type graphicsPath struct{}

var includeGraphicsPattern = regexp.MustCompile(`\\includegraphics(?:\[[^\]]*\])?\{([^}]+)\}`)

func (graphicsPath) Name() string { return "graphics_path" }
func (graphicsPath) Risk() Risk   { return RiskLow }
func (graphicsPath) FixDomains() []types.ErrorCategory {
	return []types.ErrorCategory{types.CatMissingFile}
}

func graphicsDirs(content string) []string {
	dirs := map[string]bool{}
	for _, m := range includeGraphicsPattern.FindAllStringSubmatch(content, -1) {
		if d := path.Dir(m[1]); d != "." && d != "/" {
			dirs[d] = true
		}
	}
	out := make([]string, 0, len(dirs))
	for d := range dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (graphicsPath) Analyze(content string) Impact {
	if strings.Contains(content, `\graphicspath`) {
		return Impact{"graphicspath_additions": 0}
	}
	if len(graphicsDirs(content)) == 0 {
		return Impact{"graphicspath_additions": 0}
	}
	return Impact{"graphicspath_additions": 1}
}

func (graphicsPath) Apply(content string, _ types.DocumentComplexity) string {
	if strings.Contains(content, `\graphicspath`) {
		return content
	}
	dirs := graphicsDirs(content)
	if len(dirs) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(`\graphicspath{`)
	for _, d := range dirs {
		fmt.Fprintf(&b, "{%s/}", d)
	}
	b.WriteString("}\n")

	// Insert directly after the \documentclass line.
	classLine := regexp.MustCompile(`(\\documentclass[^\n]*\n)`)
	if classLine.MatchString(content) {
		return classLine.ReplaceAllString(content, "${1}"+b.String())
	}
	return b.String() + content
}

// crossReferenceValidation checks label/reference consistency. It never
// rewrites content — undefined references need a compilation pass to
// confirm — so Apply is the identity and Analyze carries the findings.
type crossReferenceValidation struct{}

func (crossReferenceValidation) Name() string { return "cross_reference_validation" }
func (crossReferenceValidation) Risk() Risk   { return RiskLow }
func (crossReferenceValidation) FixDomains() []types.ErrorCategory {
	return []types.ErrorCategory{types.CatUndefinedReference}
}

func (crossReferenceValidation) Analyze(content string) Impact {
	doc := document.Parse(content)
	undefined := map[string]bool{}
	used := map[string]bool{}
	for _, r := range doc.Refs {
		used[r] = true
		if _, ok := doc.Labels[r]; !ok {
			undefined[r] = true
		}
	}
	unused := 0
	for l := range doc.Labels {
		if !used[l] {
			unused++
		}
	}
	return Impact{
		"undefined_references": len(undefined),
		"unused_labels":        unused,
	}
}

func (crossReferenceValidation) Apply(content string, _ types.DocumentComplexity) string {
	return content
}
