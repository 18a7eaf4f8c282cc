// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document parses LaTeX sources into structured documents and
// derives complexity summaries from them. Parsing is pure: deterministic
// regex scanning, no I/O, and malformed input is recorded as a problem
// rather than raised as an error.
package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/meshintel/latexforge/pkg/types"
)

var (
	documentClassPattern = regexp.MustCompile(`\\documentclass(?:\[([^\]]*)\])?\{([^}]+)\}`)
	usePackagePattern    = regexp.MustCompile(`\\usepackage(?:\[([^\]]*)\])?\{([^}]+)\}`)
	newCommandPattern    = regexp.MustCompile(`\\newcommand\{\\(\w+)\}(?:\[(\d+)\])?\{((?:[^{}]|\{[^{}]*\})*)\}`)
	sectionPattern       = regexp.MustCompile(`\\(chapter|section|subsection|subsubsection)\*?\{([^}]*)\}`)
	equationPattern      = regexp.MustCompile(`\\begin\{equation\*?\}|\\begin\{align\*?\}|\\\[`)
	figurePattern        = regexp.MustCompile(`\\begin\{figure\}`)
	tablePattern         = regexp.MustCompile(`\\begin\{table\}`)
	citePattern          = regexp.MustCompile(`\\cite`)
	labelPattern         = regexp.MustCompile(`\\label\{([^}]+)\}`)
	refPattern           = regexp.MustCompile(`\\(?:ref|eqref|pageref)\{([^}]+)\}`)
	bibliographyPattern  = regexp.MustCompile(`\\bibliography\{([^}]+)\}`)
	includePattern       = regexp.MustCompile(`\\(?:input|include)\{([^}]+)\}`)
)

var sectionLevels = map[string]int{
	"chapter":       0,
	"section":       1,
	"subsection":    2,
	"subsubsection": 3,
}

// Parse scans raw LaTeX source into a SourceDocument. It never fails:
// structural defects are collected in the Problems field for the
// complexity analysis to surface.
func Parse(raw string) *types.SourceDocument {
	doc := &types.SourceDocument{
		Raw:    raw,
		Labels: map[string]int{},
	}

	if m := documentClassPattern.FindStringSubmatch(raw); m != nil {
		doc.Class = strings.TrimSpace(m[2])
		doc.ClassOptions = splitList(m[1])
	} else {
		doc.Problems = append(doc.Problems, "no \\documentclass declaration")
	}

	for _, m := range usePackagePattern.FindAllStringSubmatchIndex(raw, -1) {
		options := splitList(submatch(raw, m, 1))
		line := lineOf(raw, m[0])
		for _, name := range splitList(submatch(raw, m, 2)) {
			doc.Packages = append(doc.Packages, types.Package{
				Name:    name,
				Options: options,
				Line:    line,
			})
		}
	}

	for _, m := range newCommandPattern.FindAllStringSubmatchIndex(raw, -1) {
		args := 0
		if s := submatch(raw, m, 2); s != "" {
			args, _ = strconv.Atoi(s)
		}
		doc.Macros = append(doc.Macros, types.Macro{
			Name: submatch(raw, m, 1),
			Args: args,
			Body: submatch(raw, m, 3),
			Line: lineOf(raw, m[0]),
		})
	}

	for _, m := range sectionPattern.FindAllStringSubmatchIndex(raw, -1) {
		doc.Sections = append(doc.Sections, types.Section{
			Level: sectionLevels[submatch(raw, m, 1)],
			Title: submatch(raw, m, 2),
			Line:  lineOf(raw, m[0]),
		})
	}

	doc.EquationCount = len(equationPattern.FindAllString(raw, -1))
	doc.FigureCount = len(figurePattern.FindAllString(raw, -1))
	doc.TableCount = len(tablePattern.FindAllString(raw, -1))
	doc.CitationCount = len(citePattern.FindAllString(raw, -1))

	for _, m := range labelPattern.FindAllStringSubmatchIndex(raw, -1) {
		key := submatch(raw, m, 1)
		if _, dup := doc.Labels[key]; dup {
			doc.Problems = append(doc.Problems, fmt.Sprintf("duplicate label %q", key))
			continue
		}
		doc.Labels[key] = lineOf(raw, m[0])
	}

	for _, m := range refPattern.FindAllStringSubmatch(raw, -1) {
		doc.Refs = append(doc.Refs, m[1])
	}

	for _, m := range bibliographyPattern.FindAllStringSubmatch(raw, -1) {
		for _, f := range splitList(m[1]) {
			if !strings.HasSuffix(f, ".bib") {
				f += ".bib"
			}
			doc.BibFiles = append(doc.BibFiles, f)
		}
	}

	for _, m := range includePattern.FindAllStringSubmatch(raw, -1) {
		f := strings.TrimSpace(m[1])
		if !strings.HasSuffix(f, ".tex") {
			f += ".tex"
		}
		doc.Includes = append(doc.Includes, f)
	}

	doc.NeedsIndex = strings.Contains(raw, `\makeindex`) || strings.Contains(raw, `\printindex`)

	if n := strings.Count(raw, "{") - strings.Count(raw, "}"); n != 0 {
		doc.Problems = append(doc.Problems, fmt.Sprintf("unbalanced braces (%+d)", n))
	}
	if strings.Contains(raw, `\begin{document}`) != strings.Contains(raw, `\end{document}`) {
		doc.Problems = append(doc.Problems, "unmatched document environment")
	}
	if strings.Contains(raw, `\def\`) {
		doc.Problems = append(doc.Problems, `uses \def instead of \newcommand`)
	}
	if strings.Contains(raw, `\pdfoutput`) {
		doc.Problems = append(doc.Problems, "direct PDF output manipulation")
	}

	return doc
}

// splitList splits a comma-separated LaTeX option or name list, trimming
// whitespace and dropping empties.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// submatch extracts submatch i from a FindAllStringSubmatchIndex entry.
func submatch(s string, m []int, i int) string {
	lo, hi := m[2*i], m[2*i+1]
	if lo < 0 {
		return ""
	}
	return s[lo:hi]
}

// lineOf returns the 1-based line number of byte offset off.
func lineOf(s string, off int) int {
	return strings.Count(s[:off], "\n") + 1
}
