// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/meshintel/latexforge/internal/cache"
	"github.com/meshintel/latexforge/internal/document"
	"github.com/meshintel/latexforge/pkg/types"
)

// maxInlineDepth bounds \input flattening against include cycles.
const maxInlineDepth = 8

var inputPattern = regexp.MustCompile(`\\(?:input|include)\{([^}]+)\}`)

// normalize canonicalizes the raw source: UTF-8 BOM stripped, line
// endings unified to LF, trailing per-line whitespace removed, final
// newline guaranteed.
func (p *Pipeline) normalize(_ context.Context, r *run) ([]byte, []types.CompilationError, []string, error) {
	content := strings.TrimPrefix(r.raw, "\ufeff")
	content = cache.Canonicalize(content)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	r.normalized = content
	return []byte(content), nil, nil, nil
}

// preprocess flattens \input and \include files into one source,
// parses the document, and reports structural problems. A document
// without \documentclass cannot compile and fails here rather than in
// the backend.
func (p *Pipeline) preprocess(ctx context.Context, r *run) ([]byte, []types.CompilationError, []string, error) {
	content := inlineInputs(r.workDir, r.normalized, 0)
	r.preprocessed = content
	r.doc = parseDocument(content)

	var errs []types.CompilationError
	var warnings []string
	for _, problem := range r.doc.Problems {
		if strings.Contains(problem, "documentclass") {
			errs = append(errs, types.CompilationError{
				Severity: types.SeverityError,
				Category: types.CatUnknown,
				Message:  problem,
			})
			continue
		}
		warnings = append(warnings, problem)
	}

	warnings = append(warnings, p.probePackages(ctx, r.doc)...)
	return []byte(content), errs, warnings, nil
}

// probePackages checks via kpsewhich that every \usepackage target is
// installed, so missing packages surface before the backend runs. Best
// effort: no kpsewhich, no probing.
func (p *Pipeline) probePackages(ctx context.Context, doc *types.SourceDocument) []string {
	if doc == nil || !p.adapter.HasTool("kpsewhich") {
		return nil
	}
	var warnings []string
	for _, pkg := range doc.Packages {
		inv, err := p.adapter.RunTool(ctx, "", "kpsewhich", pkg.Name+".sty")
		if err != nil {
			break
		}
		if inv.ExitCode != 0 || strings.TrimSpace(inv.Stdout) == "" {
			warnings = append(warnings, "package "+pkg.Name+" not found in TeX installation")
		}
	}
	return warnings
}

// inlineInputs replaces \input and \include directives with the named
// file's contents when the file exists; unresolvable directives are
// left for the backend to report.
func inlineInputs(dir, content string, depth int) string {
	if depth >= maxInlineDepth {
		return content
	}
	return inputPattern.ReplaceAllStringFunc(content, func(directive string) string {
		name := inputPattern.FindStringSubmatch(directive)[1]
		if filepath.Ext(name) == "" {
			name += ".tex"
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return directive
		}
		return inlineInputs(dir, cache.Canonicalize(string(data)), depth+1)
	})
}

func parseDocument(content string) *types.SourceDocument {
	return document.Parse(content)
}
