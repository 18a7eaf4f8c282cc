// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"math"
	"strings"
	"testing"

	"github.com/meshintel/latexforge/pkg/types"
)

func TestAnalyzeScore(t *testing.T) {
	// 2 equations, 1 figure, 1 table, 3 packages, 1 macro, nesting 1:
	// (2*2.0 + 1*1.5 + 1*1.5 + 3*0.5 + 1*1.0 + 1*5.0) / 10 = 1.45
	src := `\documentclass{article}
\usepackage{amsmath}
\usepackage{graphicx}
\usepackage{booktabs}
\newcommand{\x}{1}
\begin{document}
\begin{equation}a\end{equation}
\begin{equation}b\end{equation}
\begin{figure}f\end{figure}
\begin{table}t\end{table}
\end{document}
`
	c := Analyze(Parse(src))
	if math.Abs(c.Score-1.45) > 1e-9 {
		t.Errorf("score = %v, want 1.45", c.Score)
	}
	if c.FloatCount != 2 {
		t.Errorf("float count = %d, want 2", c.FloatCount)
	}
}

func TestAnalyzeScoreCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString(`\documentclass{article}` + "\n")
	for i := 0; i < 600; i++ {
		b.WriteString(`\begin{equation}x\end{equation}` + "\n")
	}
	c := Analyze(Parse(b.String()))
	if c.Score != 100.0 {
		t.Errorf("score = %v, want capped at 100", c.Score)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want types.DocumentType
	}{
		{"beamer", `\documentclass{beamer}`, types.DocPresentation},
		{"letter", `\documentclass{letter}`, types.DocLetter},
		{"book", `\documentclass{book}`, types.DocBook},
		{"article", `\documentclass[11pt]{article}`, types.DocArticle},
		{"report", `\documentclass{report}`, types.DocReport},
		{
			"thesis heuristic",
			`\documentclass{report}` + "\n" + `\title{A PhD Thesis}` + "\n" + `\chapter{One}`,
			types.DocThesis,
		},
		{
			"chapters without thesis keyword",
			`\documentclass{memoir}` + "\n" + `\chapter{One}`,
			types.DocThesis,
		},
		{"unknown", `\documentclass{standalone}`, types.DocUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Analyze(Parse(tt.src)).Type; got != tt.want {
				t.Errorf("type = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPackageFindings(t *testing.T) {
	src := `\documentclass{article}
\usepackage{graphicx}
\usepackage{graphicx}
\usepackage{epsfig}
\usepackage{subfigure}
\usepackage{subcaption}
`
	c := Analyze(Parse(src))

	if len(c.RedundantPackages) != 1 || c.RedundantPackages[0] != "graphicx" {
		t.Errorf("redundant = %v, want [graphicx]", c.RedundantPackages)
	}
	wantObsolete := map[string]bool{"epsfig": true, "subfigure": true}
	if len(c.ObsoletePackages) != 2 {
		t.Fatalf("obsolete = %v, want 2 entries", c.ObsoletePackages)
	}
	for _, p := range c.ObsoletePackages {
		if !wantObsolete[p] {
			t.Errorf("unexpected obsolete package %q", p)
		}
	}
	if len(c.ConflictingPackages) != 1 {
		t.Fatalf("conflicts = %v, want 1 pair", c.ConflictingPackages)
	}
	if c.ConflictingPackages[0] != [2]string{"subfigure", "subcaption"} {
		t.Errorf("conflict pair = %v", c.ConflictingPackages[0])
	}
}

func TestSupersededBy(t *testing.T) {
	if got := SupersededBy("epsfig"); got != "graphicx" {
		t.Errorf("SupersededBy(epsfig) = %q, want graphicx", got)
	}
	if got := SupersededBy("graphicx"); got != "" {
		t.Errorf("SupersededBy(graphicx) = %q, want empty", got)
	}
}

func TestNestingDepth(t *testing.T) {
	src := `\documentclass{article}
\begin{figure}
\begin{minipage}{0.5\textwidth}
\begin{tabular}{cc}
\end{tabular}
\end{minipage}
\end{figure}
`
	c := Analyze(Parse(src))
	if c.NestingDepth != 3 {
		t.Errorf("nesting depth = %d, want 3", c.NestingDepth)
	}
}
