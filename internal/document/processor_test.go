// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"strings"
	"testing"
)

const sampleArticle = `\documentclass[11pt,a4paper]{article}
\usepackage[utf8]{inputenc}
\usepackage{graphicx,amsmath}
\newcommand{\vect}[1]{\mathbf{#1}}
\newcommand{\myref}{\ref{eq:main}}
\begin{document}
\section{Introduction}
\label{sec:intro}
As shown in \cite{smith2020}.
\begin{equation}
E = mc^2
\label{eq:main}
\end{equation}
\subsection{Details}
See \ref{eq:main} and \ref{sec:intro}.
\begin{figure}
\includegraphics{plot.pdf}
\end{figure}
\input{appendix}
\bibliography{refs}
\end{document}
`

func TestParse(t *testing.T) {
	doc := Parse(sampleArticle)

	if doc.Class != "article" {
		t.Errorf("class = %q, want %q", doc.Class, "article")
	}
	if len(doc.ClassOptions) != 2 || doc.ClassOptions[0] != "11pt" || doc.ClassOptions[1] != "a4paper" {
		t.Errorf("class options = %v, want [11pt a4paper]", doc.ClassOptions)
	}

	// \usepackage{graphicx,amsmath} yields two entries.
	names := doc.PackageNames()
	want := []string{"inputenc", "graphicx", "amsmath"}
	if len(names) != len(want) {
		t.Fatalf("packages = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("package[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if len(doc.Packages[0].Options) != 1 || doc.Packages[0].Options[0] != "utf8" {
		t.Errorf("inputenc options = %v, want [utf8]", doc.Packages[0].Options)
	}

	if len(doc.Macros) != 2 {
		t.Fatalf("macros = %d, want 2", len(doc.Macros))
	}
	if doc.Macros[0].Name != "vect" || doc.Macros[0].Args != 1 {
		t.Errorf("macro[0] = %+v, want vect with 1 arg", doc.Macros[0])
	}
	if doc.Macros[1].Name != "myref" || doc.Macros[1].Args != 0 {
		t.Errorf("macro[1] = %+v, want myref with 0 args", doc.Macros[1])
	}

	if len(doc.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(doc.Sections))
	}
	if doc.Sections[0].Title != "Introduction" || doc.Sections[0].Level != 1 {
		t.Errorf("section[0] = %+v", doc.Sections[0])
	}
	if doc.Sections[1].Title != "Details" || doc.Sections[1].Level != 2 {
		t.Errorf("section[1] = %+v", doc.Sections[1])
	}

	if doc.EquationCount != 1 {
		t.Errorf("equations = %d, want 1", doc.EquationCount)
	}
	if doc.FigureCount != 1 {
		t.Errorf("figures = %d, want 1", doc.FigureCount)
	}
	if doc.CitationCount != 1 {
		t.Errorf("citations = %d, want 1", doc.CitationCount)
	}

	if _, ok := doc.Labels["eq:main"]; !ok {
		t.Error("label eq:main not recorded")
	}
	if len(doc.Refs) != 3 {
		t.Errorf("refs = %v, want 3 entries", doc.Refs)
	}
	if len(doc.BibFiles) != 1 || doc.BibFiles[0] != "refs.bib" {
		t.Errorf("bib files = %v, want [refs.bib]", doc.BibFiles)
	}
	if len(doc.Includes) != 1 || doc.Includes[0] != "appendix.tex" {
		t.Errorf("includes = %v, want [appendix.tex]", doc.Includes)
	}
	if len(doc.Problems) != 0 {
		t.Errorf("problems = %v, want none", doc.Problems)
	}
}

func TestParseProblems(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing documentclass",
			src:  `\begin{document}hi\end{document}`,
			want: "no \\documentclass",
		},
		{
			name: "duplicate label",
			src:  `\documentclass{article}\label{x}\label{x}`,
			want: `duplicate label "x"`,
		},
		{
			name: "unbalanced braces",
			src:  `\documentclass{article}{{`,
			want: "unbalanced braces",
		},
		{
			name: "unmatched document environment",
			src:  `\documentclass{article}\begin{document}`,
			want: "unmatched document environment",
		},
		{
			name: "def usage",
			src:  `\documentclass{article}\def\x{1}`,
			want: `uses \def`,
		},
		{
			name: "pdfoutput manipulation",
			src:  `\documentclass{article}\pdfoutput=1`,
			want: "PDF output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Parse(tt.src)
			found := false
			for _, p := range doc.Problems {
				if strings.Contains(p, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("problems = %v, want one containing %q", doc.Problems, tt.want)
			}
		})
	}
}

func TestParseNeverPanicsOnGarbage(t *testing.T) {
	inputs := []string{
		"",
		"\\",
		"\\usepackage{",
		strings.Repeat("{", 1000),
		"\x00\x01\x02",
	}
	for _, src := range inputs {
		doc := Parse(src)
		if doc == nil {
			t.Fatalf("Parse(%q) returned nil", src)
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	a := Parse(sampleArticle)
	b := Parse(sampleArticle)
	if len(a.Packages) != len(b.Packages) || len(a.Sections) != len(b.Sections) {
		t.Error("repeated parses disagree")
	}
}
