// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"strings"
	"testing"
)

const validDoc = `\documentclass{article}
\begin{document}
\section{One}
Some reasonable amount of content to keep the length ratio meaningful.
\end{document}
`

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		original  string
		candidate string
		wantOK    bool
		wantFail  string
	}{
		{
			name:      "identity passes",
			original:  validDoc,
			candidate: validDoc,
			wantOK:    true,
		},
		{
			name:      "broken environment balance",
			original:  validDoc,
			candidate: strings.Replace(validDoc, `\end{document}`, "", 1),
			wantFail:  "critical command",
		},
		{
			name:      "dropped documentclass",
			original:  validDoc,
			candidate: strings.Replace(validDoc, `\documentclass{article}`, "", 1),
			wantFail:  `\documentclass`,
		},
		{
			name:      "broken brace balance",
			original:  validDoc,
			candidate: strings.Replace(validDoc, `\section{One}`, `\section{One`, 1),
			wantFail:  "brace balance",
		},
		{
			name:      "destructive shrink",
			original:  validDoc,
			candidate: "\\documentclass{article}\n\\begin{document}\n\\end{document}",
			wantFail:  "shrank",
		},
		{
			name:      "candidate may grow",
			original:  validDoc,
			candidate: validDoc + "\nMore content appended by a rewrite.\n",
			wantOK:    true,
		},
		{
			name: "unbalanced original does not trip environment check",
			original: `\documentclass{article}
\begin{document}
\begin{itemize}
\item deliberately left open
\end{document}
`,
			candidate: `\documentclass{article}
\begin{document}
\begin{itemize}
\item deliberately left open still
\end{document}
`,
			wantOK: true,
		},
		{
			name: "unbalanced original does not trip brace check",
			original: `\documentclass{article}
\begin{document}
{ deliberately unbalanced
\end{document}
`,
			candidate: `\documentclass{article}
\begin{document}
{ deliberately unbalanced still
\end{document}
`,
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, failures := Validate(tt.original, tt.candidate)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, failures = %v", ok, failures)
			}
			if tt.wantFail != "" {
				found := false
				for _, f := range failures {
					if strings.Contains(f, tt.wantFail) {
						found = true
					}
				}
				if !found {
					t.Errorf("failures %v missing %q", failures, tt.wantFail)
				}
			}
		})
	}
}
