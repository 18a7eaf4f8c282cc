// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/meshintel/latexforge/pkg/types"
)

func TestProposeBackendSwitchOnFontError(t *testing.T) {
	errs := []types.CompilationError{{
		Severity: types.SeverityError,
		Category: types.CatFontEncoding,
		Message:  "Package inputenc Error: Unicode character not set up",
	}}

	fixes := Propose(errs, `\documentclass{article}`, types.BackendPdflatex)
	if len(fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(fixes))
	}
	if fixes[0].SwitchBackend != types.BackendXelatex {
		t.Errorf("switch target = %q, want xelatex", fixes[0].SwitchBackend)
	}
	if fixes[0].ModifiesSource {
		t.Error("backend switch must not modify the source")
	}

	// Already on xelatex: nothing to switch to.
	fixes = Propose(errs, `\documentclass{article}`, types.BackendXelatex)
	if len(fixes) != 0 {
		t.Errorf("fixes on xelatex = %v, want none", fixes)
	}
}

func TestProposeObsoletePackageReplacement(t *testing.T) {
	content := `\documentclass{article}
\usepackage{epsfig}
`
	errs := []types.CompilationError{{
		Severity: types.SeverityError,
		Category: types.CatMissingPackage,
		Message:  "LaTeX Error: File `epsfig.sty' not found.",
	}}

	fixes := Propose(errs, content, types.BackendPdflatex)
	if len(fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(fixes))
	}
	if !fixes[0].ModifiesSource {
		t.Error("package replacement must modify the source")
	}
	out := fixes[0].Rewrite(content)
	if strings.Contains(out, "epsfig") {
		t.Errorf("epsfig survived: %s", out)
	}
	if !strings.Contains(out, `\usepackage{graphicx}`) {
		t.Errorf("graphicx not substituted: %s", out)
	}
}

func TestProposeMissingPackageForCommand(t *testing.T) {
	content := `\documentclass{article}
\begin{document}
\includegraphics{plot.pdf}
\end{document}
`
	errs := []types.CompilationError{{
		Severity: types.SeverityError,
		Category: types.CatUndefinedCommand,
		Message:  "Undefined control sequence.",
	}}

	fixes := Propose(errs, content, types.BackendPdflatex)
	if len(fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(fixes))
	}
	out := fixes[0].Rewrite(content)
	if !strings.Contains(out, `\usepackage{graphicx}`) {
		t.Errorf("graphicx not loaded:\n%s", out)
	}
	// The package line lands after \documentclass.
	if strings.Index(out, `\documentclass`) > strings.Index(out, `\usepackage{graphicx}`) {
		t.Error("package loaded before documentclass")
	}
}

func TestProposeOneFixPerCategory(t *testing.T) {
	errs := []types.CompilationError{
		{Category: types.CatFontEncoding, Message: "font problem one"},
		{Category: types.CatFontEncoding, Message: "font problem two"},
	}
	fixes := Propose(errs, "", types.BackendPdflatex)
	if len(fixes) != 1 {
		t.Errorf("fixes = %d, want at most one per category", len(fixes))
	}
}

func TestResolveSucceedsFirstTry(t *testing.T) {
	eng := NewEngine(3, nil)
	calls := 0
	outcome, attempt, fixes, err := eng.Resolve(context.Background(),
		Attempt{Content: "src", Backend: types.BackendPdflatex},
		func(ctx context.Context, at Attempt) (Outcome, error) {
			calls++
			return Outcome{Success: true}, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || calls != 1 || len(fixes) != 0 {
		t.Errorf("outcome = %+v, calls = %d, fixes = %v", outcome, calls, fixes)
	}
	if attempt.Backend != types.BackendPdflatex {
		t.Errorf("backend changed to %q", attempt.Backend)
	}
}

func TestResolveAppliesFixThenSucceeds(t *testing.T) {
	eng := NewEngine(3, nil)
	calls := 0
	outcome, attempt, fixes, err := eng.Resolve(context.Background(),
		Attempt{Content: "über", Backend: types.BackendPdflatex},
		func(ctx context.Context, at Attempt) (Outcome, error) {
			calls++
			if at.Backend == types.BackendXelatex {
				return Outcome{Success: true}, nil
			}
			return Outcome{
				Log: "! Package inputenc Error: Unicode character ü not set up.\n",
			}, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Fatal("recovery should have succeeded after backend switch")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if attempt.Backend != types.BackendXelatex {
		t.Errorf("final backend = %q, want xelatex", attempt.Backend)
	}
	if len(fixes) != 1 {
		t.Errorf("fixes = %v, want 1", fixes)
	}
}

func TestResolveBudgetExhausted(t *testing.T) {
	eng := NewEngine(3, nil)
	// Two commands from two missing packages: every attempt has a fix
	// left to propose, so only the budget stops the loop.
	content := `\documentclass{article}
\begin{document}
\citep{knuth84} \toprule
\end{document}
`
	calls := 0
	outcome, attempt, _, err := eng.Resolve(context.Background(),
		Attempt{Content: content, Backend: types.BackendPdflatex},
		func(ctx context.Context, at Attempt) (Outcome, error) {
			calls++
			return Outcome{
				Log: "! Undefined control sequence.\nl.3 \\citep\n",
			}, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Fatal("should have failed")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly the retry budget", calls)
	}
	if len(outcome.Errors) == 0 {
		t.Fatal("exhaustion must surface the remaining diagnostics")
	}
	if outcome.Errors[0].FixApplied == "" {
		t.Error("attempted fixes must be marked on the surfaced errors")
	}
	if !strings.Contains(attempt.Content, "natbib") || !strings.Contains(attempt.Content, "booktabs") {
		t.Errorf("both package fixes should have been applied:\n%s", attempt.Content)
	}
}

func TestResolveStopsWhenNoFixApplies(t *testing.T) {
	eng := NewEngine(5, nil)
	calls := 0
	outcome, _, _, err := eng.Resolve(context.Background(),
		Attempt{Content: "src", Backend: types.BackendPdflatex},
		func(ctx context.Context, at Attempt) (Outcome, error) {
			calls++
			return Outcome{Log: "! Emergency stop.\n"}, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Fatal("should have failed")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 when no fix applies", calls)
	}
}

func TestResolvePropagatesRunError(t *testing.T) {
	eng := NewEngine(3, nil)
	wantErr := errors.New("backend binary vanished")
	calls := 0
	_, _, _, err := eng.Resolve(context.Background(),
		Attempt{Content: "src", Backend: types.BackendPdflatex},
		func(ctx context.Context, at Attempt) (Outcome, error) {
			calls++
			return Outcome{}, wantErr
		})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 on a non-timeout error", calls)
	}
}

func TestResolveRetriesTimedOutAttempts(t *testing.T) {
	eng := NewEngine(3, nil)
	calls := 0
	outcome, _, _, err := eng.Resolve(context.Background(),
		Attempt{Content: "src", Backend: types.BackendPdflatex},
		func(ctx context.Context, at Attempt) (Outcome, error) {
			calls++
			return Outcome{}, context.DeadlineExceeded
		})
	if err != nil {
		t.Fatalf("a timeout must not surface as a run error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want the full retry budget", calls)
	}
	if outcome.Success {
		t.Fatal("should have failed")
	}
	if len(outcome.Errors) == 0 || !strings.Contains(outcome.Errors[0].Message, "timed out") {
		t.Errorf("errors = %v, want a timed out diagnostic", outcome.Errors)
	}
}
