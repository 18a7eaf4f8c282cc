// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recovery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/document"
	"github.com/meshintel/latexforge/pkg/types"
)

// commandPackages maps commands that commonly trigger "Undefined
// control sequence" onto the package that provides them.
var commandPackages = map[string]string{
	"includegraphics": "graphicx",
	"citep":           "natbib",
	"citet":           "natbib",
	"toprule":         "booktabs",
	"midrule":         "booktabs",
	"bottomrule":      "booktabs",
	"url":             "url",
	"href":            "hyperref",
	"textcolor":       "xcolor",
	"mathbb":          "amssymb",
	"mathfrak":        "amssymb",
	"SI":              "siunitx",
}

var classLinePattern = regexp.MustCompile(`(\\documentclass[^\n]*\n)`)

// Fix is one automated remediation. Either Rewrite transforms the
// source (ModifiesSource true) or SwitchBackend selects a different
// toolchain; never both.
type Fix struct {
	Category       types.ErrorCategory
	Description    string
	ModifiesSource bool
	Rewrite        func(content string) string
	SwitchBackend  types.Backend
}

// Propose returns at most one fix per error category present in errs.
// Categories with no safe automated remediation yield nothing.
func Propose(errs []types.CompilationError, content string, current types.Backend) []Fix {
	var fixes []Fix
	done := map[types.ErrorCategory]bool{}

	for _, e := range errs {
		if done[e.Category] {
			continue
		}
		switch e.Category {
		case types.CatFontEncoding:
			if current != types.BackendXelatex {
				fixes = append(fixes, Fix{
					Category:      e.Category,
					Description:   "switch to xelatex for unicode and system font support",
					SwitchBackend: types.BackendXelatex,
				})
				done[e.Category] = true
			}
		case types.CatMissingPackage:
			if fix, ok := obsoletePackageFix(e.Message, content); ok {
				fixes = append(fixes, fix)
				done[e.Category] = true
			}
		case types.CatUndefinedCommand:
			if fix, ok := missingPackageForCommand(content); ok {
				fixes = append(fixes, fix)
				done[e.Category] = true
			}
		}
	}
	return fixes
}

// obsoletePackageFix replaces an unavailable obsolete package with its
// modern equivalent when the log names one.
func obsoletePackageFix(message, content string) (Fix, bool) {
	m := missingPackagePattern.FindStringSubmatch(message)
	if m == nil {
		return Fix{}, false
	}
	name := m[1]
	modern := document.SupersededBy(name)
	if modern == "" || !strings.Contains(content, "{"+name+"}") {
		return Fix{}, false
	}
	return Fix{
		Category:       types.CatMissingPackage,
		Description:    fmt.Sprintf("replace obsolete package %s with %s", name, modern),
		ModifiesSource: true,
		Rewrite: func(content string) string {
			pattern := regexp.MustCompile(`\\usepackage(?:\[[^\]]*\])?\{` + regexp.QuoteMeta(name) + `\}`)
			return pattern.ReplaceAllString(content, `\usepackage{`+modern+`}`)
		},
	}, true
}

// missingPackageForCommand loads the package backing the first known
// command used without it.
func missingPackageForCommand(content string) (Fix, bool) {
	loaded := map[string]bool{}
	for _, p := range document.Parse(content).Packages {
		loaded[p.Name] = true
	}
	for cmd, pkg := range commandPackages {
		if loaded[pkg] || !strings.Contains(content, `\`+cmd) {
			continue
		}
		pkg := pkg
		return Fix{
			Category:       types.CatUndefinedCommand,
			Description:    fmt.Sprintf(`load %s for \%s`, pkg, cmd),
			ModifiesSource: true,
			Rewrite: func(content string) string {
				line := `\usepackage{` + pkg + "}\n"
				if classLinePattern.MatchString(content) {
					return classLinePattern.ReplaceAllString(content, "${1}"+line)
				}
				return line + content
			},
		}, true
	}
	return Fix{}, false
}

// Attempt is one compilation request the engine hands to its runner.
type Attempt struct {
	Content string
	Backend types.Backend
}

// Outcome is what one compilation attempt produced.
type Outcome struct {
	Success bool
	Log     string
	Errors  []types.CompilationError
}

// RunFunc executes one compilation attempt.
type RunFunc func(ctx context.Context, at Attempt) (Outcome, error)

// Engine retries failed compilations with automated fixes between
// attempts, bounded by maxRetries.
type Engine struct {
	maxRetries int
	log        *zap.Logger
}

// NewEngine builds a recovery engine. maxRetries bounds total attempts.
func NewEngine(maxRetries int, log *zap.Logger) *Engine {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{maxRetries: maxRetries, log: log}
}

// Resolve runs attempts until one succeeds, no fix applies, or the
// retry budget is spent. It returns the last outcome, the attempt that
// produced it, and the fixes applied along the way. A timed-out attempt
// counts as a failed one and is retried within the budget; any other
// error from run aborts immediately.
func (e *Engine) Resolve(ctx context.Context, initial Attempt, run RunFunc) (Outcome, Attempt, []Fix, error) {
	attempt := initial
	var applied []Fix
	var outcome Outcome

	for try := 1; try <= e.maxRetries; try++ {
		var err error
		outcome, err = run(ctx, attempt)
		if errors.Is(err, context.DeadlineExceeded) {
			e.log.Warn("compilation attempt timed out", zap.Int("attempt", try))
			outcome = Outcome{Errors: []types.CompilationError{{
				Severity: types.SeverityError,
				Category: types.CatUnknown,
				Message:  "compilation attempt timed out",
			}}}
			continue
		}
		if err != nil {
			return outcome, attempt, applied, err
		}
		if outcome.Success {
			return outcome, attempt, applied, nil
		}
		if len(outcome.Errors) == 0 {
			outcome.Errors = Parse(outcome.Log)
		}
		if try == e.maxRetries {
			break
		}

		fixes := Propose(outcome.Errors, attempt.Content, attempt.Backend)
		if len(fixes) == 0 {
			e.log.Debug("no automated fix applies", zap.Int("attempt", try))
			break
		}
		for _, fix := range fixes {
			e.log.Info("applying automated fix",
				zap.String("category", string(fix.Category)),
				zap.String("fix", fix.Description))
			if fix.Rewrite != nil {
				attempt.Content = fix.Rewrite(attempt.Content)
			}
			if fix.SwitchBackend != "" {
				attempt.Backend = fix.SwitchBackend
			}
			applied = append(applied, fix)
		}
	}

	// Budget exhausted: surface every remaining diagnostic, marking the
	// categories we tried to fix.
	for i := range outcome.Errors {
		for _, fix := range applied {
			if outcome.Errors[i].Category == fix.Category {
				outcome.Errors[i].FixApplied = fix.Description
			}
		}
	}
	return outcome, attempt, applied, nil
}
