// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/recovery"
	"github.com/meshintel/latexforge/pkg/types"
)

// generatedSuffix marks the build file written when the compiled
// content differs from the on-disk source.
const generatedSuffix = ".latexforge"

// compile runs the backend over the preprocessed source, retrying with
// automated fixes and falling back through the configured backend order.
// A backend that keeps timing out exhausts its retry budget like any
// other failure and the next backend in the order gets a turn.
func (p *Pipeline) compile(ctx context.Context, r *run) ([]byte, []types.CompilationError, []string, error) {
	order := p.adapter.Order(p.cfg.Backend, p.cfg.FallbackBackends)
	if len(order) == 0 {
		return nil, []types.CompilationError{{
			Severity: types.SeverityError,
			Category: types.CatMissingFile,
			Message:  fmt.Sprintf("no LaTeX backend available (tried %s and fallbacks)", p.cfg.Backend),
		}}, nil, nil
	}

	var lastErrors []types.CompilationError
	for _, b := range order {
		outcome, attempt, fixes, err := p.recover.Resolve(ctx,
			recovery.Attempt{Content: r.preprocessed, Backend: b},
			p.runOnce(r))
		if err != nil {
			return nil, nil, nil, err
		}

		if outcome.Success {
			r.backendUsed = attempt.Backend
			r.toolVersion = p.adapter.Version(ctx, attempt.Backend)
			r.compileLog = outcome.Log
			r.preprocessed = attempt.Content
			for _, fix := range fixes {
				p.log.Info("compilation recovered",
					zap.String("backend", string(attempt.Backend)),
					zap.String("fix", fix.Description))
			}
			return r.pdf, nil, recovery.Warnings(outcome.Log), nil
		}

		lastErrors = outcome.Errors
		p.log.Warn("backend failed, trying fallback",
			zap.String("backend", string(attempt.Backend)),
			zap.Int("errors", len(outcome.Errors)))
	}

	return nil, lastErrors, nil, nil
}

// runOnce returns the attempt runner bound to this run's directories.
// Each invocation writes the attempt content to a build file, invokes
// the backend under the configured timeout, and reads back the PDF.
func (p *Pipeline) runOnce(r *run) recovery.RunFunc {
	return func(ctx context.Context, at recovery.Attempt) (recovery.Outcome, error) {
		mainFile, jobname, err := p.buildFile(r, at.Content)
		if err != nil {
			return recovery.Outcome{}, err
		}

		ctx, cancel := context.WithTimeout(ctx, p.cfg.CompileTimeout)
		defer cancel()

		inv, err := p.adapter.Invoke(ctx, at.Backend, r.workDir, mainFile, r.outDir)
		if err != nil {
			return recovery.Outcome{Log: inv.Stdout}, err
		}

		errs := recovery.Parse(inv.Stdout)
		pdfPath := filepath.Join(r.outDir, jobname+".pdf")
		pdf, readErr := os.ReadFile(pdfPath)
		success := inv.ExitCode == 0 && readErr == nil && len(pdf) > 0

		if success {
			r.pdf = pdf
			r.jobname = jobname
		}
		return recovery.Outcome{Success: success, Log: inv.Stdout, Errors: errs}, nil
	}
}

// buildFile materializes the content to compile. Content identical to
// the on-disk source compiles in place; modified content goes to a
// sibling build file so the user's source is never overwritten.
func (p *Pipeline) buildFile(r *run, content string) (mainFile, jobname string, err error) {
	if content == r.raw || content == r.normalized {
		return filepath.Base(r.inputPath), r.stem, nil
	}
	jobname = r.stem + generatedSuffix
	mainFile = jobname + ".tex"
	if err := os.WriteFile(filepath.Join(r.workDir, mainFile), []byte(content), 0o644); err != nil {
		return "", "", fmt.Errorf("writing build file: %w", err)
	}
	return mainFile, jobname, nil
}
