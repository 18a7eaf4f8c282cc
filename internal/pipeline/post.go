// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/cache"
	"github.com/meshintel/latexforge/internal/recovery"
	"github.com/meshintel/latexforge/pkg/types"
)

// maxReruns bounds the extra backend passes that settle
// cross-references after bibliography and index processing.
const maxReruns = 2

// postprocess runs the auxiliary tools the document needs — bibtex or
// biber for bibliographies, makeindex for indexes — then reruns the
// backend until references settle or the rerun budget is spent.
func (p *Pipeline) postprocess(ctx context.Context, r *run) ([]byte, []types.CompilationError, []string, error) {
	var warnings []string
	rerun := recovery.NeedsRerun(r.compileLog)

	if r.doc != nil && len(r.doc.BibFiles) > 0 {
		tool := "bibtex"
		if !p.adapter.HasTool(tool) && p.adapter.HasTool("biber") {
			tool = "biber"
		}
		if p.adapter.HasTool(tool) {
			if inv, err := p.adapter.RunTool(ctx, r.outDir, tool, r.jobname); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s failed: %v", tool, err))
			} else if inv.ExitCode != 0 {
				warnings = append(warnings, fmt.Sprintf("%s exited with %d", tool, inv.ExitCode))
			} else {
				rerun = true
			}
		} else {
			warnings = append(warnings, "bibliography present but no bibtex or biber on PATH")
		}
	}

	if r.doc != nil && r.doc.NeedsIndex {
		if p.adapter.HasTool("makeindex") {
			if _, err := p.adapter.RunTool(ctx, r.outDir, "makeindex", r.jobname+".idx"); err != nil {
				warnings = append(warnings, fmt.Sprintf("makeindex failed: %v", err))
			} else {
				rerun = true
			}
		} else {
			warnings = append(warnings, "index requested but makeindex not on PATH")
		}
	}

	for pass := 0; rerun && pass < maxReruns; pass++ {
		outcome, err := p.rerunBackend(ctx, r)
		if err != nil {
			return nil, nil, warnings, err
		}
		if !outcome.Success {
			// The document compiled once already; a rerun failure keeps
			// the previous artifact and surfaces as a warning.
			warnings = append(warnings, "reference-settling rerun failed, keeping previous artifact")
			break
		}
		rerun = recovery.NeedsRerun(outcome.Log)
	}

	return r.pdf, nil, warnings, nil
}

func (p *Pipeline) rerunBackend(ctx context.Context, r *run) (recovery.Outcome, error) {
	p.log.Debug("rerunning backend to settle references",
		zap.String("backend", string(r.backendUsed)))
	run := p.runOnce(r)
	return run(ctx, recovery.Attempt{Content: r.preprocessed, Backend: r.backendUsed})
}

// finalize optionally compresses the artifact with ghostscript, writes
// it to the output path, and removes the intermediate build file.
func (p *Pipeline) finalize(ctx context.Context, r *run) ([]byte, []types.CompilationError, []string, error) {
	var warnings []string

	if p.cfg.CompressPDF {
		compressed, err := p.compress(ctx, r)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("pdf compression failed: %v", err))
		case len(compressed) > 0 && len(compressed) < len(r.pdf):
			r.pdf = compressed
		}
	}

	if err := p.writeArtifact(r); err != nil {
		return nil, nil, warnings, err
	}

	if r.jobname != r.stem {
		buildFile := filepath.Join(r.workDir, r.jobname+".tex")
		if err := os.Remove(buildFile); err != nil && !os.IsNotExist(err) {
			p.log.Debug("build file cleanup failed", zap.Error(err))
		}
	}
	return r.pdf, nil, warnings, nil
}

// compress shells out to ghostscript for PDF size reduction.
func (p *Pipeline) compress(ctx context.Context, r *run) ([]byte, error) {
	if !p.adapter.HasTool("gs") {
		return nil, fmt.Errorf("ghostscript not on PATH")
	}

	src := filepath.Join(r.outDir, r.jobname+".pdf")
	if err := os.WriteFile(src, r.pdf, 0o644); err != nil {
		return nil, fmt.Errorf("staging pdf for compression: %w", err)
	}
	dst := filepath.Join(r.outDir, r.jobname+".compressed.pdf")
	defer os.Remove(dst)

	inv, err := p.adapter.RunTool(ctx, r.outDir, "gs",
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.5",
		"-dPDFSETTINGS=/ebook",
		"-dNOPAUSE", "-dBATCH", "-dQUIET",
		"-sOutputFile="+dst,
		src,
	)
	if err != nil {
		return nil, err
	}
	if inv.ExitCode != 0 {
		return nil, fmt.Errorf("ghostscript exited with %d", inv.ExitCode)
	}
	return os.ReadFile(dst)
}

// buildReceipt assembles the immutable proof for one successful run.
func (p *Pipeline) buildReceipt(ctx context.Context, r *run) *types.Receipt {
	stages := map[string]types.StageReceipt{}
	for _, sr := range r.results {
		stages[string(sr.Stage)] = types.StageReceipt{
			OutputHash: sr.OutputHash,
			DurationMS: sr.Duration.Milliseconds(),
		}
	}
	version := r.toolVersion
	if version == "" {
		version = p.adapter.Version(ctx, r.backendUsed)
	}
	return &types.Receipt{
		InputHash:   cache.ContentHash([]byte(cache.Canonicalize(r.raw))),
		OutputHash:  cache.ContentHash(r.pdf),
		Stages:      stages,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Backend:     r.backendUsed,
		ToolVersion: version,
	}
}

// writeReceipt persists the receipt next to the artifact.
func (p *Pipeline) writeReceipt(r *run, receipt *types.Receipt) error {
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	path := r.artifactPath() + ".receipt.json"
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	return nil
}
