// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend wraps the TeX toolchain binaries behind a uniform
// adapter: backend availability probes, nonstop-mode invocation with
// context-driven timeouts, and the auxiliary tools the postprocessing
// stage shells out to.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/meshintel/latexforge/pkg/types"
)

// Invocation is the captured outcome of one toolchain run.
type Invocation struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) (Invocation, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, dir, name string, args ...string) (Invocation, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	inv := Invocation{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		inv.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return inv, ctx.Err()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return inv, fmt.Errorf("running %s: %w", name, err)
	}
	// A nonzero TeX exit is diagnosed from the log, not treated as a
	// process failure.
	return inv, nil
}

var defaultExec executor = &osExecutor{}

// Adapter runs TeX backends and auxiliary tools.
type Adapter struct {
	exec executor
}

// NewAdapter returns the production adapter.
func NewAdapter() *Adapter {
	return &Adapter{exec: defaultExec}
}

// Available reports whether the backend's binary is on PATH.
func (a *Adapter) Available(b types.Backend) bool {
	_, err := a.exec.LookPath(string(b))
	return err == nil
}

// HasTool reports whether an auxiliary tool (bibtex, biber, makeindex,
// gs, kpsewhich) is on PATH.
func (a *Adapter) HasTool(name string) bool {
	_, err := a.exec.LookPath(name)
	return err == nil
}

// Invoke runs one compilation pass of b over mainFile inside dir,
// writing artifacts to outDir. The context bounds the run; a deadline
// hit surfaces as context.DeadlineExceeded.
func (a *Adapter) Invoke(ctx context.Context, b types.Backend, dir, mainFile, outDir string) (Invocation, error) {
	args := []string{
		"-interaction=nonstopmode",
		"-file-line-error",
	}
	if b == types.BackendLatexmk {
		args = append(args, "-pdf")
	}
	if outDir != "" {
		args = append(args, "-output-directory="+outDir)
	}
	args = append(args, mainFile)
	return a.exec.Run(ctx, dir, string(b), args...)
}

// RunTool runs an auxiliary tool inside dir.
func (a *Adapter) RunTool(ctx context.Context, dir, name string, args ...string) (Invocation, error) {
	return a.exec.Run(ctx, dir, name, args...)
}

// Version reports the first line of the backend's --version output, or
// "unknown" when the probe fails. Receipts record it as tool identity.
func (a *Adapter) Version(ctx context.Context, b types.Backend) string {
	inv, err := a.exec.Run(ctx, "", string(b), "--version")
	if err != nil {
		return "unknown"
	}
	line, _, _ := strings.Cut(inv.Stdout, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "unknown"
	}
	return line
}

// Order returns the attempt order: the configured backend followed by
// its fallbacks, with unavailable and duplicate entries dropped.
func (a *Adapter) Order(primary types.Backend, fallbacks []types.Backend) []types.Backend {
	seen := map[types.Backend]bool{}
	var order []types.Backend
	for _, b := range append([]types.Backend{primary}, fallbacks...) {
		if seen[b] || !a.Available(b) {
			continue
		}
		seen[b] = true
		order = append(order, b)
	}
	return order
}
