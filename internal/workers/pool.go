// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workers runs independent compilation jobs through a bounded
// pool. Job failures are recorded per item; one bad document never
// aborts the batch.
package workers

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meshintel/latexforge/pkg/types"
)

// CompileFunc compiles one document and returns its result.
type CompileFunc func(ctx context.Context, path string) (types.CompilationResult, error)

// JobResult pairs one input with its outcome. Err is set only for
// infrastructure failures; compilation failures live in Result.
type JobResult struct {
	ID     string
	Path   string
	Result types.CompilationResult
	Err    error
}

// BatchResult summarizes one pool run.
type BatchResult struct {
	Succeeded int
	Failed    int
	Jobs      []JobResult
}

// Total returns the number of jobs processed.
func (b BatchResult) Total() int {
	return b.Succeeded + b.Failed
}

// Pool bounds concurrent compilations.
type Pool struct {
	width int64
}

// NewPool builds a pool of the given width; widths below one become one.
func NewPool(width int) *Pool {
	if width < 1 {
		width = 1
	}
	return &Pool{width: int64(width)}
}

// Run compiles every path through fn, at most width at a time, writing
// a progress line per job to w. Job order in the result matches the
// input order. Context cancellation stops admission of new jobs.
func (p *Pool) Run(ctx context.Context, paths []string, fn CompileFunc, w io.Writer) (BatchResult, error) {
	sem := semaphore.NewWeighted(p.width)
	g, ctx := errgroup.WithContext(ctx)

	results := make([]JobResult, len(paths))
	var mu sync.Mutex

	for i, path := range paths {
		i, path := i, path
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = JobResult{ID: uuid.NewString(), Path: path, Err: err}
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)

			job := JobResult{ID: uuid.NewString(), Path: path}
			job.Result, job.Err = fn(ctx, path)

			mu.Lock()
			results[i] = job
			mu.Unlock()

			switch {
			case job.Err != nil:
				fmt.Fprintf(w, "failed   %s: %v\n", path, job.Err)
			case !job.Result.Success:
				fmt.Fprintf(w, "failed   %s (%d errors)\n", path, len(job.Result.Errors))
			case job.Result.Incremental:
				fmt.Fprintf(w, "compiled %s (cached)\n", path)
			default:
				fmt.Fprintf(w, "compiled %s\n", path)
			}
			return nil
		})
	}

	err := g.Wait()

	var batch BatchResult
	batch.Jobs = results
	for _, job := range results {
		if job.Err == nil && job.Result.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	fmt.Fprintf(w, "\nsucceeded: %d, failed: %d\n", batch.Succeeded, batch.Failed)
	return batch, err
}
