package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshintel/latexforge/internal/engine"
)

var compileCmd = &cobra.Command{
	Use:   "compile [files...]",
	Short: "Compile LaTeX documents through the staged pipeline",
	Long: `Compile runs each document through the five-stage pipeline. Stages
whose inputs are unchanged since the last run are served from the cache.
Failed compilations are retried with automated fixes, falling back
through the configured backend order. Each successful run writes the PDF
and a receipt binding input to output.

With more than one file, documents compile concurrently through the
worker pool.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg := engineConfig(cmd)
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()

	if len(args) > 1 {
		batch, err := eng.CompileBatch(ctx, args, os.Stdout)
		if err != nil {
			return err
		}
		if batch.Failed > 0 {
			return fmt.Errorf("%d document(s) failed", batch.Failed)
		}
		return nil
	}

	result, err := eng.Compile(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		for _, sr := range result.StageResults {
			marker := "ran"
			if sr.CacheHit {
				marker = "cached"
			}
			fmt.Printf("%-12s %-7s %s\n", sr.Stage, marker, durationMS(sr.Duration))
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Printf("error: %s (line %d)\n", e.Message, e.Line)
			} else {
				fmt.Printf("error: %s\n", e.Message)
			}
			if e.Suggestion != "" {
				fmt.Printf("  suggestion: %s\n", e.Suggestion)
			}
		}
		if result.Success {
			fmt.Printf("\n%s (%s)\n", result.ArtifactPath, result.Backend)
		}
	}

	if !result.Success {
		return fmt.Errorf("compilation failed with %d error(s)", len(result.Errors))
	}
	return nil
}

func init() {
	compileCmd.Flags().String("backend", "", "backend: pdflatex, xelatex, lualatex, or latexmk")
	compileCmd.Flags().String("output-dir", "", "directory for the PDF and receipt (default: input directory)")
	compileCmd.Flags().Duration("timeout", 0, "per-invocation backend timeout")
	compileCmd.Flags().Int("workers", 0, "concurrent compilations for multi-file batches")
	compileCmd.Flags().Bool("json", false, "output the full result as JSON")

	rootCmd.AddCommand(compileCmd)
}
