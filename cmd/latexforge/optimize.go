package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meshintel/latexforge/internal/engine"
	"github.com/meshintel/latexforge/pkg/types"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [file]",
	Short: "Rewrite a document for faster, cleaner compilation",
	Long: `Optimize applies rewrite strategies to the document: obsolete package
replacement, duplicate package removal, float placement relaxation,
equation formatting cleanup, and more. Strategies are ranked by risk and
by learned success rates from compilation history; every candidate must
pass a safety gate before it replaces the original.

The optimized source is written next to the input as <name>.opt.tex, or
in place with --in-place.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg := engineConfig(cmd)
	if v, _ := cmd.Flags().GetString("level"); v != "" {
		cfg.OptimizationLevel = types.OptimizationLevel(v)
	}
	iterations, _ := cmd.Flags().GetInt("iterations")

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	optimized, metrics := eng.Optimize(context.Background(), string(raw), iterations)

	fmt.Printf("iterations: %d, accepted: %d, rejected: %d\n",
		metrics.Iterations, metrics.SuccessfulOptimizations, metrics.FailedOptimizations)
	for name, conf := range metrics.Confidence {
		fmt.Printf("  %-28s confidence %.2f\n", name, conf)
	}

	if metrics.SuccessfulOptimizations == 0 {
		fmt.Println("no applicable optimizations")
		return nil
	}

	outPath := args[0]
	if inPlace, _ := cmd.Flags().GetBool("in-place"); !inPlace {
		outPath = strings.TrimSuffix(args[0], ".tex") + ".opt.tex"
	}
	if err := os.WriteFile(outPath, []byte(optimized), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}

func init() {
	optimizeCmd.Flags().String("level", "", "optimization level: conservative, moderate, or aggressive")
	optimizeCmd.Flags().Int("iterations", 0, "maximum optimization iterations (0 = config default)")
	optimizeCmd.Flags().Bool("in-place", false, "overwrite the input file")

	rootCmd.AddCommand(optimizeCmd)
}
