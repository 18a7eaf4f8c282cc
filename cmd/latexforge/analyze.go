package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshintel/latexforge/internal/engine"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Score a document's complexity without compiling it",
	Long: `Analyze parses the document and reports its structure (sections,
equations, figures, tables, packages, macros), a bounded complexity
score, the inferred document type, and any detected problems: redundant,
obsolete, or conflicting packages and fragile constructs.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := engineConfig(cmd)
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	doc, complexity := eng.Analyze(string(raw))

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(complexity)
	}

	fmt.Printf("type:        %s\n", complexity.Type)
	fmt.Printf("class:       %s\n", doc.Class)
	fmt.Printf("complexity:  %.1f\n", complexity.Score)
	fmt.Printf("sections:    %d\n", len(doc.Sections))
	fmt.Printf("equations:   %d\n", complexity.EquationCount)
	fmt.Printf("figures:     %d\n", complexity.FigureCount)
	fmt.Printf("tables:      %d\n", complexity.TableCount)
	fmt.Printf("packages:    %d\n", complexity.PackageCount)
	fmt.Printf("macros:      %d\n", complexity.MacroCount)
	fmt.Printf("citations:   %d\n", complexity.CitationCount)

	for _, p := range complexity.ObsoletePackages {
		fmt.Printf("obsolete package: %s\n", p)
	}
	for _, p := range complexity.RedundantPackages {
		fmt.Printf("redundant package: %s\n", p)
	}
	for _, pair := range complexity.ConflictingPackages {
		fmt.Printf("conflicting packages: %s and %s\n", pair[0], pair[1])
	}
	for _, c := range complexity.ProblematicConstructs {
		fmt.Printf("problematic: %s\n", c)
	}
	for _, p := range doc.Problems {
		fmt.Printf("problem: %s\n", p)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "output the analysis as JSON")

	rootCmd.AddCommand(analyzeCmd)
}
