package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshintel/latexforge/internal/learn"
	"github.com/meshintel/latexforge/pkg/types"
)

// historyKeep is how many records compaction retains.
const historyKeep = 1000

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the compilation history",
	Long: `History manages the append-only compilation record log that feeds
strategy learning. Use show for recent records, performance for
per-strategy aggregates, export for a YAML dump, and compact to trim
the log to its newest records.`,
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List recent compilation records",
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	records := store.Records()
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if len(records) == 0 {
		fmt.Println("no history")
		return nil
	}
	for _, rec := range records {
		strategy := rec.Strategy
		if strategy == "" {
			strategy = "-"
		}
		fmt.Printf("%s  %-8s %-12s %-28s %s\n",
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Status, rec.DocumentType, strategy, durationMS(rec.CompileTime))
	}
	return nil
}

var historyPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show per-strategy success rates",
	RunE:  runHistoryPerformance,
}

func runHistoryPerformance(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	learner := learn.NewLearner(store)

	docType, _ := cmd.Flags().GetString("type")
	ranking := learner.Ranking(types.DocumentType(docType))
	if len(ranking) == 0 {
		fmt.Println("no strategy history")
		return nil
	}

	fmt.Printf("%-28s %-8s %-8s %s\n", "strategy", "success", "failure", "rate")
	for _, p := range ranking {
		fmt.Printf("%-28s %-8d %-8d %.2f\n",
			p.Strategy, p.SuccessCount, p.FailureCount, p.SuccessRate())
	}
	return nil
}

var historyExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export strategy performance aggregates as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	learner := learn.NewLearner(store)

	path := "performance.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := learner.ExportYAML(path); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

var historyCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Trim the history to its newest records",
	RunE:  runHistoryCompact,
}

func runHistoryCompact(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	keep, _ := cmd.Flags().GetInt("keep")
	before := len(store.Records())
	if err := store.Compact(keep); err != nil {
		return err
	}
	fmt.Printf("kept %d of %d records\n", len(store.Records()), before)
	return nil
}

func openHistory(cmd *cobra.Command) (*learn.HistoryStore, error) {
	cfg := engineConfig(cmd)
	return learn.OpenHistory(cfg.HistoryPath, logger)
}

func init() {
	historyShowCmd.Flags().Int("limit", 20, "number of records to show (0 = all)")
	historyPerformanceCmd.Flags().String("type", "", "rank for a document type: article, book, thesis, ...")
	historyCompactCmd.Flags().Int("keep", historyKeep, "records to retain")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPerformanceCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyCompactCmd)

	rootCmd.AddCommand(historyCmd)
}
