package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshintel/latexforge/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the stage cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and total size",
	RunE:  runCacheStats,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stat(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("entries: %d\n", stats.Entries)
	fmt.Printf("size:    %.1f MiB\n", float64(stats.TotalBytes)/(1<<20))
	for stage, n := range stats.ByStage {
		fmt.Printf("  %-12s %d\n", stage, n)
	}
	return nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached stage result",
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if stage, _ := cmd.Flags().GetString("stage"); stage != "" {
		if err := store.InvalidateStage(context.Background(), stage); err != nil {
			return err
		}
		fmt.Printf("cleared %s entries\n", stage)
		return nil
	}
	if err := store.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("cache cleared")
	return nil
}

func openCache(cmd *cobra.Command) (*cache.Store, error) {
	cfg := engineConfig(cmd)
	return cache.NewStore(cfg.CacheDir, cfg.MaxCacheSizeBytes, logger)
}

func init() {
	cacheClearCmd.Flags().String("stage", "", "clear only one stage's entries")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(cacheCmd)
}
