// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the latexforge CLI: an
// incremental LaTeX compilation engine with content-addressed caching,
// automated error recovery, and a learning document optimizer.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/meshintel/latexforge/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is constructed once in PersistentPreRunE and shared by every
// command.
var logger *zap.Logger

// rootCmd is the base command for the latexforge CLI.
var rootCmd = &cobra.Command{
	Use:   "latexforge",
	Short: "Incremental LaTeX compilation with caching and optimization",
	Long: `latexforge compiles LaTeX documents through a deterministic five-stage
pipeline (normalize, preprocess, compile, postprocess, finalize) with
content-addressed stage caching, so unchanged work is never redone.

Failed compilations are retried with automated fixes and backend
fallbacks. The optimize command rewrites documents using a catalog of
safe strategies, ranked by learned performance from compilation history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			logger, err = cfg.Build()
		}
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./latexforge.yaml or ~/.config/latexforge/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().String("cache-dir", "", "stage cache directory (default .latexforge-cache)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("latexforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "latexforge"))
		}
	}

	viper.SetEnvPrefix("LATEXFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig builds the engine configuration from defaults, config
// file, environment, and flags, in increasing precedence.
func engineConfig(cmd *cobra.Command) types.Config {
	cfg := types.DefaultConfig()

	if v := viper.GetString("backend"); v != "" {
		cfg.Backend = types.Backend(v)
	}
	if v := viper.GetString("optimization_level"); v != "" {
		cfg.OptimizationLevel = types.OptimizationLevel(v)
	}
	if v := viper.GetString("cache_dir"); v != "" {
		cfg.CacheDir = v
	}
	if v := viper.GetInt64("max_cache_size_bytes"); v > 0 {
		cfg.MaxCacheSizeBytes = v
	}
	if v := viper.GetInt("max_retries"); v > 0 {
		cfg.MaxRetries = v
	}
	if v := viper.GetInt("max_iterations"); v > 0 {
		cfg.MaxIterations = v
	}
	if v := viper.GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if viper.IsSet("enable_learning") {
		cfg.EnableLearning = viper.GetBool("enable_learning")
	}
	if viper.IsSet("compress_pdf") {
		cfg.CompressPDF = viper.GetBool("compress_pdf")
	}
	if v := viper.GetDuration("compile_timeout"); v > 0 {
		cfg.CompileTimeout = v
	}
	if v := viper.GetString("output_dir"); v != "" {
		cfg.OutputDir = v
	}

	if cmd != nil {
		if v, _ := cmd.Flags().GetString("backend"); v != "" {
			cfg.Backend = types.Backend(v)
		}
		if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
			cfg.OutputDir = v
		}
		if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
			cfg.CompileTimeout = v
		}
		if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
			cfg.Workers = v
		}
		if v, _ := rootCmd.PersistentFlags().GetString("cache-dir"); v != "" {
			cfg.CacheDir = v
		}
	}

	return cfg.Normalize()
}

// durationMS formats a duration as whole milliseconds for summaries.
func durationMS(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
