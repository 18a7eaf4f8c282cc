// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	c := Config{}.Normalize()

	if c.Backend != BackendPdflatex {
		t.Errorf("backend = %q, want pdflatex", c.Backend)
	}
	if c.OptimizationLevel != LevelModerate {
		t.Errorf("level = %q, want moderate", c.OptimizationLevel)
	}
	if c.MaxIterations != 3 || c.MaxRetries != 3 {
		t.Errorf("iterations/retries = %d/%d, want 3/3", c.MaxIterations, c.MaxRetries)
	}
	if c.CacheDir == "" {
		t.Error("cache dir not defaulted")
	}
	if c.HistoryPath != c.CacheDir+"/history.jsonl" {
		t.Errorf("history path = %q, want under cache dir", c.HistoryPath)
	}
	if c.MaxCacheSizeBytes != 1<<30 {
		t.Errorf("cache bound = %d, want 1 GiB", c.MaxCacheSizeBytes)
	}
	if c.CompileTimeout != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m", c.CompileTimeout)
	}
	if c.Workers != 4 {
		t.Errorf("workers = %d, want 4", c.Workers)
	}
	if c.Selector == (SelectorConfig{}) {
		t.Error("selector weights not defaulted")
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	c := Config{
		Backend:        BackendLualatex,
		MaxIterations:  7,
		CompileTimeout: time.Second,
		HistoryPath:    "/var/lib/latexforge/history.jsonl",
	}.Normalize()

	if c.Backend != BackendLualatex {
		t.Errorf("backend = %q, explicit value overwritten", c.Backend)
	}
	if c.MaxIterations != 7 {
		t.Errorf("iterations = %d, explicit value overwritten", c.MaxIterations)
	}
	if c.CompileTimeout != time.Second {
		t.Errorf("timeout = %v, explicit value overwritten", c.CompileTimeout)
	}
	if c.HistoryPath != "/var/lib/latexforge/history.jsonl" {
		t.Errorf("history path = %q, explicit value overwritten", c.HistoryPath)
	}
}

func TestNormalizeClampsWorkers(t *testing.T) {
	if got := (Config{Workers: 64}).Normalize().Workers; got != maxWorkers {
		t.Errorf("workers = %d, want clamped to %d", got, maxWorkers)
	}
	if got := (Config{Workers: -1}).Normalize().Workers; got != 4 {
		t.Errorf("workers = %d, want default 4", got)
	}
}

func TestConfigHash(t *testing.T) {
	base := DefaultConfig()

	if base.Hash() != DefaultConfig().Hash() {
		t.Error("identical configs produced different hashes")
	}

	changed := base
	changed.Backend = BackendXelatex
	if changed.Hash() == base.Hash() {
		t.Error("backend change did not change the hash")
	}

	changed = base
	changed.CompressPDF = true
	if changed.Hash() == base.Hash() {
		t.Error("compression change did not change the hash")
	}

	// Settings that cannot affect stage output leave the hash alone.
	changed = base
	changed.Workers = 9
	changed.CompileTimeout = time.Hour
	if changed.Hash() != base.Hash() {
		t.Error("execution-only settings must not invalidate cached stages")
	}
}

func TestStagesOrder(t *testing.T) {
	want := []Stage{StageNormalize, StagePreprocess, StageCompile, StagePostprocess, StageFinalize}
	got := Stages()
	if len(got) != len(want) {
		t.Fatalf("stages = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stages[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
