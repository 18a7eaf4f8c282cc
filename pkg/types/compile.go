// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Backend identifies a LaTeX compiler executable.
type Backend string

const (
	BackendPdflatex Backend = "pdflatex"
	BackendXelatex  Backend = "xelatex"
	BackendLualatex Backend = "lualatex"
	BackendLatexmk  Backend = "latexmk"
)

// Capabilities describes what a backend can handle. Used when error
// recovery considers switching backends.
type Capabilities struct {
	// Unicode reports native UTF-8 input support.
	Unicode bool

	// SystemFonts reports access to OS-installed fonts via fontspec.
	SystemFonts bool
}

// BackendCapabilities returns the capability flags for a backend.
func BackendCapabilities(b Backend) Capabilities {
	switch b {
	case BackendXelatex, BackendLualatex:
		return Capabilities{Unicode: true, SystemFonts: true}
	case BackendLatexmk:
		// latexmk drives pdflatex by default.
		return Capabilities{}
	default:
		return Capabilities{}
	}
}

// Stage is one step of the five-stage compilation pipeline.
type Stage string

const (
	StageNormalize   Stage = "normalize"
	StagePreprocess  Stage = "preprocess"
	StageCompile     Stage = "compile"
	StagePostprocess Stage = "postprocess"
	StageFinalize    Stage = "finalize"
)

// Stages returns the pipeline stages in their fixed execution order.
// Stages execute strictly in this order; a stage may be skipped only
// via a cache hit, never reordered.
func Stages() []Stage {
	return []Stage{StageNormalize, StagePreprocess, StageCompile, StagePostprocess, StageFinalize}
}

// ErrorCategory classifies a backend diagnostic for recovery and for
// boosting strategies whose fix domain matches a recent failure.
type ErrorCategory string

const (
	CatUndefinedCommand   ErrorCategory = "undefined_command"
	CatUndefinedReference ErrorCategory = "undefined_reference"
	CatMissingFile        ErrorCategory = "missing_file"
	CatMissingPackage     ErrorCategory = "missing_package"
	CatUnbalanced         ErrorCategory = "unbalanced_structure"
	CatFontEncoding       ErrorCategory = "font_encoding"
	CatUnknown            ErrorCategory = "unknown"
)

// Severity distinguishes fatal errors from warnings in diagnostics.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CompilationError is one structured diagnostic from the backend or a
// pipeline stage.
type CompilationError struct {
	Severity Severity      `json:"severity"`
	Category ErrorCategory `json:"category,omitempty"`
	Message  string        `json:"message"`

	// Line is the 1-based source line, 0 when unknown.
	Line int `json:"line,omitempty"`

	// Suggestion is a proposed fix, when the recovery engine has one.
	Suggestion string `json:"suggestion,omitempty"`

	// FixApplied describes an automatic fix that was applied for this
	// error during recovery, empty otherwise.
	FixApplied string `json:"fix_applied,omitempty"`
}

// StageResult records the outcome of one pipeline stage execution.
type StageResult struct {
	Stage      Stage              `json:"stage"`
	Success    bool               `json:"success"`
	Duration   time.Duration      `json:"duration"`
	OutputHash string             `json:"output_hash"`
	CacheHit   bool               `json:"cache_hit"`
	Errors     []CompilationError `json:"errors,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// StageReceipt is the persisted per-stage entry of a Receipt.
type StageReceipt struct {
	OutputHash string `json:"output_hash"`
	DurationMS int64  `json:"duration_ms"`
}

// Receipt is the immutable cryptographic proof binding a specific input
// to a specific output through the pipeline. It is created once per
// successful run and never mutated.
type Receipt struct {
	InputHash   string                  `json:"input_hash"`
	OutputHash  string                  `json:"output_hash"`
	Stages      map[string]StageReceipt `json:"stages"`
	Timestamp   string                  `json:"timestamp"`
	Backend     Backend                 `json:"backend"`
	ToolVersion string                  `json:"tool_version"`
}

// CompilationResult is the caller-visible outcome of a full pipeline run.
type CompilationResult struct {
	Success      bool               `json:"success"`
	ArtifactPath string             `json:"artifact_path,omitempty"`
	Backend      Backend            `json:"backend"`
	Errors       []CompilationError `json:"errors,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	StageResults []StageResult      `json:"stage_results,omitempty"`
	Receipt      *Receipt           `json:"receipt,omitempty"`

	// Incremental reports whether any stage was satisfied from cache.
	Incremental bool `json:"incremental"`
}

// ErrorStrings flattens the error list to plain messages, for history
// records.
func (r CompilationResult) ErrorStrings() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}
