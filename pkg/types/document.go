// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared value types for the compilation engine.
// All types here are plain values: transformations produce new values
// rather than mutating in place, which is what makes optimization
// rollback trivial to enforce.
package types

import "time"

// DocumentType classifies a LaTeX document for strategy selection.
type DocumentType string

const (
	DocArticle      DocumentType = "article"
	DocBook         DocumentType = "book"
	DocReport       DocumentType = "report"
	DocThesis       DocumentType = "thesis"
	DocPresentation DocumentType = "presentation"
	DocLetter       DocumentType = "letter"
	DocUnknown      DocumentType = "unknown"
)

// OptimizationLevel controls how aggressive the optimizer is allowed to be.
type OptimizationLevel string

const (
	LevelConservative OptimizationLevel = "conservative"
	LevelModerate     OptimizationLevel = "moderate"
	LevelAggressive   OptimizationLevel = "aggressive"
)

// Section is one sectioning command found in the source, in document order.
type Section struct {
	// Level is the sectioning depth: 0 for \chapter, 1 for \section,
	// 2 for \subsection, 3 for \subsubsection.
	Level int `json:"level"`

	// Title is the section heading text.
	Title string `json:"title"`

	// Line is the 1-based source line of the sectioning command.
	Line int `json:"line"`
}

// Package is one \usepackage declaration.
type Package struct {
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
	Line    int      `json:"line"`
}

// Macro is one \newcommand definition.
type Macro struct {
	Name string `json:"name"`

	// Args is the declared argument count, 0 for parameterless macros.
	Args int `json:"args"`

	// Body is the replacement text.
	Body string `json:"body"`

	Line int `json:"line"`
}

// SourceDocument is the parsed form of one LaTeX source. It is immutable
// once built; optimization steps supersede it with a new value.
type SourceDocument struct {
	// Raw is the full source text the document was parsed from.
	Raw string `json:"-"`

	// Class is the \documentclass name, empty when absent.
	Class        string   `json:"class"`
	ClassOptions []string `json:"class_options,omitempty"`

	Sections []Section `json:"sections,omitempty"`
	Packages []Package `json:"packages,omitempty"`
	Macros   []Macro   `json:"macros,omitempty"`

	EquationCount int `json:"equation_count"`
	FigureCount   int `json:"figure_count"`
	TableCount    int `json:"table_count"`
	CitationCount int `json:"citation_count"`

	// Labels maps \label keys to their source line.
	Labels map[string]int `json:"labels,omitempty"`

	// Refs lists every \ref/\eqref/\pageref target, with repeats.
	Refs []string `json:"refs,omitempty"`

	// BibFiles lists bibliography databases from \bibliography commands.
	BibFiles []string `json:"bib_files,omitempty"`

	// NeedsIndex reports whether the document requests index generation.
	NeedsIndex bool `json:"needs_index,omitempty"`

	// Includes lists \input/\include targets for dependency tracking.
	Includes []string `json:"includes,omitempty"`

	// Problems collects malformed constructs found during parsing.
	// Parsing never fails; it records what it could not make sense of.
	Problems []string `json:"problems,omitempty"`
}

// PackageNames returns the declared package names in declaration order,
// with repeats preserved.
func (d *SourceDocument) PackageNames() []string {
	names := make([]string, len(d.Packages))
	for i, p := range d.Packages {
		names[i] = p.Name
	}
	return names
}

// DocumentComplexity summarizes how hard a document is to compile.
// It is a derived value, recomputed whenever the document changes.
type DocumentComplexity struct {
	TotalLines    int `json:"total_lines"`
	EquationCount int `json:"equation_count"`
	FigureCount   int `json:"figure_count"`
	TableCount    int `json:"table_count"`
	CitationCount int `json:"citation_count"`
	PackageCount  int `json:"package_count"`
	MacroCount    int `json:"macro_count"`
	NestingDepth  int `json:"nesting_depth"`
	FloatCount    int `json:"float_count"`
	CrossRefCount int `json:"cross_ref_count"`

	// Score is the weighted complexity score, bounded to [0, 100].
	Score float64 `json:"score"`

	Type DocumentType `json:"type"`

	// RedundantPackages lists packages declared more than once.
	RedundantPackages []string `json:"redundant_packages,omitempty"`

	// ObsoletePackages lists packages superseded by modern equivalents.
	ObsoletePackages []string `json:"obsolete_packages,omitempty"`

	// ConflictingPackages lists pairs known to fight with each other.
	ConflictingPackages [][2]string `json:"conflicting_packages,omitempty"`

	ProblematicConstructs []string `json:"problematic_constructs,omitempty"`
}

// CompilationStatus is the terminal outcome of one compilation attempt.
type CompilationStatus string

const (
	StatusSuccess CompilationStatus = "success"
	StatusError   CompilationStatus = "error"
	StatusWarning CompilationStatus = "warning"
	StatusTimeout CompilationStatus = "timeout"
)

// CompilationRecord is one append-only history entry. Records are the
// sole input to strategy learning.
type CompilationRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	DocumentHash string            `json:"document_hash"`
	DocumentType DocumentType      `json:"document_type"`
	Status       CompilationStatus `json:"status"`
	CompileTime  time.Duration     `json:"compile_time"`
	Strategy     string            `json:"strategy,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
}

// StrategyPerformance aggregates outcomes for one optimization strategy.
// It is updated incrementally from the CompilationRecord stream.
type StrategyPerformance struct {
	Strategy       string               `json:"strategy" yaml:"strategy"`
	SuccessCount   int                  `json:"success_count" yaml:"success_count"`
	FailureCount   int                  `json:"failure_count" yaml:"failure_count"`
	AvgImprovement float64              `json:"avg_improvement" yaml:"avg_improvement"`
	LastUsed       time.Time            `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	DocumentTypes  map[DocumentType]int `json:"document_types,omitempty" yaml:"document_types,omitempty"`
}

// SuccessRate returns the fraction of recorded uses that succeeded,
// or 0 when the strategy has never been used.
func (p StrategyPerformance) SuccessRate() float64 {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total)
}
