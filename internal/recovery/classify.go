// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recovery turns raw TeX logs into classified diagnostics and
// drives the bounded retry loop that applies automated fixes between
// compilation attempts.
package recovery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/meshintel/latexforge/pkg/types"
)

var (
	errorLinePattern  = regexp.MustCompile(`(?m)^!\s*(.+)$`)
	sourceLinePattern = regexp.MustCompile(`l\.(\d+)`)
	warningPattern    = regexp.MustCompile(`(?m)^(?:LaTeX|Package \w+) Warning:\s*(.+)$`)
	boxPattern        = regexp.MustCompile(`(?m)^((?:Overfull|Underfull) \\[hv]box[^\n]*)$`)
	rerunPattern      = regexp.MustCompile(`Rerun to get|Label\(s\) may have changed`)

	missingFilePattern    = regexp.MustCompile(`File \x60([^']+)' not found`)
	missingPackagePattern = regexp.MustCompile(`\x60?([\w-]+)\.sty'? not found`)
	undefinedRefPattern   = regexp.MustCompile(`Reference \x60([^']+)' (?:undefined|on page)`)
)

// Categorize maps one diagnostic message onto an error category.
func Categorize(message string) types.ErrorCategory {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(message, "Undefined control sequence"):
		return types.CatUndefinedCommand
	case strings.Contains(lower, "undefined reference"),
		strings.Contains(message, "Citation"),
		undefinedRefPattern.MatchString(message):
		return types.CatUndefinedReference
	case missingPackagePattern.MatchString(message):
		return types.CatMissingPackage
	case strings.Contains(lower, "file") && strings.Contains(lower, "not found"):
		return types.CatMissingFile
	case strings.Contains(lower, "missing $"),
		strings.Contains(lower, "missing }"),
		strings.Contains(lower, "missing {"),
		strings.Contains(lower, "extra }"),
		strings.Contains(lower, "runaway argument"),
		strings.Contains(message, `\begin{`) && strings.Contains(message, "ended by"):
		return types.CatUnbalanced
	case strings.Contains(lower, "font"),
		strings.Contains(lower, "encoding"),
		strings.Contains(lower, "inputenc"),
		strings.Contains(lower, "unicode"):
		return types.CatFontEncoding
	default:
		return types.CatUnknown
	}
}

// suggestion returns remediation advice for a category, empty when
// nothing useful can be said.
func suggestion(cat types.ErrorCategory, message string) string {
	switch cat {
	case types.CatUndefinedCommand:
		return "define the command or load the package that provides it"
	case types.CatUndefinedReference:
		if m := undefinedRefPattern.FindStringSubmatch(message); m != nil {
			return "define the label " + m[1] + " or rerun to resolve references"
		}
		return "check the label name or rerun to resolve references"
	case types.CatMissingFile:
		if m := missingFilePattern.FindStringSubmatch(message); m != nil {
			return "ensure " + m[1] + " exists relative to the document"
		}
		return "ensure the referenced file exists relative to the document"
	case types.CatMissingPackage:
		if m := missingPackagePattern.FindStringSubmatch(message); m != nil {
			return "install the " + m[1] + " package"
		}
		return "install the missing package"
	case types.CatUnbalanced:
		return "check for unbalanced braces or environments near the reported line"
	case types.CatFontEncoding:
		return "switch to a unicode-capable backend such as xelatex"
	default:
		return ""
	}
}

// Parse extracts classified errors from a TeX log. Each "! ..." line
// becomes one error; the nearest following "l.<n>" marker supplies the
// source line.
func Parse(log string) []types.CompilationError {
	var out []types.CompilationError

	matches := errorLinePattern.FindAllStringSubmatchIndex(log, -1)
	for i, m := range matches {
		message := strings.TrimSpace(log[m[2]:m[3]])

		// Look for the line marker between this error and the next.
		end := len(log)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		line := 0
		if lm := sourceLinePattern.FindStringSubmatch(log[m[1]:end]); lm != nil {
			line, _ = strconv.Atoi(lm[1])
		}

		cat := Categorize(message)
		out = append(out, types.CompilationError{
			Severity:   types.SeverityError,
			Category:   cat,
			Message:    message,
			Line:       line,
			Suggestion: suggestion(cat, message),
		})
	}
	return out
}

// Warnings extracts LaTeX and package warnings from a log.
func Warnings(log string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range warningPattern.FindAllStringSubmatch(log, -1) {
		w := strings.TrimSpace(m[1])
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, m := range boxPattern.FindAllStringSubmatch(log, -1) {
		w := strings.TrimSpace(m[1])
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// NeedsRerun reports whether the log asks for another pass to settle
// cross-references or the table of contents.
func NeedsRerun(log string) bool {
	return rerunPattern.MatchString(log)
}
