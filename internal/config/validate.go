// Package config provides configuration models and helpers for the pipeline.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "datasets.business.input"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline (callers typically run Normalize first).
// Instead it returns a slice of Issue values. Callers may decide whether to
// treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}

	issues = append(issues, validateDataset("datasets.business", p.Datasets.Business)...)
	issues = append(issues, validateDataset("datasets.review", p.Datasets.Review)...)

	if p.SampleSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sample_size",
			Message:  "sample_size must not be negative",
		})
	}

	issues = append(issues, validateMerge(p.Merge)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateReport(p.Report)...)

	if strings.TrimSpace(p.IntermediateDir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "intermediate_dir",
			Message:  "intermediate_dir must not be empty; the cleanup stage clears it",
		})
	} else {
		// Every intermediate artifact must live under the directory the
		// cleanup stage clears, or it will be left behind.
		for _, out := range []struct {
			path, at string
		}{
			{p.Datasets.Business.Output, "datasets.business.output"},
			{p.Datasets.Review.Output, "datasets.review.output"},
			{p.Merge.Output, "merge.output"},
		} {
			if out.path == "" {
				continue
			}
			if !within(p.IntermediateDir, out.path) {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     out.at,
					Message:  fmt.Sprintf("%q is outside intermediate_dir %q and will not be cleaned up", out.path, p.IntermediateDir),
				})
			}
		}
	}

	if p.Runtime.Retries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.retries",
			Message:  "runtime.retries must not be negative",
		})
	}

	return issues
}

// validateDataset validates one sampled dataset configuration.
func validateDataset(path string, d Dataset) []Issue {
	var issues []Issue
	if strings.TrimSpace(d.Input) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".input",
			Message:  "dataset requires a non-empty NDJSON input path",
		})
	}
	if strings.TrimSpace(d.Output) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".output",
			Message:  "dataset requires a non-empty CSV output path",
		})
	}
	return issues
}

// validateMerge validates the merge stage configuration.
func validateMerge(m Merge) []Issue {
	var issues []Issue
	if strings.TrimSpace(m.Output) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "merge.output",
			Message:  "merge requires a non-empty output path",
		})
	}
	if m.MaxRows < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "merge.max_rows",
			Message:  "merge.max_rows must not be negative",
		})
	}
	if m.TextLimit < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "merge.text_limit",
			Message:  "merge.text_limit must not be negative",
		})
	}
	return issues
}

// validateStorage validates storage configuration.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	// Known storage kinds. Unknown kinds are warnings (for forward
	// compatibility); the factory will reject them at runtime if no backend
	// registered.
	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	return issues
}

// validateReport validates the report stage configuration.
func validateReport(r Report) []Issue {
	var issues []Issue
	if r.Limit < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.limit",
			Message:  "report.limit must not be negative",
		})
	}
	if strings.TrimSpace(r.Chart) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "report.chart",
			Message:  "report.chart is empty; the chart rendering step will be skipped",
		})
	}
	return issues
}

// within reports whether path is lexically inside dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
