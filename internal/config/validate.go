// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"ouladload/internal/schema"
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
// Path is a dotted path into the config (e.g. "storage.kind", "plan[2].table").
// Message is human-readable.
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

// HasErrors reports whether any issue in the slice is severity error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// knownStorageKinds mirrors the backends wired in internal/storage/all.
// Kept local so validation does not depend on runtime registration state.
var knownStorageKinds = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
	"mysql":    {},
	"mssql":    {},
}

// knownTransforms mirrors the closed set dispatched by the transform package.
var knownTransforms = map[string]struct{}{
	"identity":         {},
	"impute_exam_date": {},
	"classify_score":   {},
}

var knownMetricsBackends = map[string]struct{}{
	"":            {},
	"none":        {},
	"pushgateway": {},
	"dogstatsd":   {},
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	p, err := config.FromFile(path)
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  `job is empty; runs will be labeled "oulad"`,
		})
	}

	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateLoad(p.Load)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validatePlan(p.Plan)...)

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	} else if _, ok := knownStorageKinds[s.Kind]; !ok {
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
			Message:  "storage requires a non-empty dsn",
		})
	}

	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if p.Kind != "" && p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; only \"csv\" is built in", p.Kind),
		})
	}

	if comma := p.Options.String("comma", ""); len([]rune(comma)) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma %q is longer than one character; only the first rune is used", comma),
		})
	}

	return issues
}

func validateLoad(l Load) []Issue {
	var issues []Issue

	if l.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "load.batch_size",
			Message:  fmt.Sprintf("batch_size must be >= 0, got %d", l.BatchSize),
		})
	}
	if len(l.Sources) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "load.sources",
			Message:  "no sources configured; they must be supplied on the command line",
		})
	}
	for i, src := range l.Sources {
		if strings.TrimSpace(src) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("load.sources[%d]", i),
				Message:  "source path must not be empty",
			})
		}
	}

	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	if _, ok := knownMetricsBackends[m.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	if m.Backend == "pushgateway" && strings.TrimSpace(m.PushgatewayURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.pushgateway_url",
			Message:  "pushgateway backend selected without a URL; the default http://localhost:9091 applies",
		})
	}
	if m.Backend == "dogstatsd" && strings.TrimSpace(m.DogstatsdAddr) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.dogstatsd_addr",
			Message:  "dogstatsd backend requires an agent address",
		})
	}

	return issues
}

func validatePlan(plan []PlanStep) []Issue {
	var issues []Issue

	seen := map[string]int{}
	for i, step := range plan {
		path := func(field string) string { return fmt.Sprintf("plan[%d].%s", i, field) }

		if strings.TrimSpace(step.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("table"),
				Message:  "table must not be empty",
			})
			continue
		}
		if _, ok := schema.Lookup(step.Table); !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("table"),
				Message:  fmt.Sprintf("unknown table %q; it has no schema definition", step.Table),
			})
		}
		if prev, dup := seen[step.Table]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("table"),
				Message:  fmt.Sprintf("table %q already planned at plan[%d]", step.Table, prev),
			})
		}
		seen[step.Table] = i

		if strings.TrimSpace(step.File) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("file"),
				Message:  "file must not be empty",
			})
		}

		if _, ok := knownTransforms[step.Transform]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("transform"),
				Message:  fmt.Sprintf("unknown transform %q", step.Transform),
			})
		}
		switch step.Transform {
		case "impute_exam_date":
			if step.Aux != "courses" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path("aux"),
					Message:  `impute_exam_date requires aux "courses"`,
				})
			}
		default:
			if step.Aux != "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path("aux"),
					Message:  fmt.Sprintf("transform %q ignores aux %q", step.Transform, step.Aux),
				})
			}
		}
	}

	return issues
}
