// Package validate implements the Work Validator of spec.md section 4.1:
// schema rules, the function/command XOR discriminant, pipeline-name
// normalization, site resolution, default population, and the two
// configured strategies (strict, relaxed).
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// Strategy selects how violations are handled.
type Strategy int

const (
	// Strict rejects on any violation.
	Strict Strategy = iota
	// Relaxed keeps w.Extra's unrecognized fields (populated at decode
	// time by models.Work's UnmarshalJSON/yaml inline tag) and downgrades
	// all but the XOR/site violations -- including unknown-field ones --
	// to warnings, returning a best-effort Work.
	Relaxed
)

// Violation is one rule failure, aggregated rather than returned as the
// first thrown error (spec.md section 4.1).
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Reason)
}

// Error is the Validation error of spec.md section 7: rejected input,
// surfaced to the caller, never retried.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var pipelineNameDisallowed = regexp.MustCompile(`[^a-z0-9-]`)
var structValidator = validator.New()

type workConstraints struct {
	Timeout  int `validate:"min=1,max=86400"`
	Retries  int `validate:"min=0,max=5"`
	Priority int `validate:"min=1,max=5"`
}

// Validator applies the rules above against a single workspace.
type Validator struct {
	workspace *models.Workspace
	strategy  Strategy
}

// New builds a Validator bound to workspace (for site resolution) and a
// strategy, configured per ingestion point per spec.md section 4.1.
func New(workspace *models.Workspace, strategy Strategy) *Validator {
	return &Validator{workspace: workspace, strategy: strategy}
}

// Validate applies schema rules, normalizes the pipeline name, resolves
// site, fills defaults, and stamps Creation. It returns the (possibly
// defaulted) Work, any warnings produced along the way, and an *Error
// aggregating every violation when strict or when a XOR/site rule fails.
func (v *Validator) Validate(w *models.Work) (*models.Work, []string, error) {
	var violations []Violation
	var warnings []string

	v.applyDefaults(w)

	normalized, renamed := normalizePipeline(w.Pipeline)
	if renamed {
		warnings = append(warnings, fmt.Sprintf("pipeline name rewritten: %q -> %q", w.Pipeline, normalized))
	}
	w.Pipeline = normalized
	if w.Pipeline == "" {
		violations = append(violations, Violation{"pipeline", "required"})
	}

	hasFn, hasCmd := w.Function != "", len(w.Command) > 0
	if hasFn == hasCmd {
		violations = append(violations, Violation{"function/command", "exactly one of function or command must be set"})
	}

	if v.workspace != nil && !v.workspace.AllowsSite(w.Site) {
		violations = append(violations, Violation{"site", fmt.Sprintf("%q is not in workspace.sites", w.Site)})
	}

	for field := range w.Extra {
		violations = append(violations, Violation{field, "unknown field"})
	}

	constraints := workConstraints{Timeout: w.Timeout, Retries: w.Retries, Priority: w.Priority}
	if err := structValidator.Struct(constraints); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			violations = append(violations, Violation{strings.ToLower(fe.Field()), fe.Tag()})
		}
	}

	if w.Creation == 0 {
		w.Creation = float64(time.Now().UnixNano()) / 1e9
	}

	switch v.strategy {
	case Strict:
		if len(violations) > 0 {
			return w, warnings, &Error{Violations: violations}
		}
		return w, warnings, nil
	default: // Relaxed
		var fatal []Violation
		for _, viol := range violations {
			switch viol.Field {
			case "function/command", "site":
				fatal = append(fatal, viol)
			default:
				warnings = append(warnings, viol.String())
			}
		}
		if len(fatal) > 0 {
			return w, warnings, &Error{Violations: fatal}
		}
		return w, warnings, nil
	}
}

// applyDefaults fills execution-control defaults and, per spec.md
// section 6, the archive mode of every artifact class left unset: Work
// -> workspace.config.archive -> DefaultArchiveMode. Without the latter
// fallback, an unconfigured archive mode survives validation as "" and
// later aborts the Transfer daemon's whole batch as a policy violation
// instead of archiving under a sane default.
func (v *Validator) applyDefaults(w *models.Work) {
	if w.Timeout == 0 {
		w.Timeout = models.DefaultTimeout
	}
	if w.Priority == 0 {
		w.Priority = models.DefaultPriority
	}
	if w.Retries == 0 {
		w.Retries = models.DefaultRetries
	}

	var wsArchive models.WorkspaceArchiveConfig
	if v.workspace != nil {
		wsArchive = v.workspace.Config.Archive
	}
	if w.Config.Archive.Plots == "" {
		w.Config.Archive.Plots = wsArchive.Plots
	}
	if w.Config.Archive.Plots == "" {
		w.Config.Archive.Plots = models.DefaultArchiveMode
	}
	if w.Config.Archive.Products == "" {
		w.Config.Archive.Products = wsArchive.Products
	}
	if w.Config.Archive.Products == "" {
		w.Config.Archive.Products = models.DefaultArchiveMode
	}
	if w.Config.Archive.Results == "" {
		w.Config.Archive.Results = wsArchive.Results
	}
	if w.Config.Archive.Results == "" {
		w.Config.Archive.Results = models.DefaultArchiveMode
	}
}

// normalizePipeline lowercases, maps '_' to '-', and strips any
// remaining disallowed character, returning whether a rewrite occurred.
func normalizePipeline(name string) (string, bool) {
	lowered := strings.ToLower(name)
	replaced := strings.ReplaceAll(lowered, "_", "-")
	stripped := pipelineNameDisallowed.ReplaceAllString(replaced, "")
	stripped = strings.Trim(stripped, "-")
	return stripped, stripped != name
}
