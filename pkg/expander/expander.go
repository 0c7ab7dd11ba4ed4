package expander

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// Expand runs the algorithm of spec.md section 4.4 against an already
// parsed configuration: effective-default layering, matrix expansion,
// token substitution, and stage grouping. Validation errors accumulate
// and are returned together, never as the first thrown error (spec.md
// section 4.4, final paragraph).
func Expand(cfg *models.PipelineConfiguration, workspace *models.Workspace) ([]StageGroup, []error) {
	var errs []error

	stepNames := make([]string, 0, len(cfg.Pipeline))
	for name := range cfg.Pipeline {
		stepNames = append(stepNames, name)
	}
	sort.Strings(stepNames)

	byStage := map[int][]ExpandedStep{}
	for _, name := range stepNames {
		step := cfg.Pipeline[name]

		axes, err := mergedAxes(cfg.Matrix, step.Matrix)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %q: %w", name, err))
			continue
		}

		effective := effectiveWork(cfg.Defaults, &step.Work, workspace)
		order := axisOrder(axes)
		assignments := cartesianProduct(axes, order)

		work := make([]*models.Work, 0, len(assignments))
		for _, assignment := range assignments {
			w, err := substituteWork(effective, assignment)
			if err != nil {
				errs = append(errs, fmt.Errorf("step %q: %w", name, err))
				continue
			}
			if workspace != nil && w.Site != "" && !workspace.AllowsSite(w.Site) {
				errs = append(errs, fmt.Errorf("step %q: site %q not in workspace.sites", name, w.Site))
				continue
			}
			work = append(work, w)
		}

		byStage[step.Stage] = append(byStage[step.Stage], ExpandedStep{
			Name:  name,
			Stage: step.Stage,
			If:    step.If,
			Work:  work,
		})
	}

	stages := make([]int, 0, len(byStage))
	for s := range byStage {
		stages = append(stages, s)
	}
	sort.Ints(stages)

	groups := make([]StageGroup, 0, len(stages))
	for _, s := range stages {
		steps := byStage[s]
		sort.Slice(steps, func(i, j int) bool { return steps[i].Name < steps[j].Name })
		groups = append(groups, StageGroup{Stage: s, Steps: steps})
	}

	return groups, errs
}

// substituteWork applies matrix substitution to every string-bearing
// field of a Work template, per spec.md section 4.4 point 4.
func substituteWork(tmpl models.Work, assignment map[string]any) (*models.Work, error) {
	lookup := matrixLookup(assignment)
	out := tmpl

	if v, err := substituteString(tmpl.Pipeline, lookup); err == nil {
		if s, ok := v.(string); ok {
			out.Pipeline = s
		}
	}
	if v, err := substituteString(tmpl.Site, lookup); err == nil {
		if s, ok := v.(string); ok {
			out.Site = s
		}
	}
	if v, err := substituteString(tmpl.Function, lookup); err == nil {
		if s, ok := v.(string); ok {
			out.Function = s
		}
	}

	if len(tmpl.Command) > 0 {
		cmd := make([]string, len(tmpl.Command))
		for i, arg := range tmpl.Command {
			v, err := substituteString(arg, lookup)
			if err != nil {
				return nil, err
			}
			cmd[i] = fmt.Sprintf("%v", v)
		}
		out.Command = cmd
	}

	if len(tmpl.Parameters) > 0 {
		// `${{ pipeline.<step>.<field> }}` tokens are kept as written for
		// ResolvePipelineReferences to fill in between stages.
		paramLookup := func(expr string) (any, bool) {
			if v, ok := lookup(expr); ok {
				return v, true
			}
			if strings.HasPrefix(expr, "pipeline.") {
				return "${{ " + expr + " }}", true
			}
			return nil, false
		}
		sub, err := substituteValue(map[string]any(tmpl.Parameters), paramLookup)
		if err != nil {
			return nil, err
		}
		out.Parameters = sub.(map[string]any)
	}

	return &out, nil
}

// ResolvePipelineReferences re-substitutes `${{ pipeline.<step>.<field> }}`
// tokens in an already-expanded Work once earlier stages have terminal
// outcomes. Called by the stage-by-stage depositor between stages, since
// those tokens cannot resolve at the time the owning stage was expanded.
func ResolvePipelineReferences(w *models.Work, outcomes map[string]StepOutcome) error {
	lookup := chainedLookup(nil, outcomes)

	if v, err := substituteString(w.Site, lookup); err == nil {
		if s, ok := v.(string); ok {
			w.Site = s
		}
	}
	if len(w.Parameters) > 0 {
		sub, err := substituteValue(map[string]any(w.Parameters), lookup)
		if err != nil {
			return err
		}
		w.Parameters = sub.(map[string]any)
	}
	return nil
}

// Gate evaluates a step's `if` condition against the outcomes of every
// step in strictly earlier stages, per spec.md section 4.4 point 5.
func Gate(condition string, outcomes map[string]StepOutcome) bool {
	if condition == "" || condition == models.IfSuccess {
		return allSucceeded(outcomes)
	}
	switch condition {
	case models.IfFailure:
		return anyFailed(outcomes)
	case models.IfAlways:
		return true
	default:
		// A non-reserved expression over the pipeline execution
		// context; resolved the same way `${{ pipeline.x.y }}` tokens
		// are, then interpreted for truthiness.
		lookup := pipelineLookup(outcomes)
		v, ok := lookup(condition)
		if !ok {
			return false
		}
		return truthy(v)
	}
}

func allSucceeded(outcomes map[string]StepOutcome) bool {
	for _, o := range outcomes {
		if o.Status != models.StatusSuccess {
			return false
		}
	}
	return true
}

func anyFailed(outcomes map[string]StepOutcome) bool {
	for _, o := range outcomes {
		if o.Status == models.StatusFailure {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "0" && val != "false"
	case nil:
		return false
	default:
		return true
	}
}
