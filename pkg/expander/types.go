package expander

import "github.com/chime-frb/workflow-go/pkg/models"

// StepOutcome is the execution-time result of one step, available to
// later stages via `${{ pipeline.<step>.<field> }}` tokens and to `if`
// gating via its Status.
type StepOutcome struct {
	Status  models.Status
	Results map[string]any
}

// ExpandedStep is one step's materialized Work items, still grouped
// under their originating step and stage for gating and deposit.
type ExpandedStep struct {
	Name  string
	Stage int
	If    string
	Work  []*models.Work
}

// StageGroup is every step sharing one stage, sorted by step name. The
// configuration's `pipeline` mapping is decoded into a Go map, so the
// document's declaration order of steps is not preserved.
type StageGroup struct {
	Stage int
	Steps []ExpandedStep
}
