package expander

import (
	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/runner"
)

// effectiveWork layers defaults -> step.Work with leaf-right-wins
// (spec.md section 4.4 point 2). Scalar zero values in step are treated
// as "not overridden", matching the deep-merge semantics Design Notes
// section 9 specifies for maps generalized to the whole template.
//
// archive mode resolution falls Work -> defaults -> workspace ->
// DefaultArchiveMode, so a step that never names a plots/products/results
// policy still leaves with a non-bypass one (spec.md section 6); without
// this, an unconfigured archive mode reaches the Transfer daemon as the
// zero value and aborts its whole batch as a policy violation.
func effectiveWork(defaults, step *models.Work, workspace *models.Workspace) models.Work {
	if defaults == nil {
		out := *step
		applyArchiveDefaults(&out, workspace)
		return out
	}

	out := *defaults

	if step.Pipeline != "" {
		out.Pipeline = step.Pipeline
	}
	if step.Site != "" {
		out.Site = step.Site
	}
	if step.User != "" {
		out.User = step.User
	}
	if step.Function != "" {
		out.Function = step.Function
	}
	if len(step.Command) > 0 {
		out.Command = step.Command
	}
	if len(step.Parameters) > 0 {
		out.Parameters = runner.DeepMerge(defaults.Parameters, step.Parameters)
	}
	if step.Timeout != 0 {
		out.Timeout = step.Timeout
	}
	if step.Retries != 0 {
		out.Retries = step.Retries
	}
	if step.Priority != 0 {
		out.Priority = step.Priority
	}
	if len(step.Event) > 0 {
		out.Event = step.Event
	}
	if len(step.Tags) > 0 {
		out.Tags = step.Tags
	}
	if len(step.Group) > 0 {
		out.Group = step.Group
	}
	if step.Config.Archive.Results != "" {
		out.Config.Archive.Results = step.Config.Archive.Results
	}
	if step.Config.Archive.Plots != "" {
		out.Config.Archive.Plots = step.Config.Archive.Plots
	}
	if step.Config.Archive.Products != "" {
		out.Config.Archive.Products = step.Config.Archive.Products
	}
	if step.Notify.Slack.Channel != "" {
		out.Notify = step.Notify
	}

	applyArchiveDefaults(&out, workspace)
	return out
}

// applyArchiveDefaults fills any archive mode left unset after the
// defaults/step merge from the workspace's config.archive policy, then
// from DefaultArchiveMode if the workspace leaves it unset too.
func applyArchiveDefaults(w *models.Work, workspace *models.Workspace) {
	var wsArchive models.WorkspaceArchiveConfig
	if workspace != nil {
		wsArchive = workspace.Config.Archive
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
