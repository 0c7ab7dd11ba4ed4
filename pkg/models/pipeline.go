package models

// Range is an inclusive integer matrix axis, {range: [lo, hi]}.
type Range struct {
	Lo int `yaml:"-"`
	Hi int `yaml:"-"`
}

// MatrixAxis is one named axis of a step or pipeline matrix: either an
// explicit list of values or a Range. Exactly one of Values/Range is set
// after UnmarshalYAML runs.
type MatrixAxis struct {
	Values []any
	Range  *Range
}

// Matrix is a set of named axes; expansion takes their Cartesian product
// with axes in alphabetical order of name. As a Go map it does not keep
// the document's declaration order of axes.
type Matrix map[string]MatrixAxis

// Schedule registers a Pipeline Configuration with the pipelines manager.
// Count=0 means unbounded, per spec.md section 4.4 point 6.
type Schedule struct {
	Cronspec string `yaml:"cronspec"`
	Count    int    `yaml:"count,omitempty"`
}

// Step is one entry of a Pipeline Configuration's `pipeline` mapping.
// Name is populated from the mapping key during parsing, not from a YAML
// field of its own.
type Step struct {
	Name    string `yaml:"-"`
	Stage   int    `yaml:"stage"`
	Work    Work   `yaml:"work"`
	Matrix  Matrix `yaml:"matrix,omitempty"`
	If      string `yaml:"if,omitempty"`
	RunsOn  string `yaml:"runs_on,omitempty"`
	Service string `yaml:"services,omitempty"`
}

// Reserved `if` literals, evaluated over the aggregate outcome of all
// steps in strictly earlier stages.
const (
	IfSuccess = "success"
	IfFailure = "failure"
	IfAlways  = "always"
)

// PipelineConfiguration is the declarative document the expander consumes.
type PipelineConfiguration struct {
	Version  string          `yaml:"version"`
	Name     string          `yaml:"name"`
	Defaults *Work           `yaml:"defaults,omitempty"`
	Matrix   Matrix          `yaml:"matrix,omitempty"`
	Schedule *Schedule       `yaml:"schedule,omitempty"`
	Pipeline map[string]Step `yaml:"pipeline"`
}
