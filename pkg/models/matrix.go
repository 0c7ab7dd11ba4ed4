package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// rangeSpec is the wire shape of {range: [lo, hi]}.
type rangeSpec struct {
	Range []int `yaml:"range"`
}

// UnmarshalYAML accepts either an explicit list of scalars or a
// {range: [lo, hi]} mapping, per spec.md section 4.4 point 3.
func (a *MatrixAxis) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var values []any
		if err := value.Decode(&values); err != nil {
			return fmt.Errorf("matrix axis: %w", err)
		}
		a.Values = values
		return nil
	}

	if value.Kind == yaml.MappingNode {
		var spec rangeSpec
		if err := value.Decode(&spec); err != nil {
			return fmt.Errorf("matrix axis: %w", err)
		}
		if len(spec.Range) != 2 {
			return fmt.Errorf("matrix axis: range must have exactly 2 bounds, got %d", len(spec.Range))
		}
		lo, hi := spec.Range[0], spec.Range[1]
		if lo > hi {
			return fmt.Errorf("matrix axis: range lo (%d) must be <= hi (%d)", lo, hi)
		}
		a.Range = &Range{Lo: lo, Hi: hi}
		return nil
	}

	return fmt.Errorf("matrix axis: expected a list or a {range: [lo, hi]} mapping, got %v", value.Kind)
}

// Expand returns the concrete values of this axis, in order.
func (a MatrixAxis) Expand() []any {
	if a.Range != nil {
		out := make([]any, 0, a.Range.Hi-a.Range.Lo+1)
		for v := a.Range.Lo; v <= a.Range.Hi; v++ {
			out = append(out, v)
		}
		return out
	}
	return a.Values
}
