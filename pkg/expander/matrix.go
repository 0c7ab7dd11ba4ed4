package expander

import (
	"fmt"
	"sort"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// mergedAxes combines a top-level matrix with a step's own matrix,
// rejecting any axis name present in both (spec.md section 4.4 point 3).
func mergedAxes(top, step models.Matrix) (models.Matrix, error) {
	if len(top) == 0 {
		return step, nil
	}
	if len(step) == 0 {
		return top, nil
	}
	out := make(models.Matrix, len(top)+len(step))
	for k, v := range top {
		out[k] = v
	}
	for k, v := range step {
		if _, clash := out[k]; clash {
			return nil, fmt.Errorf("matrix axis %q declared at both pipeline and step level", k)
		}
		out[k] = v
	}
	return out, nil
}

// cartesianProduct enumerates every assignment of axis values, walking
// axes in the given order, for a deterministic expansion order. Go map
// iteration is unordered, so axis names are sorted once and threaded
// through explicitly rather than relied upon from range order.
func cartesianProduct(axes models.Matrix, order []string) []map[string]any {
	if len(order) == 0 {
		return []map[string]any{{}}
	}

	var rows []map[string]any
	var recurse func(i int, acc map[string]any)
	recurse = func(i int, acc map[string]any) {
		if i == len(order) {
			copyAcc := make(map[string]any, len(acc))
			for k, v := range acc {
				copyAcc[k] = v
			}
			rows = append(rows, copyAcc)
			return
		}
		name := order[i]
		for _, v := range axes[name].Expand() {
			acc[name] = v
			recurse(i+1, acc)
		}
		delete(acc, name)
	}
	recurse(0, map[string]any{})
	return rows
}

// axisOrder returns axis names from a Matrix sorted alphabetically.
// yaml.v3 decodes mappings preserving document order only via
// yaml.Node; models.Matrix has already lost that by the time it reaches
// here, so the document's declaration order of axes is not used.
func axisOrder(m models.Matrix) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
