package expander

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern matches ${{ <expr> }}, tolerating surrounding whitespace
// inside the braces.
var tokenPattern = regexp.MustCompile(`\$\{\{\s*([^}]+?)\s*\}\}`)

// substituteString applies lookup to every ${{ ... }} token in s. If s is
// exactly one token, the token's raw typed value is returned (structural
// substitution, spec.md section 4.4 point 4); otherwise every token is
// string-interpolated into its surrounding text.
func substituteString(s string, lookup func(expr string) (any, bool)) (any, error) {
	matches := tokenPattern.FindStringSubmatchIndex(s)
	if matches != nil && matches[0] == 0 && matches[1] == len(s) {
		expr := s[matches[2]:matches[3]]
		val, ok := lookup(expr)
		if !ok {
			return nil, fmt.Errorf("unresolved token %q", expr)
		}
		return val, nil
	}

	var missing error
	result := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(tokenPattern.FindStringSubmatch(match)[1])
		val, ok := lookup(expr)
		if !ok {
			missing = fmt.Errorf("unresolved token %q", expr)
			return match
		}
		return fmt.Sprintf("%v", val)
	})
	if missing != nil {
		return nil, missing
	}
	return result, nil
}

// substituteValue walks an arbitrary decoded YAML value (map, slice,
// string, or scalar) applying substituteString to every string it finds.
func substituteValue(v any, lookup func(expr string) (any, bool)) (any, error) {
	switch val := v.(type) {
	case string:
		return substituteString(val, lookup)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			sub, err := substituteValue(item, lookup)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			sub, err := substituteValue(item, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return v, nil
	}
}

// matrixLookup resolves `matrix.<key>` tokens against one concrete axis
// assignment from the Cartesian product.
func matrixLookup(assignment map[string]any) func(expr string) (any, bool) {
	return func(expr string) (any, bool) {
		const prefix = "matrix."
		if !strings.HasPrefix(expr, prefix) {
			return nil, false
		}
		key := strings.TrimPrefix(expr, prefix)
		v, ok := assignment[key]
		return v, ok
	}
}

// pipelineLookup resolves `pipeline.<step>.<field>` tokens against the
// execution-time outcome of earlier steps (spec.md section 4.4, final
// paragraph before "Ownership and lifecycle").
func pipelineLookup(outcomes map[string]StepOutcome) func(expr string) (any, bool) {
	return func(expr string) (any, bool) {
		const prefix = "pipeline."
		if !strings.HasPrefix(expr, prefix) {
			return nil, false
		}
		rest := strings.TrimPrefix(expr, prefix)
		parts := strings.SplitN(rest, ".", 2)
		if len(parts) != 2 {
			return nil, false
		}
		outcome, ok := outcomes[parts[0]]
		if !ok {
			return nil, false
		}
		switch parts[1] {
		case "status":
			return string(outcome.Status), true
		default:
			v, ok := outcome.Results[parts[1]]
			return v, ok
		}
	}
}

// chainedLookup tries matrix first, then pipeline, the two token
// namespaces spec.md section 4.4 names.
func chainedLookup(assignment map[string]any, outcomes map[string]StepOutcome) func(expr string) (any, bool) {
	m := matrixLookup(assignment)
	p := pipelineLookup(outcomes)
	return func(expr string) (any, bool) {
		if v, ok := m(expr); ok {
			return v, true
		}
		return p(expr)
	}
}
