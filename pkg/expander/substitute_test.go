package expander

import (
	"testing"
)

func TestSubstituteStringStructural(t *testing.T) {
	lookup := matrixLookup(map[string]any{"count": 7})
	got, err := substituteString("${{ matrix.count }}", lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("structural substitution = %v (%T), want int 7", got, got)
	}
}

func TestSubstituteStringInterpolated(t *testing.T) {
	lookup := matrixLookup(map[string]any{"site": "chime"})
	got, err := substituteString("work-${{ matrix.site }}-job", lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "work-chime-job" {
		t.Errorf("interpolated substitution = %q, want %q", got, "work-chime-job")
	}
}

func TestSubstituteStringUnresolvedErrors(t *testing.T) {
	lookup := matrixLookup(map[string]any{})
	if _, err := substituteString("${{ matrix.missing }}", lookup); err == nil {
		t.Fatal("expected an error for an unresolved token")
	}
}

func TestPipelineLookupStatus(t *testing.T) {
	outcomes := map[string]StepOutcome{
		"fetch": {Status: "success", Results: map[string]any{"path": "/data/x"}},
	}
	lookup := pipelineLookup(outcomes)

	status, ok := lookup("pipeline.fetch.status")
	if !ok || status != "success" {
		t.Errorf("pipeline.fetch.status = %v, %v", status, ok)
	}

	path, ok := lookup("pipeline.fetch.path")
	if !ok || path != "/data/x" {
		t.Errorf("pipeline.fetch.path = %v, %v", path, ok)
	}

	if _, ok := lookup("pipeline.missing.path"); ok {
		t.Error("expected lookup against an unknown step to fail")
	}
}

func TestSubstituteValueWalksNestedStructures(t *testing.T) {
	lookup := matrixLookup(map[string]any{"n": 3})
	input := map[string]any{
		"count": "${{ matrix.n }}",
		"items": []any{"a-${{ matrix.n }}", "b"},
	}
	out, err := substituteValue(input, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["count"] != 3 {
		t.Errorf("count = %v, want 3", m["count"])
	}
	items := m["items"].([]any)
	if items[0] != "a-3" {
		t.Errorf("items[0] = %v, want a-3", items[0])
	}
}
