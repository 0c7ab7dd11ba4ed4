package expander

import (
	"fmt"
	"testing"

	"github.com/chime-frb/workflow-go/pkg/models"
)

func TestCartesianProductCardinality(t *testing.T) {
	axes := models.Matrix{
		"site": models.MatrixAxis{Values: []any{"chime", "allenby", "gbo"}},
		"n":    models.MatrixAxis{Range: &models.Range{Lo: 1, Hi: 4}},
	}
	order := axisOrder(axes)
	rows := cartesianProduct(axes, order)

	want := 3 * 4
	if len(rows) != want {
		t.Fatalf("cardinality = %d, want %d", len(rows), want)
	}

	seen := map[string]bool{}
	for _, row := range rows {
		key := fmt.Sprintf("%v/%v", row["site"], row["n"])
		if seen[key] {
			t.Fatalf("duplicate assignment %v", row)
		}
		seen[key] = true
	}
}

func TestMergedAxesRejectsOverlap(t *testing.T) {
	top := models.Matrix{"site": models.MatrixAxis{Values: []any{"chime"}}}
	step := models.Matrix{"site": models.MatrixAxis{Values: []any{"allenby"}}}
	if _, err := mergedAxes(top, step); err == nil {
		t.Fatal("expected an error for an axis declared at both levels")
	}
}

func TestMergedAxesUnion(t *testing.T) {
	top := models.Matrix{"site": models.MatrixAxis{Values: []any{"chime"}}}
	step := models.Matrix{"n": models.MatrixAxis{Values: []any{1, 2}}}
	merged, err := mergedAxes(top, step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 axes, got %d", len(merged))
	}
}

func TestAxisExpandRange(t *testing.T) {
	axis := models.MatrixAxis{Range: &models.Range{Lo: 2, Hi: 5}}
	got := axis.Expand()
	want := []any{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Expand() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expand()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
