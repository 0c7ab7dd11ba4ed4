package expander

import (
	"testing"

	"github.com/chime-frb/workflow-go/pkg/models"
)

func TestParseRejectsUnknownTopLevelKey(t *testing.T) {
	doc := []byte(`
version: "1"
name: test
bogus: true
pipeline:
  step-a:
    stage: 0
    work:
      pipeline: p
      site: chime
      function: tests.add
`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected an error for an unknown top-level key")
	}
}

func TestParsePopulatesStepNameFromMappingKey(t *testing.T) {
	doc := []byte(`
version: "1"
name: test
pipeline:
  ingest:
    stage: 0
    work:
      pipeline: p
      site: chime
      function: tests.ingest
`)
	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	step, ok := cfg.Pipeline["ingest"]
	if !ok {
		t.Fatal("expected a step named ingest")
	}
	if step.Name != "ingest" {
		t.Errorf("step.Name = %q, want %q", step.Name, "ingest")
	}
}

func TestParseMatrixRangeAxis(t *testing.T) {
	doc := []byte(`
version: "1"
name: test
pipeline:
  fan:
    stage: 0
    work:
      pipeline: p
      site: chime
      function: tests.fan
    matrix:
      n:
        range: [1, 3]
`)
	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	axis := cfg.Pipeline["fan"].Matrix["n"]
	got := axis.Expand()
	if len(got) != 3 {
		t.Fatalf("expanded range has %d values, want 3", len(got))
	}
}

func TestValidateScheduleRejectsBadCron(t *testing.T) {
	s := &models.Schedule{Cronspec: "not a cron expression"}
	if err := ValidateSchedule(s); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestValidateScheduleAcceptsStandardCron(t *testing.T) {
	s := &models.Schedule{Cronspec: "0 * * * *"}
	if err := ValidateSchedule(s); err != nil {
		t.Errorf("unexpected error for a valid cron expression: %v", err)
	}
}

func TestValidateScheduleNilIsNoOp(t *testing.T) {
	if err := ValidateSchedule(nil); err != nil {
		t.Errorf("unexpected error for a nil schedule: %v", err)
	}
}
