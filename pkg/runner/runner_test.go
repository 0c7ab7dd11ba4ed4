package runner

import (
	"context"
	"testing"
	"time"

	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/registry"
)

func TestExecuteCommandSuccess(t *testing.T) {
	r := &Runner{registry: registry.New()}
	work := &models.Work{Command: []string{"sh", "-c", "exit 0"}, Timeout: 5}
	r.execute(context.Background(), work)
	if work.Status != models.StatusSuccess {
		t.Errorf("status = %q, want %q", work.Status, models.StatusSuccess)
	}
}

func TestExecuteCommandNonZeroExit(t *testing.T) {
	r := &Runner{registry: registry.New()}
	work := &models.Work{Command: []string{"sh", "-c", "exit 3"}, Timeout: 5}
	r.execute(context.Background(), work)
	if work.Status != models.StatusFailure {
		t.Errorf("status = %q, want %q", work.Status, models.StatusFailure)
	}
	if work.Results["returncode"] != 3 {
		t.Errorf("returncode = %v, want 3", work.Results["returncode"])
	}
}

func TestExecuteCommandInterrupted(t *testing.T) {
	r := &Runner{registry: registry.New()}
	work := &models.Work{Command: []string{"sh", "-c", "trap '' TERM; sleep 5"}, Timeout: 10}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	r.execute(ctx, work)

	if work.Status != models.StatusFailure {
		t.Errorf("status = %q, want %q", work.Status, models.StatusFailure)
	}
	if work.Results["error"] != "interrupted" {
		t.Errorf("results[error] = %v, want %q", work.Results["error"], "interrupted")
	}
}

func TestExecuteFunctionSuccess(t *testing.T) {
	reg := registry.New()
	reg.Register("tests.add", registry.FuncFunction(func(ctx context.Context, w *models.Work, params map[string]any) (map[string]any, []string, []string, error) {
		return map[string]any{"sum": 3}, nil, nil, nil
	}), registry.ArgSourceKwargs)

	r := &Runner{registry: reg}
	work := &models.Work{Function: "tests.add", Timeout: 5}
	r.execute(context.Background(), work)

	if work.Status != models.StatusSuccess {
		t.Errorf("status = %q, want %q", work.Status, models.StatusSuccess)
	}
	if work.Results["sum"] != 3 {
		t.Errorf("results[sum] = %v, want 3", work.Results["sum"])
	}
}

// TestExecuteFunctionKwargsReceivesNoWork confirms an ArgSourceKwargs
// callable is handed the merged parameter map but never the Work itself.
func TestExecuteFunctionKwargsReceivesNoWork(t *testing.T) {
	reg := registry.New()
	reg.Register("tests.kwargs", registry.FuncFunction(func(ctx context.Context, w *models.Work, params map[string]any) (map[string]any, []string, []string, error) {
		return map[string]any{"work_is_nil": w == nil, "n": params["n"]}, nil, nil, nil
	}), registry.ArgSourceKwargs)

	r := &Runner{registry: reg}
	work := &models.Work{Function: "tests.kwargs", Timeout: 5, Parameters: map[string]any{"n": 7}}
	r.execute(context.Background(), work)

	if work.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want %q", work.Status, models.StatusSuccess)
	}
	if work.Results["work_is_nil"] != true {
		t.Error("expected an ArgSourceKwargs callable to receive a nil Work")
	}
	if work.Results["n"] != 7 {
		t.Errorf("results[n] = %v, want 7", work.Results["n"])
	}
}

// TestExecuteFunctionWorkReceivesFullWork confirms an ArgSourceWork
// callable is handed the full Work object and no parameter map.
func TestExecuteFunctionWorkReceivesFullWork(t *testing.T) {
	reg := registry.New()
	reg.Register("tests.work", registry.FuncFunction(func(ctx context.Context, w *models.Work, params map[string]any) (map[string]any, []string, []string, error) {
		return map[string]any{"params_is_nil": params == nil, "pipeline": w.Pipeline}, nil, nil, nil
	}), registry.ArgSourceWork)

	r := &Runner{registry: reg}
	work := &models.Work{Function: "tests.work", Pipeline: "imaging", Timeout: 5, Parameters: map[string]any{"n": 7}}
	r.execute(context.Background(), work)

	if work.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want %q", work.Status, models.StatusSuccess)
	}
	if work.Results["params_is_nil"] != true {
		t.Error("expected an ArgSourceWork callable to receive a nil parameter map")
	}
	if work.Results["pipeline"] != "imaging" {
		t.Errorf("results[pipeline] = %v, want %q", work.Results["pipeline"], "imaging")
	}
}

func TestExecuteFunctionTimeout(t *testing.T) {
	reg := registry.New()
	reg.Register("tests.slow", registry.FuncFunction(func(ctx context.Context, w *models.Work, params map[string]any) (map[string]any, []string, []string, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return map[string]any{"done": true}, nil, nil, nil
	}), registry.ArgSourceKwargs)

	r := &Runner{registry: reg}
	work := &models.Work{Function: "tests.slow", Timeout: 0}
	// Timeout of 0 seconds means the deadline is already passed; execute
	// must mark the Work failed without waiting for the abandoned goroutine.
	start := time.Now()
	r.execute(context.Background(), work)
	elapsed := time.Since(start)

	if work.Status != models.StatusFailure {
		t.Errorf("status = %q, want %q", work.Status, models.StatusFailure)
	}
	if work.Results["error"] != "timeout" {
		t.Errorf("results[error] = %v, want %q", work.Results["error"], "timeout")
	}
	if elapsed > 2*time.Second {
		t.Errorf("execute took %v, should return promptly on timeout even though the function goroutine is abandoned", elapsed)
	}
}

// TestExecuteFunctionInterrupted confirms that cancelling the outer ctx
// (process shutdown), rather than the per-Work timeout elapsing on its
// own, surfaces as "interrupted".
func TestExecuteFunctionInterrupted(t *testing.T) {
	reg := registry.New()
	reg.Register("tests.slow", registry.FuncFunction(func(ctx context.Context, w *models.Work, params map[string]any) (map[string]any, []string, []string, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return map[string]any{"done": true}, nil, nil, nil
	}), registry.ArgSourceKwargs)

	r := &Runner{registry: reg}
	work := &models.Work{Function: "tests.slow", Timeout: 10}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	r.execute(ctx, work)

	if work.Status != models.StatusFailure {
		t.Errorf("status = %q, want %q", work.Status, models.StatusFailure)
	}
	if work.Results["error"] != "interrupted" {
		t.Errorf("results[error] = %v, want %q", work.Results["error"], "interrupted")
	}
}

func TestExecuteUnknownFunction(t *testing.T) {
	r := &Runner{registry: registry.New()}
	work := &models.Work{Function: "tests.missing", Timeout: 5}
	r.execute(context.Background(), work)
	if work.Status != models.StatusFailure {
		t.Errorf("status = %q, want %q", work.Status, models.StatusFailure)
	}
}

func TestExecuteNeitherFunctionNorCommand(t *testing.T) {
	r := &Runner{registry: registry.New()}
	work := &models.Work{Timeout: 5}
	r.execute(context.Background(), work)
	if work.Status != models.StatusFailure {
		t.Errorf("status = %q, want %q", work.Status, models.StatusFailure)
	}
}
