// Package runner implements the Work lifecycle runner of spec.md
// section 4.3: withdraw, execute, enforce timeout, update, loop.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/registry"
)

// Config is a runner's fixed configuration for one pipeline.
type Config struct {
	Pipeline string
	Filter   models.WithdrawFilter
	Lifetime int // iterations; 0 = infinite
	Sleep    time.Duration
}

// Runner withdraws, executes, and updates Work against a single bucket.
type Runner struct {
	bucket   *bucket.Client
	registry *registry.Registry
	cfg      Config
	log      *zap.SugaredLogger
}

// New builds a Runner.
func New(b *bucket.Client, r *registry.Registry, cfg Config, log *zap.SugaredLogger) *Runner {
	return &Runner{bucket: b, registry: r, cfg: cfg, log: log}
}

// Run loops until ctx is cancelled or the configured lifetime is
// exhausted. The loop stops between iterations (spec.md section 5,
// "Cancellation"); the same cancellation interrupts an in-flight Work,
// which completes or is marked failure(interrupted) and updated in the
// bucket before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	remaining := r.cfg.Lifetime
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		did, err := r.iteration(ctx)
		if err != nil {
			return fmt.Errorf("runner iteration: %w", err)
		}
		if !did {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.Sleep):
			}
			continue
		}

		if r.cfg.Lifetime > 0 {
			remaining--
			if remaining <= 0 {
				return nil
			}
		}
	}
}

// iteration runs one withdraw-execute-update cycle. It reports whether a
// Work item was withdrawn at all.
func (r *Runner) iteration(ctx context.Context) (bool, error) {
	work, ok, err := r.bucket.Withdraw(ctx, r.cfg.Pipeline, r.cfg.Filter)
	if err != nil {
		return false, fmt.Errorf("withdraw: %w", err)
	}
	if !ok {
		return false, nil
	}

	if work.ExceededAttempts() {
		work.Status = models.StatusFailure
		if r.log != nil {
			r.log.Warnw("attempt bound exceeded at withdrawal", "work", work.ID, "attempt", work.Attempt, "retries", work.Retries)
		}
		if err := r.bucket.Update(ctx, work); err != nil {
			return true, fmt.Errorf("update (attempt bound): %w", err)
		}
		return true, nil
	}

	work.Attempt++
	work.Start = nowEpoch()
	work.Status = models.StatusRunning
	if err := r.bucket.Update(ctx, work); err != nil {
		return true, fmt.Errorf("update (running): %w", err)
	}

	r.execute(ctx, work)

	work.Stop = nowEpoch()
	// The terminal update must still reach the bucket when ctx was
	// cancelled mid-execution, so it does not inherit that cancellation.
	if err := r.bucket.Update(context.WithoutCancel(ctx), work); err != nil {
		return true, fmt.Errorf("update (terminal): %w", err)
	}
	return true, nil
}

func nowEpoch() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// execute dispatches work to a subprocess or a registered function,
// stamping Status and Results in place. It never returns an error: user
// code failures are captured into the Work, per spec.md section 7's
// propagation rule ("a runner never propagates execution errors upward").
func (r *Runner) execute(ctx context.Context, work *models.Work) {
	timeout := time.Duration(work.Timeout) * time.Second

	switch {
	case work.HasCommand():
		result, abortReason, err := runCommand(ctx, work.Command, timeout)
		if err != nil {
			work.Status = models.StatusFailure
			work.Results = DeepMerge(work.Results, map[string]any{"error": err.Error()})
			return
		}
		work.Results = DeepMerge(work.Results, map[string]any{
			"args":       result.Args,
			"stdout":     result.Stdout,
			"stderr":     result.Stderr,
			"returncode": result.ReturnCode,
		})
		switch {
		case abortReason != "":
			work.Status = models.StatusFailure
			work.Results = DeepMerge(work.Results, map[string]any{"error": abortReason})
		case result.ReturnCode == 0:
			work.Status = models.StatusSuccess
		default:
			work.Status = models.StatusFailure
		}

	case work.HasFunction():
		r.executeFunction(ctx, work, timeout)

	default:
		work.Status = models.StatusFailure
		work.Results = DeepMerge(work.Results, map[string]any{"error": "neither function nor command set"})
	}
}

func (r *Runner) executeFunction(ctx context.Context, work *models.Work, timeout time.Duration) {
	fn, params, argSource, err := r.registry.Resolve(work.Function, work.Parameters)
	if err != nil {
		work.Status = models.StatusFailure
		work.Results = DeepMerge(work.Results, map[string]any{"error": err.Error()})
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		results  map[string]any
		products []string
		plots    []string
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		var results map[string]any
		var products, plots []string
		var execErr error
		switch argSource {
		case registry.ArgSourceWork:
			// ArgSourceWork callables read fields off work directly and
			// receive no parameter map.
			results, products, plots, execErr = fn.Execute(callCtx, work, nil)
		default:
			// ArgSourceKwargs callables read the merged parameter map
			// and never see the Work object itself.
			results, products, plots, execErr = fn.Execute(callCtx, nil, params)
		}
		done <- outcome{results, products, plots, execErr}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			work.Status = models.StatusFailure
			work.Results = DeepMerge(work.Results, map[string]any{"error": o.err.Error()})
			return
		}
		work.Results = DeepMerge(work.Results, o.results)
		work.Products = append(work.Products, o.products...)
		work.Plots = append(work.Plots, o.plots...)
		work.Status = models.StatusSuccess

	case <-callCtx.Done():
		// Function execution cannot be safely interrupted (spec.md
		// section 5); the goroutine above is abandoned and may
		// continue running to completion. A cancellation of ctx itself
		// (process shutdown) is distinguished from the timeout child
		// context expiring on its own, per spec.md section 4.3's
		// reason=interrupted outcome.
		work.Status = models.StatusFailure
		reason := "timeout"
		if ctx.Err() != nil {
			reason = "interrupted"
		}
		work.Results = DeepMerge(work.Results, map[string]any{"error": reason})
	}
}
