// Command expand loads a Pipeline Configuration document, expands it,
// and deposits each stage's Work items in order, gating later stages on
// earlier ones (spec.md section 4.4). It stands in for the pipelines
// manager service firing a scheduled configuration, which is otherwise
// out of scope (spec.md section 1).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/config"
	"github.com/chime-frb/workflow-go/pkg/expander"
	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/pipelinesmgr"
	"github.com/chime-frb/workflow-go/pkg/problem"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

// stagePollInterval bounds how often depositStages re-checks a deposited
// stage's Work for a terminal status before gating the next stage.
const stagePollInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a Pipeline Configuration YAML document")
	workspaceRef := flag.String("workspace", "", "workspace name, path, or URL (defaults to the active workspace)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if *configPath == "" {
		sugar.Fatal("misconfiguration: -config is required")
		os.Exit(1)
	}

	doc, err := os.ReadFile(*configPath)
	if err != nil {
		sugar.Fatalw("fatal: cannot read configuration", "error", err)
		os.Exit(1)
	}

	cfg, err := expander.Parse(doc)
	if err != nil {
		sugar.Fatalw("fatal: schema corrupt", "error", err)
		os.Exit(1)
	}

	ws, err := config.ResolveWorkspace(*workspaceRef)
	if err != nil {
		sugar.Fatalw("fatal: workspace resolution failed", "error", err)
		os.Exit(1)
	}

	stages, errs := expander.Expand(cfg, ws)
	if len(errs) > 0 {
		for _, e := range errs {
			sugar.Errorw("expansion violation", "error", e)
		}
		os.Exit(1)
	}

	runtimeCfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runID := uuid.New().String()
	sugar = sugar.With("run_id", runID)

	// A scheduled configuration is registered with the pipelines manager
	// once and fired on its cron thereafter; an unscheduled configuration
	// fires immediately by depositing its stages now (spec.md section
	// 4.4 point 6).
	if cfg.Schedule != nil {
		pipelinesTransport := transport.New(ws.HTTP.BaseURLs.Pipelines, runtimeCfg.ConnectTimeout, runtimeCfg.ReadTimeout, sugar)
		pipelinesClient := pipelinesmgr.New(pipelinesTransport)
		id, err := expander.RegisterSchedule(ctx, pipelinesClient, cfg)
		if err != nil {
			sugar.Errorw("unrecoverable backend failure", "problem", problem.FromError(err))
			os.Exit(2)
		}
		sugar.Infow("schedule registered", "id", id, "cronspec", cfg.Schedule.Cronspec, "count", cfg.Schedule.Count)
		return
	}

	t := transport.New(ws.HTTP.BaseURLs.Buckets, runtimeCfg.ConnectTimeout, runtimeCfg.ReadTimeout, sugar)
	bucketClient := bucket.New(t)

	if err := depositStages(ctx, bucketClient, stages, runID, sugar); err != nil {
		sugar.Errorw("unrecoverable backend failure", "problem", problem.FromError(err))
		os.Exit(2)
	}
}

// depositStages deposits each stage only once every step in all prior
// stages has reached a terminal state (spec.md section 5, "Ordering
// guarantees"), gating per-step on its `if` condition. Every deposited
// Work is tagged with runID (a correlation id for siblings from the
// same expansion) and carries its originating step name in Group, so
// the audit daemon's orphan classification (spec.md section 4.6) can
// check whether that step still exists in the owning Pipeline
// Configuration.
func depositStages(ctx context.Context, b *bucket.Client, stages []expander.StageGroup, runID string, log *zap.SugaredLogger) error {
	outcomes := map[string]expander.StepOutcome{}

	for _, stage := range stages {
		queue := expander.NewStepQueue()
		stepWork := map[string][]*models.Work{}
		var gatedOff []string
		for seq, step := range stage.Steps {
			if !expander.Gate(step.If, outcomes) {
				log.Infow("step gated off", "step", step.Name, "if", step.If)
				gatedOff = append(gatedOff, step.Name)
				continue
			}
			for _, w := range step.Work {
				if err := expander.ResolvePipelineReferences(w, outcomes); err != nil {
					return err
				}
				w.Tags = append(w.Tags, runID)
				if !containsString(w.Group, step.Name) {
					w.Group = append(w.Group, step.Name)
				}
				queue.Push(w, seq)
				stepWork[step.Name] = append(stepWork[step.Name], w)
			}
		}
		for _, name := range gatedOff {
			outcomes[name] = expander.StepOutcome{Status: models.StatusCancelled}
		}

		var deposited []*models.Work
		for w := queue.Pop(); w != nil; w = queue.Pop() {
			deposited = append(deposited, w)
		}
		if len(deposited) > 0 {
			ids, err := b.Deposit(ctx, deposited)
			if err != nil {
				return err
			}
			for i, w := range deposited {
				if i < len(ids) {
					w.ID = ids[i]
				}
			}
		}

		// This driver stands in for the pipelines manager's synchronous
		// stage execution (spec.md section 1): it must itself wait for
		// every deposited step to reach a terminal state before the
		// next stage's `if` gate is evaluated, or gating is meaningless.
		for name, items := range stepWork {
			status, err := awaitTerminal(ctx, b, items, log)
			if err != nil {
				return err
			}
			outcomes[name] = expander.StepOutcome{Status: status}
			log.Infow("step reached terminal state", "step", name, "status", status)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// awaitTerminal polls the bucket for items by id until every one has
// reached a terminal status, returning Success only if all of them did;
// any non-success terminal status (failure, cancelled, expired) counts
// the step as Failure for gating purposes. Returns early with Failure
// if ctx is cancelled mid-poll, since the step's true outcome can no
// longer be waited for.
func awaitTerminal(ctx context.Context, b *bucket.Client, items []*models.Work, log *zap.SugaredLogger) (models.Status, error) {
	return awaitTerminalWithInterval(ctx, b, items, log, stagePollInterval)
}

// awaitTerminalWithInterval is awaitTerminal with an overridable poll
// interval, so tests don't wait out the production stagePollInterval.
func awaitTerminalWithInterval(ctx context.Context, b *bucket.Client, items []*models.Work, log *zap.SugaredLogger, interval time.Duration) (models.Status, error) {
	if len(items) == 0 {
		return models.StatusSuccess, nil
	}
	ids := make([]string, len(items))
	for i, w := range items {
		ids[i] = w.ID
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		found, err := b.ViewByIDs(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				log.Warnw("stage polling interrupted before reaching a terminal state", "ids", ids)
				return models.StatusFailure, nil
			}
			return "", err
		}
		byID := make(map[string]*models.Work, len(found))
		for _, w := range found {
			byID[w.ID] = w
		}

		allTerminal := true
		succeeded := true
		for _, id := range ids {
			w, ok := byID[id]
			if !ok || !w.Status.Terminal() {
				allTerminal = false
				continue
			}
			if w.Status != models.StatusSuccess {
				succeeded = false
			}
		}
		if allTerminal {
			if succeeded {
				return models.StatusSuccess, nil
			}
			return models.StatusFailure, nil
		}

		select {
		case <-ctx.Done():
			log.Warnw("stage polling interrupted before reaching a terminal state", "ids", ids)
			return models.StatusFailure, nil
		case <-ticker.C:
		}
	}
}
