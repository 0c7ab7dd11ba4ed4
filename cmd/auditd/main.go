// Command auditd runs the Audit daemon of spec.md section 4.6.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/auditd"
	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/config"
	"github.com/chime-frb/workflow-go/pkg/pipelinesmgr"
	"github.com/chime-frb/workflow-go/pkg/problem"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

func main() {
	pipeline := flag.String("pipeline", "", "pipeline name to audit")
	workspaceRef := flag.String("workspace", "", "workspace name, path, or URL (defaults to the active workspace)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ws, err := config.ResolveWorkspace(*workspaceRef)
	if err != nil {
		sugar.Fatalw("fatal: workspace resolution failed", "error", err)
		os.Exit(1)
	}

	cfg := config.Load()

	t := transport.New(ws.HTTP.BaseURLs.Buckets, cfg.ConnectTimeout, cfg.ReadTimeout, sugar)
	bucketClient := bucket.New(t)

	pipelinesTransport := transport.New(ws.HTTP.BaseURLs.Pipelines, cfg.ConnectTimeout, cfg.ReadTimeout, sugar)
	pipelinesClient := pipelinesmgr.New(pipelinesTransport)

	// Pipeline Configurations are currently looked up by their opaque
	// registration id, not by pipeline name; until the pipelines manager
	// exposes a name-based lookup, *pipeline doubles as the id, which
	// only holds for deployments registered under that value.
	activeSteps := func(ctx context.Context, pipeline, group string) bool {
		pcfg, err := pipelinesClient.Get(ctx, pipeline)
		if err != nil {
			sugar.Warnw("orphan check couldn't reach the pipelines manager, treating step as active", "pipeline", pipeline, "group", group, "error", err)
			return true
		}
		_, ok := pcfg.Pipeline[group]
		return ok
	}

	svc := auditd.New(bucketClient, auditd.Config{
		Period:      cfg.AuditPeriod,
		Buffer:      cfg.AuditBuffer,
		Pipeline:    *pipeline,
		BatchSize:   100,
		ActiveSteps: activeSteps,
	}, sugar)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		sugar.Info("received shutdown signal")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		sugar.Errorw("unrecoverable backend failure", "problem", problem.FromError(err))
		os.Exit(2)
	}
	sugar.Info("audit daemon stopped")
}
