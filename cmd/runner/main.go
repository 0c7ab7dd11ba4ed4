// Command runner is a long-lived Work executor: it withdraws Work for
// one pipeline from the bucket service, executes it, and loops, per
// spec.md section 4.3.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/config"
	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/problem"
	"github.com/chime-frb/workflow-go/pkg/registry"
	"github.com/chime-frb/workflow-go/pkg/runner"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

func main() {
	pipeline := flag.String("pipeline", "", "pipeline name to withdraw Work for")
	workspaceRef := flag.String("workspace", "", "workspace name, path, or URL (defaults to the active workspace)")
	site := flag.String("site", "", "restrict withdrawal to this site")
	lifetime := flag.Int("lifetime", 0, "number of iterations to run before exiting (0 = infinite)")
	flag.Parse()

	if *pipeline == "" {
		log.Fatal("misconfiguration: -pipeline is required")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("misconfiguration: %v", err)
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

	reg := registry.New()
	registerFunctions(reg)

	r := runner.New(bucketClient, reg, runner.Config{
		Pipeline: *pipeline,
		Filter:   models.WithdrawFilter{Site: *site},
		Lifetime: *lifetime,
		Sleep:    cfg.RunnerSleep,
	}, sugar)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		sugar.Info("received shutdown signal")
		cancel()
	}()

	start := time.Now()
	if err := r.Run(ctx); err != nil {
		sugar.Errorw("unrecoverable backend failure", "problem", problem.FromError(err), "ran_for", time.Since(start))
		os.Exit(2)
	}

	sugar.Info("runner stopped")
}

// registerFunctions binds every importable-function name this
// deployment supports. Real deployments add entries here at build time;
// none are wired by default, mirroring that the source resolves
// `function` by dotted path against whatever is on the caller's
// PYTHONPATH rather than a fixed built-in set.
func registerFunctions(r *registry.Registry) {}
