// Command transferd runs the Transfer daemon of spec.md section 4.5.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/archive"
	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/config"
	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/problem"
	"github.com/chime-frb/workflow-go/pkg/results"
	"github.com/chime-frb/workflow-go/pkg/transferd"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

func main() {
	pipelines := flag.String("pipelines", "", "comma-separated pipeline names to scan")
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

	bucketTransport := transport.New(ws.HTTP.BaseURLs.Buckets, cfg.ConnectTimeout, cfg.ReadTimeout, sugar)
	resultsTransport := transport.New(ws.HTTP.BaseURLs.Results, cfg.ConnectTimeout, cfg.ReadTimeout, sugar)

	bucketClient := bucket.New(bucketTransport)
	resultsClient := results.New(resultsTransport)

	backends, err := buildBackends(context.Background(), ws)
	if err != nil {
		sugar.Fatalw("fatal: archive backend configuration", "error", err)
		os.Exit(1)
	}

	var targets []transferd.Target
	for _, p := range strings.Split(*pipelines, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for _, site := range ws.Sites {
			targets = append(targets, transferd.Target{Pipeline: p, Site: site})
		}
	}

	svc := transferd.New(bucketClient, resultsClient, backends, transferd.Config{
		Period:      cfg.TransferPeriod,
		BatchSize:   cfg.TransferBatchSize,
		Targets:     targets,
		Permissions: ws.Config.Archive.Permissions,
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
	sugar.Info("transfer daemon stopped")
}

// buildBackends resolves one archive.Backend per site, per workspace's
// archive.posix.<site> / archive.s3.<site> configuration (spec.md
// section 9, Open Question a: posix is canonical over archive.mounts).
func buildBackends(ctx context.Context, ws *models.Workspace) (map[string]archive.Backend, error) {
	backends := make(map[string]archive.Backend, len(ws.Sites))
	for _, site := range ws.Sites {
		if root, ok := ws.ArchivePosix[site]; ok {
			backends[site] = archive.NewPosix(root)
			continue
		}
		if target, ok := ws.ArchiveS3[site]; ok {
			backend, err := archive.NewS3(ctx, target, os.Getenv("WORKFLOW_S3_ACCESS_KEY"), os.Getenv("WORKFLOW_S3_SECRET_KEY"))
			if err != nil {
				return nil, err
			}
			backends[site] = backend
		}
	}
	return backends, nil
}
