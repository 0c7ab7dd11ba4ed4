// Package transferd implements the Transfer daemon of spec.md
// section 4.5: a periodic batch scan that archives completed Work and
// forwards it to the results service.
package transferd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/archive"
	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/results"
)

// Target is one (pipeline, site) pair the daemon scans each cycle.
type Target struct {
	Pipeline string
	Site     string
}

// Config tunes the daemon's batch loop, per spec.md section 4.5.
type Config struct {
	Period    time.Duration
	BatchSize int
	Targets   []Target

	// Permissions is the group ACL applied to freshly archived artifacts
	// on backends that support it (spec.md section 6). Empty disables
	// the step.
	Permissions string
}

// Outcome is one item's per-cycle result, recorded for metrics per
// spec.md section 4.5's "records per-item outcomes and emits metrics
// counts".
type Outcome struct {
	WorkID    string
	Forwarded bool
	Err       error
}

// Service runs the periodic archive-and-forward loop.
type Service struct {
	bucket   *bucket.Client
	results  *results.Client
	backends map[string]archive.Backend // site -> backend
	cfg      Config
	log      *zap.SugaredLogger
}

// New builds a Service. backends maps site name to the archive backend
// that site's artifacts live under.
func New(b *bucket.Client, r *results.Client, backends map[string]archive.Backend, cfg Config, log *zap.SugaredLogger) *Service {
	return &Service{bucket: b, results: r, backends: backends, cfg: cfg, log: log}
}

// Run loops until ctx is cancelled, running one cycle per Config.Period.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		if err := s.Cycle(ctx); err != nil {
			if s.log != nil {
				s.log.Errorw("transfer cycle aborted", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

var terminalStatuses = []models.Status{
	models.StatusSuccess, models.StatusFailure, models.StatusCancelled, models.StatusExpired,
}

// Cycle runs one scan across every configured target. A PolicyError from
// any item aborts the whole batch (spec.md section 7); other per-item
// failures are isolated and recorded.
func (s *Service) Cycle(ctx context.Context) error {
	var outcomes []Outcome
	for _, target := range s.cfg.Targets {
		items, err := s.bucket.List(ctx, target.Pipeline, target.Site, terminalStatuses, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list %s/%s: %w", target.Pipeline, target.Site, err)
		}

		var toDelete []string
		var toDeposit []*models.Work

		for _, w := range items {
			if err := s.archiveOne(ctx, w); err != nil {
				var policyErr *archive.PolicyError
				if errors.As(err, &policyErr) {
					return fmt.Errorf("policy error on %s: %w", w.ID, err)
				}
				outcomes = append(outcomes, Outcome{WorkID: w.ID, Err: err})
				continue
			}

			if w.Config.Archive.Results != "" && w.Config.Archive.Results != models.ArchiveBypass {
				toDeposit = append(toDeposit, w)
			} else {
				toDelete = append(toDelete, w.ID)
			}
			outcomes = append(outcomes, Outcome{WorkID: w.ID, Forwarded: true})
		}

		deposited := s.depositBatch(ctx, toDeposit)
		toDelete = append(toDelete, deposited...)

		if err := s.bucket.Delete(ctx, toDelete); err != nil {
			if s.log != nil {
				s.log.Errorw("bulk delete failed", "ids", toDelete, "error", err)
			}
		}
	}

	if s.log != nil {
		s.log.Infow("transfer cycle complete", "items", len(outcomes))
	}
	return nil
}

// archiveOne applies the workspace archive policy to every artifact
// class of one Work item (spec.md section 4.5 point 2).
func (s *Service) archiveOne(ctx context.Context, w *models.Work) error {
	backend, ok := s.backends[w.Site]
	if !ok {
		return &archive.PolicyError{Reason: fmt.Sprintf("no archive backend configured for site %q", w.Site)}
	}

	for _, plot := range w.Plots {
		if err := archive.Apply(ctx, backend, w.Config.Archive.Plots, w.Pipeline, w.ID, plot); err != nil {
			return fmt.Errorf("plot %s: %w", plot, err)
		}
		s.applyPermissions(backend, w.Config.Archive.Plots, w.Pipeline, w.ID, plot)
	}
	for _, product := range w.Products {
		if err := archive.Apply(ctx, backend, w.Config.Archive.Products, w.Pipeline, w.ID, product); err != nil {
			return fmt.Errorf("product %s: %w", product, err)
		}
		s.applyPermissions(backend, w.Config.Archive.Products, w.Pipeline, w.ID, product)
	}
	if err := s.archiveResults(ctx, backend, w); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	return nil
}

// archiveResults applies the workspace's results archive policy, writing
// Work.Results to a scratch `results.json` first so `archive.Apply` has a
// source path to operate on (the POSIX layout's `<root>/<pipeline>/<id>/
// results.json` -- the same artifact-class policy already applied to
// plots and products).
func (s *Service) archiveResults(ctx context.Context, backend archive.Backend, w *models.Work) error {
	mode := w.Config.Archive.Results
	if mode == "" || mode == models.ArchiveBypass {
		return nil
	}

	data, err := json.Marshal(w.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	dir, err := os.MkdirTemp("", "transferd-results-*")
	if err != nil {
		return fmt.Errorf("results scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "results.json")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		return fmt.Errorf("write results.json: %w", err)
	}

	if err := archive.Apply(ctx, backend, mode, w.Pipeline, w.ID, src); err != nil {
		return err
	}
	s.applyPermissions(backend, mode, w.Pipeline, w.ID, src)
	return nil
}

// applyPermissions runs the optional group ACL step (spec.md section 6)
// against an artifact that was actually written to backend by mode. A
// failure here is logged, never fatal to the batch: the artifact is
// already safely archived, and a permission-bit mismatch is an operator
// concern, not a policy violation.
func (s *Service) applyPermissions(backend archive.Backend, mode models.ArchiveMode, pipeline, id, artifactPath string) {
	if s.cfg.Permissions == "" {
		return
	}
	switch mode {
	case models.ArchiveCopy, models.ArchiveMove, models.ArchiveUpload:
	default:
		return
	}
	setter, ok := backend.(archive.PermissionSetter)
	if !ok {
		return
	}
	destKey := archive.DestKey(pipeline, id, artifactPath)
	if err := setter.SetGroupPermissions(destKey, s.cfg.Permissions); err != nil && s.log != nil {
		s.log.Warnw("group permission step failed", "path", destKey, "error", err)
	}
}

// depositBatch bulk-deposits to the results service, falling back to a
// per-item duplicate check when the bulk call fails (grounded on
// daemons/transfer.py's perform()). Returns the ids that ended up
// successfully deposited and are therefore safe to delete from the bucket.
func (s *Service) depositBatch(ctx context.Context, work []*models.Work) []string {
	if len(work) == 0 {
		return nil
	}

	if err := s.results.DepositMany(ctx, work); err == nil {
		ids := make([]string, len(work))
		for i, w := range work {
			ids[i] = w.ID
		}
		return ids
	} else if s.log != nil {
		s.log.Warnw("bulk deposit failed, falling back to per-item", "error", err)
	}

	var ok []string
	for _, w := range work {
		exists, err := s.results.Exists(ctx, w.ID)
		if err != nil {
			if s.log != nil {
				s.log.Errorw("duplicate check failed", "work", w.ID, "error", err)
			}
			continue
		}
		if exists {
			ok = append(ok, w.ID)
			continue
		}
		if err := s.results.Deposit(ctx, w); err != nil {
			if s.log != nil {
				s.log.Errorw("per-item deposit failed", "work", w.ID, "error", err)
			}
			continue
		}
		ok = append(ok, w.ID)
	}
	return ok
}
