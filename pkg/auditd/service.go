// Package auditd implements the Audit daemon of spec.md section 4.6: a
// periodic scan that classifies and reconciles expired, stale, and
// orphaned Work. The audit daemon never deletes (spec.md section 9,
// Open Question c).
package auditd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chime-frb/workflow-go/pkg/bucket"
	"github.com/chime-frb/workflow-go/pkg/models"
)

// Config tunes the daemon's scan loop.
type Config struct {
	Period    time.Duration
	Buffer    time.Duration
	Pipeline  string
	Site      string
	BatchSize int

	// ActiveSteps reports whether a step still exists in its owning
	// pipeline configuration, used to classify orphans. A nil func
	// disables orphan detection.
	ActiveSteps func(ctx context.Context, pipeline, group string) bool
}

// Counts tallies one cycle's classifications for metrics.
type Counts struct {
	Expired       int
	StaleFailures int
	Orphaned      int
}

// Service runs the periodic classify-and-reconcile loop.
type Service struct {
	bucket *bucket.Client
	cfg    Config
	log    *zap.SugaredLogger
}

// New builds a Service.
func New(b *bucket.Client, cfg Config, log *zap.SugaredLogger) *Service {
	return &Service{bucket: b, cfg: cfg, log: log}
}

// Run loops until ctx is cancelled, running one cycle per Config.Period.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		if _, err := s.Cycle(ctx); err != nil && s.log != nil {
			s.log.Errorw("audit cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

var nonTerminalStatuses = []models.Status{models.StatusQueued, models.StatusRunning}

// Cycle scans both non-terminal and terminal-failure Work, classifying
// and reconciling per spec.md section 4.6. A per-item update failure is
// logged and never propagated (spec.md section 7); it is not counted
// separately, and the item still counts under its classification.
func (s *Service) Cycle(ctx context.Context) (Counts, error) {
	var counts Counts
	now := time.Now()

	active, err := s.bucket.List(ctx, s.cfg.Pipeline, s.cfg.Site, nonTerminalStatuses, s.cfg.BatchSize)
	if err != nil {
		return counts, err
	}
	for _, w := range active {
		if s.isOrphan(ctx, w) {
			w.Status = models.StatusCancelled
			s.update(ctx, w)
			counts.Orphaned++
			continue
		}
		if s.isExpired(w, now) {
			w.Status = models.StatusFailure
			w.Attempt++
			s.update(ctx, w)
			counts.Expired++
		}
	}

	failures, err := s.bucket.List(ctx, s.cfg.Pipeline, s.cfg.Site, []models.Status{models.StatusFailure}, s.cfg.BatchSize)
	if err != nil {
		return counts, err
	}
	for _, w := range failures {
		if s.isStale(w, now) {
			if s.log != nil {
				s.log.Warnw("stale failure flagged for operator attention", "work", w.ID, "pipeline", w.Pipeline)
			}
			counts.StaleFailures++
		}
	}

	return counts, nil
}

// isExpired reports whether a withdrawn, still non-terminal Work has
// been running longer than timeout+buffer (spec.md section 4.6).
func (s *Service) isExpired(w *models.Work, now time.Time) bool {
	if w.Start == 0 {
		return false
	}
	deadline := time.Unix(int64(w.Start), 0).Add(time.Duration(w.Timeout) * time.Second).Add(s.cfg.Buffer)
	return now.After(deadline)
}

// isStale reports whether a terminal failure has sat beyond the buffer
// without being transferred.
func (s *Service) isStale(w *models.Work, now time.Time) bool {
	if w.Stop == 0 {
		return false
	}
	deadline := time.Unix(int64(w.Stop), 0).Add(s.cfg.Buffer)
	return now.After(deadline)
}

// isOrphan reports whether w belongs to a pipeline-configuration group
// whose owning step no longer exists.
func (s *Service) isOrphan(ctx context.Context, w *models.Work) bool {
	if s.cfg.ActiveSteps == nil || len(w.Group) == 0 {
		return false
	}
	for _, group := range w.Group {
		if !s.cfg.ActiveSteps(ctx, w.Pipeline, group) {
			return true
		}
	}
	return false
}

func (s *Service) update(ctx context.Context, w *models.Work) {
	if err := s.bucket.Update(ctx, w); err != nil && s.log != nil {
		s.log.Errorw("audit update failed", "work", w.ID, "error", err)
	}
}
