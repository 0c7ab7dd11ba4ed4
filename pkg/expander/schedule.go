package expander

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/pipelinesmgr"
)

// ValidateSchedule checks a configuration's cron expression without
// registering it, used by Expand callers that want fail-fast feedback
// before attempting deployment.
func ValidateSchedule(s *models.Schedule) error {
	if s == nil || s.Cronspec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(s.Cronspec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.Cronspec, err)
	}
	return nil
}

// RegisterSchedule deploys cfg to the pipelines manager service when it
// declares a schedule, per spec.md section 4.4 point 6. Count=0 means
// unbounded; the pipelines manager owns enforcing the count bound and
// actually firing the schedule thereafter.
func RegisterSchedule(ctx context.Context, client *pipelinesmgr.Client, cfg *models.PipelineConfiguration) (string, error) {
	if cfg.Schedule == nil {
		return "", nil
	}
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return "", err
	}
	return client.Deploy(ctx, cfg)
}
