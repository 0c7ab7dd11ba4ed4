// Package archive implements the Transfer daemon's per-artifact-class
// policy of spec.md section 4.5: bypass/copy/move/delete/upload against
// a POSIX filesystem or an S3-compatible object store.
package archive

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// PolicyError is fatal to the current daemon batch (spec.md section 7):
// an unknown mode, or a missing archive root/bucket configuration.
type PolicyError struct {
	Mode   models.ArchiveMode
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("archive policy error: mode %q: %s", e.Mode, e.Reason)
}

// Backend moves, copies, deletes, or uploads one artifact. POSIX and S3
// implementations live in posix.go and s3.go.
type Backend interface {
	Copy(ctx context.Context, src, destKey string) error
	Move(ctx context.Context, src, destKey string) error
	Delete(ctx context.Context, src string) error
}

// PermissionSetter is implemented by backends whose archived artifacts
// live on a POSIX filesystem reachable for the optional group-permission
// step of spec.md section 6. Object-store backends do not implement it,
// and the step is skipped for them.
type PermissionSetter interface {
	SetGroupPermissions(destKey, group string) error
}

// DestKey computes `<pipeline>/<id>/<filename>`, the path scheme shared
// by every backend (spec.md section 6).
func DestKey(pipeline, id, artifactPath string) string {
	return filepath.Join(pipeline, id, filepath.Base(artifactPath))
}

// Apply runs mode against one artifact path. Afterward the artifact is
// gone from its original location for move/delete and still there for
// copy/bypass/upload (an upload leaves its source in place per spec.md
// section 4.5; only `move`/`delete` remove it).
func Apply(ctx context.Context, backend Backend, mode models.ArchiveMode, pipeline, id, artifactPath string) error {
	destKey := DestKey(pipeline, id, artifactPath)

	switch mode {
	case models.ArchiveBypass:
		return nil
	case models.ArchiveCopy:
		return backend.Copy(ctx, artifactPath, destKey)
	case models.ArchiveMove:
		return backend.Move(ctx, artifactPath, destKey)
	case models.ArchiveUpload:
		return backend.Copy(ctx, artifactPath, destKey)
	case models.ArchiveDelete:
		return backend.Delete(ctx, artifactPath)
	default:
		return &PolicyError{Mode: mode, Reason: "unrecognized archive mode"}
	}
}
