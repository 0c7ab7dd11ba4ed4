package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chime-frb/workflow-go/pkg/models"
)

func writeTempArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp artifact: %v", err)
	}
	return path
}

// TestArchiveCopyLeavesBothCopies exercises spec.md section 4.5: a copy
// mode must leave the artifact at both its original location and the
// archive destination.
func TestArchiveCopyLeavesBothCopies(t *testing.T) {
	srcDir := t.TempDir()
	archiveDir := t.TempDir()
	src := writeTempArtifact(t, srcDir, "plot.png", "data")

	backend := NewPosix(archiveDir)
	if err := Apply(context.Background(), backend, models.ArchiveCopy, "pipeline-a", "id-1", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should still exist after copy: %v", err)
	}
	dest := filepath.Join(archiveDir, DestKey("pipeline-a", "id-1", src))
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination should exist after copy: %v", err)
	}
}

// TestArchiveMoveDeletesSource exercises the move policy: source is
// removed, destination exists.
func TestArchiveMoveDeletesSource(t *testing.T) {
	srcDir := t.TempDir()
	archiveDir := t.TempDir()
	src := writeTempArtifact(t, srcDir, "result.json", "{}")

	backend := NewPosix(archiveDir)
	if err := Apply(context.Background(), backend, models.ArchiveMove, "pipeline-a", "id-1", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone after move, stat err = %v", err)
	}
	dest := filepath.Join(archiveDir, DestKey("pipeline-a", "id-1", src))
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination should exist after move: %v", err)
	}
}

// TestArchiveDeleteRemovesSourceOnly exercises the delete policy: no
// destination is ever written.
func TestArchiveDeleteRemovesSourceOnly(t *testing.T) {
	srcDir := t.TempDir()
	archiveDir := t.TempDir()
	src := writeTempArtifact(t, srcDir, "scratch.txt", "x")

	backend := NewPosix(archiveDir)
	if err := Apply(context.Background(), backend, models.ArchiveDelete, "pipeline-a", "id-1", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone after delete, stat err = %v", err)
	}
	entries, _ := os.ReadDir(archiveDir)
	if len(entries) != 0 {
		t.Errorf("delete should never write into the archive root, found %v", entries)
	}
}

// TestArchiveBypassTouchesNeither exercises the bypass policy: the
// artifact is left exactly where it was, nothing is written anywhere.
func TestArchiveBypassTouchesNeither(t *testing.T) {
	srcDir := t.TempDir()
	archiveDir := t.TempDir()
	src := writeTempArtifact(t, srcDir, "product.dat", "payload")

	backend := NewPosix(archiveDir)
	if err := Apply(context.Background(), backend, models.ArchiveBypass, "pipeline-a", "id-1", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should be untouched by bypass: %v", err)
	}
	entries, _ := os.ReadDir(archiveDir)
	if len(entries) != 0 {
		t.Errorf("bypass should never write into the archive root, found %v", entries)
	}
}

func TestApplyUnrecognizedModeIsPolicyError(t *testing.T) {
	backend := NewPosix(t.TempDir())
	err := Apply(context.Background(), backend, models.ArchiveMode("unknown"), "p", "id", "/dev/null")
	if err == nil {
		t.Fatal("expected a policy error")
	}
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Errorf("expected *PolicyError, got %T", err)
	}
}

func TestPosixCopyMissingSourceErrors(t *testing.T) {
	backend := NewPosix(t.TempDir())
	if err := backend.Copy(context.Background(), "/no/such/file", "x/y"); err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}

func TestPosixDeleteToleratesMissingFile(t *testing.T) {
	backend := NewPosix(t.TempDir())
	if err := backend.Delete(context.Background(), filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("delete of a missing file should not error: %v", err)
	}
}
