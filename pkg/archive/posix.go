package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Posix archives artifacts under <archive-root>/<destKey>, the layout
// spec.md section 6 names: `<root>/<pipeline>/<id>/{results.json,plots/,products/}`.
// Missing source files are fatal for copy/move (spec.md section 4.5).
type Posix struct {
	Root string
}

// NewPosix builds a Posix backend rooted at root.
func NewPosix(root string) *Posix {
	return &Posix{Root: root}
}

func (p *Posix) destPath(destKey string) string {
	return filepath.Join(p.Root, destKey)
}

// Copy duplicates src to destKey under Root, creating parent directories
// as needed.
func (p *Posix) Copy(ctx context.Context, src, destKey string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("copy: source missing: %w", err)
	}
	dest := p.destPath(destKey)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// Move relocates src to destKey under Root.
func (p *Posix) Move(ctx context.Context, src, destKey string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("move: source missing: %w", err)
	}
	dest := p.destPath(destKey)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// Delete removes src outright.
func (p *Posix) Delete(ctx context.Context, src string) error {
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// SetGroupPermissions implements PermissionSetter by applying the
// workspace's configured group ACL to an already-archived destKey.
func (p *Posix) SetGroupPermissions(destKey, group string) error {
	return ApplyPermissions(p.destPath(destKey), group)
}

// ApplyPermissions runs the optional ACL step of spec.md section 6:
// `setfacl -R -m g:{group}:r {path}`, falling back to `chgrp`/`chmod`
// when setfacl is unavailable (grounded on lifecycle/archive.py's
// permissions()).
func ApplyPermissions(path, group string) error {
	if group == "" {
		return nil
	}

	if _, err := exec.LookPath("setfacl"); err == nil {
		cmd := exec.Command("setfacl", "-R", "-m", fmt.Sprintf("g:%s:r", group), path)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("setfacl: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	if out, err := exec.Command("chgrp", "-R", group, path).CombinedOutput(); err != nil {
		return fmt.Errorf("chgrp: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if out, err := exec.Command("chmod", "-R", "g+r", path).CombinedOutput(); err != nil {
		return fmt.Errorf("chmod: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
