package config

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chime-frb/workflow-go/pkg/models"
)

func workspacesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".workflow", "workspaces")
}

func activeWorkspacePath() string {
	return filepath.Join(workspacesDir(), "active.yml")
}

// ResolveWorkspace implements spec.md section 6's precedence: an explicit
// filesystem path, then an HTTP(S) URL, then a name looked up under
// ~/.workflow/workspaces/. An empty ref falls back to the persisted
// active workspace; its absence is a fatal startup error.
func ResolveWorkspace(ref string) (*models.Workspace, error) {
	var (
		raw []byte
		err error
	)

	switch {
	case ref == "":
		raw, err = os.ReadFile(activeWorkspacePath())
		if err != nil {
			return nil, fmt.Errorf("no active workspace: %w", err)
		}
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		raw, err = fetchWorkspace(ref)
	case fileExists(ref):
		raw, err = os.ReadFile(ref)
	default:
		raw, err = os.ReadFile(filepath.Join(workspacesDir(), ref+".yml"))
	}
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %q: %w", ref, err)
	}

	var ws models.Workspace
	if err := yaml.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("parse workspace %q: %w", ref, err)
	}
	return &ws, nil
}

func fetchWorkspace(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch workspace: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// PersistActive writes raw, an already resolved workspace document, as
// the active workspace, mirroring the source's write.workspace behavior.
func PersistActive(raw []byte) error {
	dir := workspacesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist active workspace: %w", err)
	}
	if err := os.WriteFile(activeWorkspacePath(), raw, 0o644); err != nil {
		return fmt.Errorf("persist active workspace: %w", err)
	}
	return nil
}
