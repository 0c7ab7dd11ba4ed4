package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorkspaceFile(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write workspace file: %v", err)
	}
	return path
}

const sampleWorkspace = `
workspace: chime-frb
sites: [chime, allenby]
http:
  baseurls:
    buckets: http://bucket.example:8000
    results: [http://results-a.example, http://results-b.example]
`

func TestResolveWorkspaceExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspaceFile(t, dir, "ws.yml", sampleWorkspace)

	ws, err := ResolveWorkspace(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.Name != "chime-frb" {
		t.Errorf("workspace name = %q, want chime-frb", ws.Name)
	}
	if len(ws.HTTP.BaseURLs.Buckets) != 1 || ws.HTTP.BaseURLs.Buckets[0] != "http://bucket.example:8000" {
		t.Errorf("buckets base urls = %v", ws.HTTP.BaseURLs.Buckets)
	}
	if len(ws.HTTP.BaseURLs.Results) != 2 {
		t.Errorf("results base urls = %v, want 2 entries", ws.HTTP.BaseURLs.Results)
	}
}

func TestResolveWorkspaceByNameUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	workspacesDirPath := filepath.Join(home, ".workflow", "workspaces")
	if err := os.MkdirAll(workspacesDirPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeWorkspaceFile(t, workspacesDirPath, "named.yml", sampleWorkspace)

	ws, err := ResolveWorkspace("named")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.Name != "chime-frb" {
		t.Errorf("workspace name = %q, want chime-frb", ws.Name)
	}
}

func TestResolveWorkspaceEmptyRefUsesActive(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	workspacesDirPath := filepath.Join(home, ".workflow", "workspaces")
	if err := os.MkdirAll(workspacesDirPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := PersistActive([]byte(sampleWorkspace)); err != nil {
		t.Fatalf("persist active: %v", err)
	}

	ws, err := ResolveWorkspace("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.Name != "chime-frb" {
		t.Errorf("workspace name = %q, want chime-frb", ws.Name)
	}
}

func TestResolveWorkspaceMissingNameErrors(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if _, err := ResolveWorkspace("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unresolvable workspace reference")
	}
}

func TestAllowsSite(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspaceFile(t, dir, "ws.yml", sampleWorkspace)
	ws, err := ResolveWorkspace(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ws.AllowsSite("chime") {
		t.Error("expected chime to be an allowed site")
	}
	if ws.AllowsSite("mars") {
		t.Error("did not expect mars to be an allowed site")
	}
}
