package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// S3Target is the per-site object-store archive destination.
type S3Target struct {
	URL     string `yaml:"url"`
	Bucket  string `yaml:"bucket"`
	Subpath string `yaml:"subpath,omitempty"`
}

// BaseURLs names the candidate endpoints per collaborator service. Each
// may be a single URL; the workspace loader normalizes both shapes into
// this slice form.
type BaseURLs struct {
	Buckets   []string `yaml:"-"`
	Results   []string `yaml:"-"`
	Pipelines []string `yaml:"-"`
	Loki      []string `yaml:"-"`
	Products  []string `yaml:"-"`
}

// WorkspaceArchiveConfig is the workspace-wide default archive policy,
// overridable per-Work via Work.Config.Archive.
type WorkspaceArchiveConfig struct {
	Results     ArchiveMode `yaml:"results,omitempty"`
	Plots       ArchiveMode `yaml:"plots,omitempty"`
	Products    ArchiveMode `yaml:"products,omitempty"`
	Permissions string      `yaml:"permissions,omitempty"`
}

// Workspace is the ambient configuration resolved once at process start
// and passed explicitly to every constructor that needs it, per
// Design Notes section 9 ("workspace as global state").
type Workspace struct {
	Name  string   `yaml:"workspace"`
	Sites []string `yaml:"sites"`

	HTTP struct {
		BaseURLs BaseURLs `yaml:"baseurls"`
	} `yaml:"http"`

	ArchivePosix map[string]string  `yaml:"-"` // site -> root path
	ArchiveS3    map[string]S3Target `yaml:"-"` // site -> object store target

	Config struct {
		Archive WorkspaceArchiveConfig `yaml:"archive"`
	} `yaml:"config"`
}

// AllowsSite reports whether site is a member of this workspace's
// declared sites.
func (w *Workspace) AllowsSite(site string) bool {
	for _, s := range w.Sites {
		if s == site {
			return true
		}
	}
	return false
}

// rawWorkspace mirrors the wire document closely enough for yaml.v3 to
// decode the fixed fields; http.baseurls.* (string-or-list) and
// archive.posix/archive.s3 (keyed by arbitrary site name) are decoded
// by hand afterwards.
type rawWorkspace struct {
	Workspace string   `yaml:"workspace"`
	Sites     []string `yaml:"sites"`
	HTTP      struct {
		BaseURLs map[string]yaml.Node `yaml:"baseurls"`
	} `yaml:"http"`
	Archive struct {
		Posix map[string]string              `yaml:"posix"`
		S3    map[string]S3Target            `yaml:"s3"`
	} `yaml:"archive"`
	Config struct {
		Archive WorkspaceArchiveConfig `yaml:"archive"`
	} `yaml:"config"`
}

// UnmarshalYAML implements the string-or-list coercion that
// http.baseurls.* requires and the dynamic site-keyed archive maps.
func (w *Workspace) UnmarshalYAML(value *yaml.Node) error {
	var raw rawWorkspace
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("workspace document: %w", err)
	}

	w.Name = raw.Workspace
	w.Sites = raw.Sites
	w.ArchivePosix = raw.Archive.Posix
	w.ArchiveS3 = raw.Archive.S3
	w.Config.Archive = raw.Config.Archive

	assign := func(node yaml.Node, dst *[]string) error {
		if node.IsZero() {
			return nil
		}
		if node.Kind == yaml.ScalarNode {
			var s string
			if err := node.Decode(&s); err != nil {
				return err
			}
			*dst = []string{s}
			return nil
		}
		return node.Decode(dst)
	}

	for key, node := range raw.HTTP.BaseURLs {
		var dst *[]string
		switch key {
		case "buckets":
			dst = &w.HTTP.BaseURLs.Buckets
		case "results":
			dst = &w.HTTP.BaseURLs.Results
		case "pipelines":
			dst = &w.HTTP.BaseURLs.Pipelines
		case "loki":
			dst = &w.HTTP.BaseURLs.Loki
		case "products":
			dst = &w.HTTP.BaseURLs.Products
		default:
			continue
		}
		if err := assign(node, dst); err != nil {
			return fmt.Errorf("workspace document: http.baseurls.%s: %w", key, err)
		}
	}

	return nil
}
