// Package config loads bob project manifests and expands their dependency
// globs into the ordered list of projects to build.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/swz-git/bob/pkg/builders"
)

// Manifest is one bob.toml document.
type Manifest struct {
	// Dependencies are glob patterns, relative to the manifest's directory,
	// naming further manifests to build.
	Dependencies []string `toml:"dependencies"`

	Configs []ProjectConfig `toml:"config"`
}

// ProjectConfig declares a single buildable project.
type ProjectConfig struct {
	ProjectName string          `toml:"project_name"`
	BotConfigs  []string        `toml:"bot_configs"`
	Builder     builders.Config `toml:"builder_config"`
}

// Entry pairs a project declaration with the manifest it came from, so the
// caller can resolve project-relative paths.
type Entry struct {
	ManifestPath string
	Project      ProjectConfig
}

// Load reads and parses a single manifest.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bob config at %q: %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing bob config at %q: %w", path, err)
	}
	for _, cfg := range m.Configs {
		if cfg.ProjectName == "" {
			return nil, fmt.Errorf("bob config at %q: config is missing project_name", path)
		}
	}
	return &m, nil
}

// Resolve loads the manifest at path and walks its dependency globs depth
// first, returning every declared project in discovery order.  A project's
// own declarations come before those of its dependencies.  Duplicates are
// permitted; each occurrence is built.
func Resolve(path string) ([]Entry, error) {
	var entries []Entry
	if err := resolve(path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func resolve(path string, entries *[]Entry) error {
	m, err := Load(path)
	if err != nil {
		return err
	}

	for _, cfg := range m.Configs {
		*entries = append(*entries, Entry{ManifestPath: path, Project: cfg})
	}

	parent := filepath.Dir(path)
	for _, pattern := range m.Dependencies {
		matches, err := doublestar.FilepathGlob(filepath.Join(parent, filepath.FromSlash(pattern)))
		if err != nil {
			return fmt.Errorf("dependency glob %q in %q: %w", pattern, path, err)
		}
		sort.Strings(matches)
		for _, dep := range matches {
			if err := resolve(dep, entries); err != nil {
				return err
			}
		}
	}
	return nil
}
