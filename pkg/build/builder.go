// Package build orchestrates project builds: it decides which projects need
// rebuilding, drives the container driver, unpacks the built artifacts and
// rewrites bot descriptors into the assembled output tree.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swz-git/bob/pkg/buildinfo"
	"github.com/swz-git/bob/pkg/config"
	"github.com/swz-git/bob/pkg/dirhash"
	"github.com/swz-git/bob/pkg/docker"
)

// Builder assembles an output tree from the projects a root manifest
// declares.
type Builder struct {
	outDir  string
	driver  docker.Driver
	verbose bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithDriver overrides the container driver.  Used by tests and by callers
// embedding bob as a library.
func WithDriver(d docker.Driver) Option {
	return func(b *Builder) { b.driver = d }
}

// WithVerbose enables progress logging to stderr.
func WithVerbose(v bool) Option {
	return func(b *Builder) { b.verbose = v }
}

// New creates a Builder writing into outDir.
func New(outDir string, options ...Option) *Builder {
	b := &Builder{
		outDir: outDir,
		driver: docker.CLIDriver{},
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// Build runs every project the manifest at manifestPath declares, directly
// or through dependency manifests.  Projects run serially in discovery
// order; the ledger is rewritten after each one so a crash loses at most the
// project in flight.
func (b *Builder) Build(ctx context.Context, manifestPath string) error {
	if _, err := os.Stat(manifestPath); err != nil {
		return fmt.Errorf("bob config %q: %w", manifestPath, err)
	}

	entries, err := config.Resolve(manifestPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return fmt.Errorf("creating out dir %q: %w", b.outDir, err)
	}
	outDir, err := canonical(b.outDir)
	if err != nil {
		return err
	}
	ledgerPath := filepath.Join(outDir, buildinfo.Filename)

	// A missing or unparseable previous ledger just means everything
	// rebuilds.
	prev, _ := buildinfo.Load(ledgerPath)

	info := &buildinfo.BuildInfo{}
	for _, entry := range entries {
		if err := b.buildProject(ctx, outDir, entry, prev, info); err != nil {
			return err
		}
		if err := info.Write(ledgerPath); err != nil {
			return fmt.Errorf("writing buildinfo: %w", err)
		}
	}

	b.logf("copy of %s:\n%s", buildinfo.Filename, info.String())
	b.logf("done")
	return nil
}

func (b *Builder) buildProject(ctx context.Context, outDir string, entry config.Entry, prev, info *buildinfo.BuildInfo) error {
	cfg := entry.Project

	projectRoot, err := canonical(filepath.Dir(entry.ManifestPath))
	if err != nil {
		return fmt.Errorf("project root of %q: %w", entry.ManifestPath, err)
	}
	buildRoot := filepath.Join(outDir, cfg.ProjectName)

	// A ledger entry only counts if the project's output subdirectory is
	// still on disk; otherwise the ledger is stale and the project rebuilds.
	var prevProject *buildinfo.Project
	if dirExists(buildRoot) {
		prevProject = prev.Lookup(cfg.ProjectName)
	}

	hash, err := dirhash.Hash(projectRoot)
	if err != nil {
		return fmt.Errorf("hashing %q: %w", projectRoot, err)
	}
	b.logf("%s - hash: %016x", projectRoot, hash)

	if prevProject != nil && prevProject.Hash == buildinfo.Hash(hash) {
		b.logf("old hash matched, won't rebuild %s", cfg.ProjectName)
		info.Projects = append(info.Projects, *prevProject)
		return nil
	}

	b.logf("no hash match, building %s", cfg.ProjectName)

	dockerfile, err := cfg.Builder.Dockerfile(projectRoot)
	if err != nil {
		return fmt.Errorf("generating dockerfile for %q: %w", cfg.ProjectName, err)
	}

	tarBytes, err := b.driver.Build(ctx, dockerfile, projectRoot)
	if err != nil {
		return fmt.Errorf("building project %q: %w", cfg.ProjectName, err)
	}

	if err := os.RemoveAll(buildRoot); err != nil {
		return fmt.Errorf("clearing project dir %q: %w", buildRoot, err)
	}
	if err := os.MkdirAll(buildRoot, 0o755); err != nil {
		return fmt.Errorf("creating project dir %q: %w", buildRoot, err)
	}

	b.logf("decompressing built binaries for %s", cfg.ProjectName)
	windowsBin, linuxBin, err := extractArtifacts(tarBytes, buildRoot)
	if err != nil {
		return fmt.Errorf("extracting artifacts for %q: %w", cfg.ProjectName, err)
	}

	if err := rewriteBotConfigs(cfg, projectRoot, buildRoot, windowsBin, linuxBin); err != nil {
		return fmt.Errorf("building bot configs for project %q: %w", cfg.ProjectName, err)
	}

	info.Projects = append(info.Projects, buildinfo.Project{
		Name:      cfg.ProjectName,
		Hash:      buildinfo.Hash(hash),
		BuildDate: time.Now().UTC(),
	})
	return nil
}

func (b *Builder) logf(format string, args ...any) {
	if !b.verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
