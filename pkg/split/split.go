// Package split partitions an assembled output tree into per-platform
// sibling trees, keeping only each platform's native binaries (or a
// fallback platform's when none exist).
package split

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/swz-git/bob/pkg/buildinfo"
)

type platform struct {
	name         string
	targetGlob   string
	fallbackGlob string
}

var platforms = []platform{
	{name: "x86_64-linux", targetGlob: "*x86*linux*", fallbackGlob: "*x86*windows*"},
	{name: "x86_64-windows", targetGlob: "*x86*windows*"},
}

// Split creates one `<dir>_<platform>` sibling per supported platform,
// containing the ledger, each project's platform-matching target
// directories and the loose files at each project's root (descriptors,
// logos and the like).  Existing non-empty destinations are refused.  A
// project with no matching targets for a platform is reported and skipped;
// the other projects still split.
func Split(srcDir string) error {
	if _, err := os.Stat(srcDir); err != nil {
		return fmt.Errorf("directory %q: %w", srcDir, err)
	}
	srcDir, err := filepath.Abs(srcDir)
	if err != nil {
		return err
	}

	for _, p := range platforms {
		if err := splitPlatform(srcDir, p); err != nil {
			return err
		}
	}
	return nil
}

func splitPlatform(srcDir string, p platform) error {
	dstDir := filepath.Join(filepath.Dir(srcDir), fmt.Sprintf("%s_%s", filepath.Base(srcDir), p.name))
	if nonEmptyDir(dstDir) {
		return fmt.Errorf("directory already exists, refusing to overwrite: %q", dstDir)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}

	info, err := buildinfo.Load(filepath.Join(srcDir, buildinfo.Filename))
	if err != nil {
		return fmt.Errorf("failed to read buildinfo: %w", err)
	}
	if err := copyFile(filepath.Join(srcDir, buildinfo.Filename), filepath.Join(dstDir, buildinfo.Filename)); err != nil {
		return fmt.Errorf("failed to copy buildinfo: %w", err)
	}

	for _, project := range info.Projects {
		srcProj := filepath.Join(srcDir, project.Name)
		dstProj := filepath.Join(dstDir, project.Name)

		if _, err := os.Stat(srcProj); err != nil {
			return fmt.Errorf("project directory doesn't exist: %q", srcProj)
		}
		if err := os.MkdirAll(dstProj, 0o755); err != nil {
			return err
		}

		targets, err := matchTargets(srcProj, p.targetGlob)
		if err != nil {
			return err
		}
		if len(targets) == 0 && p.fallbackGlob != "" {
			fmt.Fprintf(os.Stderr, "project %s has no matching native binaries, falling back to %s\n", project.Name, p.fallbackGlob)
			targets, err = matchTargets(srcProj, p.fallbackGlob)
			if err != nil {
				return err
			}
		}
		if len(targets) == 0 {
			fmt.Fprintf(os.Stderr, "project %s has no matching native or fallback binaries for platform %s\n", project.Name, p.name)
			continue
		}

		for _, target := range targets {
			if err := copyAll(target, filepath.Join(dstProj, filepath.Base(target))); err != nil {
				return fmt.Errorf("copying %q: %w", target, err)
			}
		}

		// Loose files at the project root: descriptors, logos, loadouts.
		// Anything that is neither there nor in a matched target dir is
		// dropped from the split tree.
		des, err := os.ReadDir(srcProj)
		if err != nil {
			return fmt.Errorf("failed to read project directory: %w", err)
		}
		for _, de := range des {
			if !de.Type().IsRegular() {
				continue
			}
			if err := copyFile(filepath.Join(srcProj, de.Name()), filepath.Join(dstProj, de.Name())); err != nil {
				return fmt.Errorf("failed to copy file: %w", err)
			}
		}
	}
	return nil
}

// matchTargets globs pattern against the entries of projDir, walking into
// nested target directories the way the build lays them out.
func matchTargets(projDir, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(projDir, "**", pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	direct, err := doublestar.FilepathGlob(filepath.Join(projDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range append(direct, matches...) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func nonEmptyDir(path string) bool {
	des, err := os.ReadDir(path)
	return err == nil && len(des) > 0
}

func copyAll(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	des, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, de := range des {
		if err := copyAll(filepath.Join(src, de.Name()), filepath.Join(dst, de.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
