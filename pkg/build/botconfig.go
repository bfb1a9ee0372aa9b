package build

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/swz-git/bob/pkg/config"
)

// rewriteBotConfigs copies each of the project's bot descriptors into the
// build root with its settings table pointing at the extracted binaries:
// run_command is set to the windows binary's build-root-relative path (its
// absence is an error), run_command_linux likewise when a linux binary
// exists and is removed when not.  The descriptor's logo file (default
// logo.png) and optional loadout file are copied next to it when present.
//
// Sibling assets keep their source-relative name directly under the build
// root, so two descriptors in different subdirectories sharing an asset
// name will collide on the last writer.
func rewriteBotConfigs(cfg config.ProjectConfig, projectRoot, buildRoot, windowsBin, linuxBin string) error {
	projectRoot, err := canonical(projectRoot)
	if err != nil {
		return err
	}
	for _, rel := range cfg.BotConfigs {
		srcPath := filepath.Join(projectRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(srcPath); err != nil {
			return fmt.Errorf("bot config %q: %w", srcPath, err)
		}
		canonicalSrc, err := canonical(srcPath)
		if err != nil {
			return fmt.Errorf("bot config %q: %w", srcPath, err)
		}
		if !underDir(projectRoot, canonicalSrc) {
			return fmt.Errorf("bot config path %q is outside of project root %q", srcPath, projectRoot)
		}

		raw, err := os.ReadFile(canonicalSrc)
		if err != nil {
			return fmt.Errorf("reading %q: %w", srcPath, err)
		}
		var doc map[string]any
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parsing %q: %w", srcPath, err)
		}
		settings, ok := doc["settings"].(map[string]any)
		if !ok {
			return fmt.Errorf("couldn't read settings table in bot config at %q", srcPath)
		}

		if windowsBin == "" {
			return fmt.Errorf("no windows binary found for this project")
		}
		runCommand, err := filepath.Rel(buildRoot, windowsBin)
		if err != nil {
			return err
		}
		settings["run_command"] = filepath.ToSlash(runCommand)

		if linuxBin != "" {
			runCommandLinux, err := filepath.Rel(buildRoot, linuxBin)
			if err != nil {
				return err
			}
			settings["run_command_linux"] = filepath.ToSlash(runCommandLinux)
		} else {
			delete(settings, "run_command_linux")
		}

		srcDir := filepath.Dir(canonicalSrc)

		logoName, _ := settings["logo_file"].(string)
		if logoName == "" {
			logoName = "logo.png"
		}
		if err := copyIfExists(filepath.Join(srcDir, logoName), filepath.Join(buildRoot, logoName)); err != nil {
			return fmt.Errorf("copying logo file: %w", err)
		}

		if loadoutName, ok := settings["loadout_file"].(string); ok {
			if err := copyIfExists(filepath.Join(srcDir, loadoutName), filepath.Join(buildRoot, loadoutName)); err != nil {
				return fmt.Errorf("copying loadout file: %w", err)
			}
		}

		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("encoding bot config %q: %w", srcPath, err)
		}
		outPath := filepath.Join(buildRoot, filepath.Base(canonicalSrc))
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("creating file %q: %w", outPath, err)
		}
	}
	return nil
}

func underDir(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

func copyIfExists(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
