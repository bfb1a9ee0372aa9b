package build

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/swz-git/bob/pkg/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func botProject(t *testing.T) (projectRoot, buildRoot string) {
	t.Helper()
	projectRoot = t.TempDir()
	buildRoot = t.TempDir()
	writeFile(t, filepath.Join(projectRoot, "bot.toml"), `
[settings]
name = "MyBot"
run_command_linux = "stale"
`)
	return projectRoot, buildRoot
}

func readSettings(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	settings, ok := doc["settings"].(map[string]any)
	if !ok {
		t.Fatalf("no settings table in %s", path)
	}
	return settings
}

func TestRewriteBotConfigs(t *testing.T) {
	projectRoot, buildRoot := botProject(t)
	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{"bot.toml"}}

	win := filepath.Join(buildRoot, "target", "w", "foo.exe")
	lin := filepath.Join(buildRoot, "target", "l", "foo")
	err := rewriteBotConfigs(cfg, projectRoot, buildRoot, win, lin)
	if err != nil {
		t.Fatal(err)
	}

	settings := readSettings(t, filepath.Join(buildRoot, "bot.toml"))
	if got := settings["run_command"]; got != "target/w/foo.exe" {
		t.Errorf("run_command = %v", got)
	}
	if got := settings["run_command_linux"]; got != "target/l/foo" {
		t.Errorf("run_command_linux = %v", got)
	}
	if got := settings["name"]; got != "MyBot" {
		t.Errorf("unrelated setting lost: name = %v", got)
	}
}

func TestRewriteBotConfigsNoLinuxBinary(t *testing.T) {
	projectRoot, buildRoot := botProject(t)
	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{"bot.toml"}}

	win := filepath.Join(buildRoot, "foo.exe")
	if err := rewriteBotConfigs(cfg, projectRoot, buildRoot, win, ""); err != nil {
		t.Fatal(err)
	}

	settings := readSettings(t, filepath.Join(buildRoot, "bot.toml"))
	if _, present := settings["run_command_linux"]; present {
		t.Error("stale run_command_linux not removed")
	}
}

func TestRewriteBotConfigsNoWindowsBinary(t *testing.T) {
	projectRoot, buildRoot := botProject(t)
	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{"bot.toml"}}

	err := rewriteBotConfigs(cfg, projectRoot, buildRoot, "", "")
	if err == nil || !strings.Contains(err.Error(), "no windows binary") {
		t.Errorf("expected no-windows-binary error, got %v", err)
	}
}

func TestRewriteBotConfigsRejectsEscape(t *testing.T) {
	projectRoot := t.TempDir()
	buildRoot := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "bot.toml"), "[settings]\n")

	rel, err := filepath.Rel(projectRoot, filepath.Join(outside, "bot.toml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{filepath.ToSlash(rel)}}

	err = rewriteBotConfigs(cfg, projectRoot, buildRoot, filepath.Join(buildRoot, "a.exe"), "")
	if err == nil || !strings.Contains(err.Error(), "outside of project root") {
		t.Errorf("expected escape rejection, got %v", err)
	}
}

func TestRewriteBotConfigsMissingSettings(t *testing.T) {
	projectRoot := t.TempDir()
	buildRoot := t.TempDir()
	writeFile(t, filepath.Join(projectRoot, "bot.toml"), `name = "top-level only"`)
	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{"bot.toml"}}

	err := rewriteBotConfigs(cfg, projectRoot, buildRoot, filepath.Join(buildRoot, "a.exe"), "")
	if err == nil || !strings.Contains(err.Error(), "settings") {
		t.Errorf("expected settings error, got %v", err)
	}
}

func TestRewriteBotConfigsCopiesAssets(t *testing.T) {
	projectRoot, buildRoot := botProject(t)
	writeFile(t, filepath.Join(projectRoot, "bot.toml"), `
[settings]
logo_file = "icon.png"
loadout_file = "loadout.toml"
`)
	writeFile(t, filepath.Join(projectRoot, "icon.png"), "png bytes")
	writeFile(t, filepath.Join(projectRoot, "loadout.toml"), "loadout = true")

	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{"bot.toml"}}
	if err := rewriteBotConfigs(cfg, projectRoot, buildRoot, filepath.Join(buildRoot, "a.exe"), ""); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"icon.png", "loadout.toml"} {
		if _, err := os.Stat(filepath.Join(buildRoot, name)); err != nil {
			t.Errorf("asset %s not copied: %v", name, err)
		}
	}
}

func TestRewriteBotConfigsDefaultLogoMissing(t *testing.T) {
	projectRoot, buildRoot := botProject(t)
	cfg := config.ProjectConfig{ProjectName: "proj", BotConfigs: []string{"bot.toml"}}

	// No logo.png in the project; the copy is skipped without error.
	if err := rewriteBotConfigs(cfg, projectRoot, buildRoot, filepath.Join(buildRoot, "a.exe"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(buildRoot, "logo.png")); !os.IsNotExist(err) {
		t.Errorf("unexpected logo.png state: %v", err)
	}
}
