// Package docker drives containerized project builds through the docker CLI.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ErrNoDocker indicates the docker executable is not available in PATH.
var ErrNoDocker = errors.New("docker not found in PATH")

// Driver builds a project from a rendered dockerfile and returns the tar
// archive the build image writes to its standard output.
type Driver interface {
	Build(ctx context.Context, dockerfile string, projectRoot string) ([]byte, error)
}

// CLIDriver shells out to the docker CLI: it builds an image from the given
// dockerfile with projectRoot as context, then runs it and captures stdout.
// Built images are tagged bob_build:<hex> and intentionally left behind;
// image caching is the runtime's job.
type CLIDriver struct {
	Verbose bool
}

// Build implements Driver.
func (d CLIDriver) Build(ctx context.Context, dockerfile string, projectRoot string) ([]byte, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, ErrNoDocker
	}

	dockerfilePath := filepath.Join(os.TempDir(), "Dockerfile-"+uid())
	f, err := os.OpenFile(dockerfilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating temporary dockerfile: %w", err)
	}
	defer os.Remove(dockerfilePath)
	if _, err = f.WriteString(dockerfile); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing temporary dockerfile: %w", err)
	}
	if err = f.Close(); err != nil {
		return nil, err
	}

	tag := fmt.Sprintf("bob_build:%x", xxhash.Sum64String(dockerfile))

	build := exec.CommandContext(ctx, "docker", "build", "-f", dockerfilePath, "-t", tag, ".")
	build.Dir = projectRoot
	build.Stdout = os.Stderr
	build.Stderr = os.Stderr
	if d.Verbose {
		fmt.Fprintf(os.Stderr, "docker build -f %s -t %s .\n", dockerfilePath, tag)
	}
	if err := build.Run(); err != nil {
		return nil, fmt.Errorf("docker build failed for %q: %w", projectRoot, err)
	}

	var stdout bytes.Buffer
	run := exec.CommandContext(ctx, "docker", "run", "--rm", tag)
	run.Dir = projectRoot
	run.Stdout = &stdout
	run.Stderr = os.Stderr
	if err := run.Run(); err != nil {
		return nil, fmt.Errorf("docker run failed for %q: %w", tag, err)
	}

	return stdout.Bytes(), nil
}
