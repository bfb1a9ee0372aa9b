package build

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"
)

// extractArtifacts unpacks the regular files of tarBytes into buildRoot and
// returns the absolute paths of the classified primary binaries: a PE whose
// name ends in ".exe" counts as the windows binary, an ELF executable whose
// name neither starts with "lib" nor ends with "so" counts as the linux
// binary.  When several files match a rule the last one in archive order
// wins.  Either result may be empty.
//
// Entry modes are propagated from the tar header (zero if absent).
// Destinations must not already exist; tar entries escaping buildRoot are
// rejected.
func extractArtifacts(tarBytes []byte, buildRoot string) (windowsBin, linuxBin string, err error) {
	r := tar.NewReader(bytes.NewReader(tarBytes))
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			return windowsBin, linuxBin, nil
		}
		if err != nil {
			return "", "", fmt.Errorf("reading tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			// Directories are created implicitly; symlinks and other
			// special entries are skipped.
			continue
		}

		name := hdr.Name
		destPath := filepath.Join(buildRoot, filepath.FromSlash(name))
		rel, err := filepath.Rel(buildRoot, destPath)
		if err != nil {
			return "", "", fmt.Errorf("cannot get relative path: %w", err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", "", fmt.Errorf("tar entry %q escapes build root", name)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return "", "", fmt.Errorf("cannot ensure parent: %w", err)
		}

		content, err := io.ReadAll(r)
		if err != nil {
			return "", "", fmt.Errorf("reading tar entry %q: %w", name, err)
		}

		base := path.Base(name)
		switch sniff(content) {
		case matchers.TypeExe:
			if strings.HasSuffix(base, ".exe") {
				windowsBin = destPath
			}
		case matchers.TypeElf:
			if !strings.HasPrefix(base, "lib") && !strings.HasSuffix(base, "so") {
				linuxBin = destPath
			}
		}

		mode := fs.FileMode(hdr.Mode) & fs.ModePerm
		if err := writeNewFile(destPath, mode, content); err != nil {
			return "", "", fmt.Errorf("writing %q: %w", destPath, err)
		}
	}
}

func sniff(content []byte) types.Type {
	t, err := filetype.Match(content)
	if err != nil {
		return filetype.Unknown
	}
	return t
}

// writeNewFile refuses to overwrite an existing file; extraction targets
// must be clean.
func writeNewFile(target string, perm fs.FileMode, content []byte) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// The create path is subject to the umask; force the header mode.
	return os.Chmod(target, perm)
}
