//go:build !windows

package diff

import (
	"io/fs"
	"os"
)

// fileFlags captures the executable bit from a file's mode.
func fileFlags(info fs.FileInfo) *Flags {
	return &Flags{Executable: info.Mode()&0o111 != 0}
}

// applyFlags sets or clears the file's three execute bits to match flags,
// preserving the other mode bits.
func applyFlags(path string, flags *Flags) error {
	if flags == nil {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode()
	if flags.Executable {
		mode |= 0o111
	} else {
		mode &^= 0o111
	}
	return os.Chmod(path, mode)
}
