//go:build windows

package diff

import "io/fs"

// Executable bits don't exist here; diffs built on this host carry no flags
// and flags in applied diffs are ignored.
func fileFlags(info fs.FileInfo) *Flags { return nil }

func applyFlags(path string, flags *Flags) error { return nil }
