// Package dirhash fingerprints a directory tree for the incremental-rebuild
// decision.  It uses xxhash, the same fast non-cryptographic hash the diff
// package uses for its content equality checks.
package dirhash

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/swz-git/bob/pkg/walker"
)

// Hash returns a 64-bit fingerprint of every regular, non-hidden,
// non-ignored file below dir.  The fingerprint covers each file's path
// relative to dir and its full content, in byte-lexicographic path order, so
// it is stable across filesystem enumeration order but sensitive to renames,
// edits, additions and removals.  Metadata (mtime, owner, mode) does not
// participate.
func Hash(dir string) (uint64, error) {
	dir, err := canonical(dir)
	if err != nil {
		return 0, err
	}

	entries, err := walker.Walk(dir)
	if err != nil {
		return 0, err
	}

	var rels []string
	for _, e := range entries {
		if !e.Info.Mode().IsRegular() {
			continue
		}
		p, err := canonical(e.Path)
		if err != nil {
			return 0, err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return 0, err
		}
		rels = append(rels, filepath.ToSlash(rel))
	}

	sort.Strings(rels)

	digest := xxhash.New()
	for _, rel := range rels {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return 0, fmt.Errorf("hasher couldn't read file: %w", err)
		}
		_, _ = digest.WriteString(rel)
		_, _ = digest.Write(content)
	}

	return digest.Sum64(), nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
