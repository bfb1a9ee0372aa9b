// Package diff produces and applies compact binary deltas between two
// directory trees.  A diff is a set of per-path entries: directories to
// ensure, identical-file markers, raw file payloads and bsdiff patches,
// optionally carrying an executable flag on POSIX hosts.
package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
	"golang.org/x/sync/errgroup"

	"github.com/swz-git/bob/pkg/walker"
)

// Kind discriminates diff entries.
type Kind uint8

const (
	KindDir Kind = iota + 1
	KindFile
)

// State describes how a file entry mutates its target.
type State uint8

const (
	// Identical marks a file as present and byte-equal; applying it is a
	// no-op beyond the flags.
	Identical State = iota + 1
	// Raw carries the file's full new content.
	Raw
	// Patch carries a bsdiff delta from the old content to the new.
	Patch
)

// Flags carries POSIX file metadata.  Absent on non-POSIX hosts.
type Flags struct {
	Executable bool
}

// Entry is one element of a DirDiff.  Path is relative, slash-separated and
// normalized (no "..", no leading separator).
type Entry struct {
	Kind  Kind
	Path  string
	State State  // file entries only
	Data  []byte // Raw payload or Patch delta
	Flags *Flags
}

// DirDiff is the delta between two trees.  Entry order is unspecified.
type DirDiff struct {
	Entries []Entry
}

// Build walks newDir and produces the delta that turns oldDir into newDir.
// Per-path decisions run on a worker pool; entries land in walk order but
// callers must not rely on any particular order.  Content equality is
// decided by 64-bit hash comparison, accepting the vanishing collision
// risk.
func Build(oldDir, newDir string) (*DirDiff, error) {
	oldDir, err := canonical(oldDir)
	if err != nil {
		return nil, err
	}
	newDir, err = canonical(newDir)
	if err != nil {
		return nil, err
	}

	walked, err := walker.Walk(newDir)
	if err != nil {
		return nil, err
	}

	results := make([]*Entry, len(walked))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, w := range walked {
		g.Go(func() error {
			entry, err := buildEntry(oldDir, newDir, w)
			if err != nil {
				return err
			}
			results[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &DirDiff{}
	for _, e := range results {
		if e != nil {
			d.Entries = append(d.Entries, *e)
		}
	}
	return d, nil
}

func buildEntry(oldDir, newDir string, w walker.Entry) (*Entry, error) {
	rel, err := filepath.Rel(newDir, w.Path)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	if w.Info.IsDir() {
		return &Entry{Kind: KindDir, Path: rel}, nil
	}
	if !w.Info.Mode().IsRegular() {
		// Symlinks and other special entries are skipped.
		return nil, nil
	}

	newData, err := os.ReadFile(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %q: %w", w.Path, err)
	}

	// Absent old files read as empty.
	oldData, err := os.ReadFile(filepath.Join(oldDir, filepath.FromSlash(rel)))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %q: %w", rel, err)
		}
		oldData = nil
	}

	entry := &Entry{Kind: KindFile, Path: rel, Flags: fileFlags(w.Info)}

	switch {
	case xxhash.Sum64(newData) == xxhash.Sum64(oldData):
		entry.State = Identical
	case len(oldData) == 0:
		entry.State = Raw
		entry.Data = newData
	default:
		patch, err := bsdiff.Bytes(oldData, newData)
		if err != nil {
			return nil, fmt.Errorf("diffing %q: %w", rel, err)
		}
		entry.State = Patch
		entry.Data = patch
	}
	return entry, nil
}

// Apply reconciles dir with the diff in place.  Phase one walks the
// existing tree, patching, overwriting or keeping matching entries and,
// when deleteMissing is set, removing paths the diff doesn't mention.
// Phase two creates whatever the walk didn't consume.  A Patch or
// Identical entry whose pre-image is missing from dir is reported to
// stderr and skipped; everything else proceeds.
//
// Application is deliberately single threaded and not transactional: a
// midway failure leaves a partially reconciled tree.
func (d *DirDiff) Apply(dir string, deleteMissing bool) error {
	dir, err := canonical(dir)
	if err != nil {
		return err
	}

	remaining := make([]Entry, len(d.Entries))
	copy(remaining, d.Entries)

	walked, err := walker.Walk(dir)
	if err != nil {
		return err
	}

	// Paths under directories removed mid-walk are skipped via prefix.
	var removedDirs []string

	for _, w := range walked {
		rel, err := filepath.Rel(dir, w.Path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if underRemoved(removedDirs, rel) {
			continue
		}

		switch {
		case w.Info.IsDir():
			if i := indexOf(remaining, KindDir, rel); i >= 0 {
				remaining = append(remaining[:i], remaining[i+1:]...)
			} else if deleteMissing {
				if err := os.RemoveAll(w.Path); err != nil {
					return fmt.Errorf("removing %q: %w", w.Path, err)
				}
				removedDirs = append(removedDirs, rel)
			}
		case w.Info.Mode().IsRegular():
			i := indexOf(remaining, KindFile, rel)
			if i < 0 {
				if deleteMissing {
					if err := os.Remove(w.Path); err != nil {
						return fmt.Errorf("removing %q: %w", w.Path, err)
					}
				}
				continue
			}
			entry := remaining[i]
			remaining = append(remaining[:i], remaining[i+1:]...)
			if err := applyToExisting(w.Path, entry); err != nil {
				return err
			}
		}
	}

	for _, entry := range remaining {
		switch {
		case entry.Kind == KindDir:
			if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(entry.Path)), 0o755); err != nil {
				return fmt.Errorf("creating %q: %w", entry.Path, err)
			}
		case entry.State == Raw:
			target := filepath.Join(dir, filepath.FromSlash(entry.Path))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent of %q: %w", entry.Path, err)
			}
			if err := os.WriteFile(target, entry.Data, 0o644); err != nil {
				return fmt.Errorf("writing %q: %w", entry.Path, err)
			}
			if err := applyFlags(target, entry.Flags); err != nil {
				return err
			}
		default:
			// The expected pre-image never showed up; continue with the
			// other entries.
			fmt.Fprintf(os.Stderr, "file at %q wasn't found but was supposed to be found, will continue anyway...\n", entry.Path)
		}
	}

	return nil
}

func applyToExisting(path string, entry Entry) error {
	switch entry.State {
	case Patch:
		oldData, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("reading %q: %w", path, err)
			}
			oldData = nil
		}
		newData, err := bspatch.Bytes(oldData, entry.Data)
		if err != nil {
			return fmt.Errorf("patching %q: %w", path, err)
		}
		if err := os.WriteFile(path, newData, 0o644); err != nil {
			return fmt.Errorf("writing %q: %w", path, err)
		}
	case Raw:
		if err := os.WriteFile(path, entry.Data, 0o644); err != nil {
			return fmt.Errorf("writing %q: %w", path, err)
		}
	case Identical:
		// No byte-level mutation.
	}
	return applyFlags(path, entry.Flags)
}

func indexOf(entries []Entry, kind Kind, rel string) int {
	for i, e := range entries {
		if e.Kind == kind && e.Path == rel {
			return i
		}
	}
	return -1
}

func underRemoved(removed []string, rel string) bool {
	for _, r := range removed {
		if strings.HasPrefix(rel, r+"/") {
			return true
		}
	}
	return false
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
