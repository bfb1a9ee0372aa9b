// Package walker enumerates a directory tree the way the rest of bob sees
// it: hidden entries are skipped, and gitignore rules discovered during the
// traversal are honored.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Entry is a single visited path.  Path is absolute; Info is the result of
// stat-ing it at walk time.
type Entry struct {
	Path string
	Info fs.FileInfo
}

// scope is a compiled ignore file together with the directory its patterns
// are relative to.
type scope struct {
	base string
	ign  *gitignore.GitIgnore
}

// Walk returns every non-hidden, non-ignored entry below dir in lexical
// order.  dir itself is not included.  Directories matched by an ignore rule
// are pruned along with their contents, as are directories whose basename
// begins with a dot.
//
// Three ignore sources apply, mirroring git: the user's global excludes file,
// a .gitignore at dir, and .gitignore files in any subdirectory (scoped to
// that subtree).
func Walk(dir string) ([]Entry, error) {
	scopes, err := rootScopes(dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if ignored(scopes, dir, path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			sub := filepath.Join(path, ".gitignore")
			if _, serr := os.Stat(sub); serr == nil {
				ign, cerr := gitignore.CompileIgnoreFile(sub)
				if cerr != nil {
					return fmt.Errorf("ignore file %q: %w", sub, cerr)
				}
				scopes = append(scopes, scope{base: path, ign: ign})
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: path, Info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// rootScopes compiles the global excludes file and the root .gitignore, if
// either exists.
func rootScopes(dir string) ([]scope, error) {
	var scopes []scope
	if global := globalIgnorePath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			ign, cerr := gitignore.CompileIgnoreFile(global)
			if cerr != nil {
				return nil, fmt.Errorf("ignore file %q: %w", global, cerr)
			}
			scopes = append(scopes, scope{base: dir, ign: ign})
		}
	}
	root := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(root); err == nil {
		ign, cerr := gitignore.CompileIgnoreFile(root)
		if cerr != nil {
			return nil, fmt.Errorf("ignore file %q: %w", root, cerr)
		}
		scopes = append(scopes, scope{base: dir, ign: ign})
	}
	return scopes, nil
}

// globalIgnorePath returns the path of the user's global git excludes file,
// or "" if it cannot be determined.
func globalIgnorePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "git", "ignore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "git", "ignore")
}

func ignored(scopes []scope, root, path string, isDir bool) bool {
	for _, s := range scopes {
		rel, err := filepath.Rel(s.base, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if s.ign.MatchesPath(rel) {
			return true
		}
		if isDir && s.ign.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}
