// Package buildinfo persists the ledger of the most recent assembly of an
// output directory.
package buildinfo

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Filename is the ledger's name within an assembled output directory.
const Filename = "buildinfo.toml"

// Hash is a directory fingerprint, stored as a 16-character lowercase hex
// string in the ledger.
type Hash uint64

func (h Hash) MarshalText() ([]byte, error) {
	return fmt.Appendf(nil, "%016x", uint64(h)), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 16, 64)
	if err != nil {
		return fmt.Errorf("parsing hash %q: %w", text, err)
	}
	*h = Hash(v)
	return nil
}

// Project is one ledger entry.  Name is unique within a BuildInfo.
type Project struct {
	Name      string    `toml:"name"`
	Hash      Hash      `toml:"hash"`
	BuildDate time.Time `toml:"build_date"`
}

// BuildInfo is the full ledger.
type BuildInfo struct {
	Projects []Project `toml:"projects"`
}

// Load reads the ledger at path.  Callers distinguish a missing ledger via
// errors.Is(err, fs.ErrNotExist).
func Load(path string) (*BuildInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info BuildInfo
	if err := toml.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parsing buildinfo at %q: %w", path, err)
	}
	return &info, nil
}

// Write rewrites the ledger at path in full.
func (b *BuildInfo) Write(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(b); err != nil {
		return fmt.Errorf("encoding buildinfo: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// String renders the ledger as its on-disk document.
func (b *BuildInfo) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(b); err != nil {
		return ""
	}
	return buf.String()
}

// Lookup returns the entry named name, or nil.
func (b *BuildInfo) Lookup(name string) *Project {
	if b == nil {
		return nil
	}
	for i := range b.Projects {
		if b.Projects[i].Name == name {
			return &b.Projects[i]
		}
	}
	return nil
}
