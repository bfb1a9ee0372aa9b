package buildinfo_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/swz-git/bob/pkg/buildinfo"
)

func TestRoundTrip(t *testing.T) {
	d := t.TempDir()
	path := filepath.Join(d, buildinfo.Filename)

	date := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	info := &buildinfo.BuildInfo{
		Projects: []buildinfo.Project{
			{Name: "alpha", Hash: 0xdeadbeef, BuildDate: date},
			{Name: "beta", Hash: 0x0123456789abcdef, BuildDate: date},
		},
	}
	if err := info.Write(path); err != nil {
		t.Fatal(err)
	}

	got, err := buildinfo.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(info, got); diff != "" {
		t.Error(diff)
	}
}

func TestHashHexEncoding(t *testing.T) {
	d := t.TempDir()
	path := filepath.Join(d, buildinfo.Filename)

	info := &buildinfo.BuildInfo{
		Projects: []buildinfo.Project{
			{Name: "alpha", Hash: 0xbeef, BuildDate: time.Now().UTC()},
		},
	}
	if err := info.Write(path); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `hash = "000000000000beef"`) {
		t.Errorf("hash not encoded as 16-char hex:\n%s", raw)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := buildinfo.Load(filepath.Join(t.TempDir(), buildinfo.Filename))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	info := &buildinfo.BuildInfo{
		Projects: []buildinfo.Project{
			{Name: "alpha", Hash: 1},
			{Name: "beta", Hash: 2},
		},
	}

	if p := info.Lookup("beta"); p == nil || p.Hash != 2 {
		t.Errorf("Lookup(beta) = %v", p)
	}
	if p := info.Lookup("gamma"); p != nil {
		t.Errorf("Lookup(gamma) = %v, want nil", p)
	}

	var nilInfo *buildinfo.BuildInfo
	if p := nilInfo.Lookup("alpha"); p != nil {
		t.Errorf("nil receiver Lookup = %v, want nil", p)
	}
}
