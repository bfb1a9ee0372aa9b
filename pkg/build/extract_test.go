package build

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// elfBytes returns a minimal buffer the magic sniffer classifies as an ELF
// executable.
func elfBytes() []byte {
	b := make([]byte, 64)
	copy(b, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	return b
}

// peBytes returns a minimal buffer the magic sniffer classifies as a PE.
func peBytes() []byte {
	b := make([]byte, 64)
	copy(b, []byte{'M', 'Z'})
	return b
}

type tarEntry struct {
	name string
	mode int64
	data []byte
}

func makeTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, e := range entries {
		err := w.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Size:     int64(len(e.data)),
			Typeflag: tar.TypeReg,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractArtifacts(t *testing.T) {
	d := t.TempDir()
	tarBytes := makeTar(t, []tarEntry{
		{"target/x86_64-linux/foo", 0o755, elfBytes()},
		{"target/x86_64-windows/foo.exe", 0o644, peBytes()},
		{"data/readme.txt", 0o644, []byte("hi")},
	})

	win, lin, err := extractArtifacts(tarBytes, d)
	if err != nil {
		t.Fatal(err)
	}

	if want := filepath.Join(d, "target", "x86_64-windows", "foo.exe"); win != want {
		t.Errorf("windows binary = %q, want %q", win, want)
	}
	if want := filepath.Join(d, "target", "x86_64-linux", "foo"); lin != want {
		t.Errorf("linux binary = %q, want %q", lin, want)
	}

	content, err := os.ReadFile(filepath.Join(d, "data", "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hi" {
		t.Errorf("unexpected content %q", content)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(lin)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("linux binary mode = %o, want 755", info.Mode().Perm())
		}
	}
}

func TestExtractArtifactsLastMatchWins(t *testing.T) {
	d := t.TempDir()
	tarBytes := makeTar(t, []tarEntry{
		{"first.exe", 0o644, peBytes()},
		{"second.exe", 0o644, peBytes()},
	})

	win, _, err := extractArtifacts(tarBytes, d)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(d, "second.exe"); win != want {
		t.Errorf("windows binary = %q, want %q", win, want)
	}
}

func TestExtractArtifactsSkipsLibraries(t *testing.T) {
	d := t.TempDir()
	tarBytes := makeTar(t, []tarEntry{
		{"libhelper", 0o755, elfBytes()},
		{"helper.so", 0o755, elfBytes()},
	})

	win, lin, err := extractArtifacts(tarBytes, d)
	if err != nil {
		t.Fatal(err)
	}
	if win != "" || lin != "" {
		t.Errorf("classified library as binary: win=%q lin=%q", win, lin)
	}
}

func TestExtractArtifactsRejectsTraversal(t *testing.T) {
	d := t.TempDir()
	tarBytes := makeTar(t, []tarEntry{
		{"../evil.txt", 0o644, []byte("x")},
	})

	if _, _, err := extractArtifacts(tarBytes, d); err == nil {
		t.Error("expected error for escaping entry")
	}
}

func TestExtractArtifactsRefusesOverwrite(t *testing.T) {
	d := t.TempDir()
	if err := os.WriteFile(filepath.Join(d, "a.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	tarBytes := makeTar(t, []tarEntry{
		{"a.txt", 0o644, []byte("new")},
	})

	if _, _, err := extractArtifacts(tarBytes, d); err == nil {
		t.Error("expected error for pre-existing destination")
	}
}

func TestExtractArtifactsTruncated(t *testing.T) {
	d := t.TempDir()
	tarBytes := makeTar(t, []tarEntry{
		{"a.txt", 0o644, []byte("content")},
	})

	if _, _, err := extractArtifacts(tarBytes[:len(tarBytes)-700], d); err == nil {
		t.Error("expected error for truncated tar")
	}
}
