package archive

import (
	"archive/zip"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

type entry struct {
	name    string
	content string
	mode    fs.FileMode
}

// writeZip creates a zip file in a temp dir. Names ending in "/" are
// directory entries.
func writeZip(t *testing.T, entries []entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}
		if strings.HasSuffix(e.name, "/") {
			mode |= fs.ModeDir
		}
		fh.SetMode(mode)
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("CreateHeader(%s): %v", e.name, err)
		}
		if e.content != "" {
			if _, err := w.Write([]byte(e.content)); err != nil {
				t.Fatalf("Write(%s): %v", e.name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file Close: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

func TestExtract(t *testing.T) {
	src := writeZip(t, []entry{
		{name: "README.md", content: "# hello"},
		{name: "bin/"},
		{name: "bin/strata", content: "binary", mode: 0o755},
		{name: "docs/guide/intro.md", content: "intro"},
	})
	dest := filepath.Join(t.TempDir(), "out")

	if err := Extract(src, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got := readFile(t, filepath.Join(dest, "README.md")); got != "# hello" {
		t.Errorf("README.md = %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "docs", "guide", "intro.md")); got != "intro" {
		t.Errorf("intro.md = %q", got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "bin", "strata"))
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("mode = %o, want 0755", info.Mode().Perm())
		}
	}
}

func TestExtractStripSingleRoot(t *testing.T) {
	src := writeZip(t, []entry{
		{name: "repo-main/"},
		{name: "repo-main/go.mod", content: "module x"},
		{name: "repo-main/repo-main", content: "same name as root"},
		{name: "repo-main/internal/a.go", content: "package a"},
	})
	dest := t.TempDir()

	if err := Extract(src, dest, StripSingleRoot()); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got := readFile(t, filepath.Join(dest, "go.mod")); got != "module x" {
		t.Errorf("go.mod = %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "internal", "a.go")); got != "package a" {
		t.Errorf("a.go = %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "repo-main")); got != "same name as root" {
		t.Errorf("nested file named like the root = %q", got)
	}
}

func TestExtractStripSingleRootKeepsMultipleRoots(t *testing.T) {
	tests := []struct {
		name    string
		entries []entry
		want    string
	}{
		{
			name: "two top-level directories",
			entries: []entry{
				{name: "a/one.txt", content: "1"},
				{name: "b/two.txt", content: "2"},
			},
			want: filepath.Join("a", "one.txt"),
		},
		{
			name: "top-level file",
			entries: []entry{
				{name: "root/one.txt", content: "1"},
				{name: "LICENSE", content: "mit"},
			},
			want: filepath.Join("root", "one.txt"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeZip(t, tt.entries)
			dest := t.TempDir()
			if err := Extract(src, dest, StripSingleRoot()); err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(dest, tt.want)); err != nil {
				t.Errorf("expected %s to keep its prefix: %v", tt.want, err)
			}
		})
	}
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"parent traversal", "../evil.txt"},
		{"nested traversal", "ok/../../evil.txt"},
		{"absolute", "/etc/evil.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeZip(t, []entry{{name: tt.entry, content: "x"}})
			parent := t.TempDir()
			dest := filepath.Join(parent, "out")

			err := Extract(src, dest)
			if !errors.Is(err, ErrUnsafePath) {
				t.Fatalf("Extract() error = %v, want ErrUnsafePath", err)
			}
			if _, statErr := os.Stat(filepath.Join(parent, "evil.txt")); !os.IsNotExist(statErr) {
				t.Error("file escaped the destination directory")
			}
		})
	}
}

func TestExtractInvalidArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(src, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Extract(src, t.TempDir()); err == nil {
		t.Error("expected error for invalid archive")
	}
	if err := Extract(filepath.Join(t.TempDir(), "missing.zip"), t.TempDir()); err == nil {
		t.Error("expected error for missing archive")
	}
}
