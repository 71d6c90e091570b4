// Package archive extracts zip archives onto the filesystem.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

type options struct {
	stripSingleRoot bool
}

// Option configures Extract.
type Option func(*options)

// StripSingleRoot removes the top-level directory from every entry when all
// entries share one, as hosted branch archives do (repo-main/...).
func StripSingleRoot() Option {
	return func(o *options) { o.stripSingleRoot = true }
}

// Extract unpacks the zip file at src into destDir, creating destDir if
// needed. File modes recorded in the archive are preserved.
func Extract(src, destDir string, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r, err := zip.OpenReader(src)
	if errors.Is(err, zip.ErrInsecurePath) {
		if r != nil {
			_ = r.Close()
		}
		return fmt.Errorf("%s: %w", src, ErrUnsafePath)
	}
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer func() { _ = r.Close() }()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	root := ""
	if o.stripSingleRoot {
		root = singleRoot(r.File)
	}

	for _, f := range r.File {
		name := entryName(f.Name)
		if root != "" {
			if name == root {
				continue
			}
			name = strings.TrimPrefix(name, root+"/")
		}
		if name == "" {
			continue
		}

		target, err := safeJoin(destDir, name)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if err := extractEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, target string) error {
	mode := f.Mode()
	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", target, err)
		}
		return nil
	}
	if mode&os.ModeSymlink != 0 {
		// Links could point outside the destination; materialize nothing.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s from archive: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	// OpenFile applies the umask; restore the recorded bits.
	if err := os.Chmod(target, perm); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", target, err)
	}
	return nil
}

// entryName normalizes an archive path to forward slashes without a
// trailing slash.
func entryName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimSuffix(name, "/")
}

func singleRoot(files []*zip.File) string {
	root := ""
	for _, f := range files {
		name := entryName(f.Name)
		if name == "" {
			continue
		}
		first, _, nested := strings.Cut(name, "/")
		if !nested && !f.FileInfo().IsDir() {
			return ""
		}
		if root == "" {
			root = first
		} else if root != first {
			return ""
		}
	}
	return root
}

func safeJoin(destDir, name string) (string, error) {
	if strings.HasPrefix(name, "/") || filepath.VolumeName(name) != "" {
		return "", ErrUnsafePath
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == ".." {
			return "", ErrUnsafePath
		}
	}
	return filepath.Join(destDir, filepath.FromSlash(name)), nil
}
