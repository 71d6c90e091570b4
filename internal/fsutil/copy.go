// Package fsutil holds filesystem helpers shared by commands.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// ErrNotEmpty is returned when a destination directory already has content.
var ErrNotEmpty = errors.New("destination is not empty")

// CopyFile copies a file from src to dst, keeping its permission bits.
func CopyFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return nil
}

// CopyDir recursively copies src into dst. Entries whose base name is in
// skip are left out at every level. Symlinks are recreated, not followed.
// It returns the number of files copied.
func CopyDir(src, dst string, skip ...string) (int, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !srcInfo.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", src)
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read source directory: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if slices.Contains(skip, entry.Name()) {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			n, err := CopyDir(srcPath, dstPath, skip...)
			copied += n
			if err != nil {
				return copied, err
			}
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return copied, fmt.Errorf("failed to read link %s: %w", srcPath, err)
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return copied, fmt.Errorf("failed to create link %s: %w", dstPath, err)
			}
		case entry.Type().IsRegular():
			if err := CopyFile(srcPath, dstPath); err != nil {
				return copied, fmt.Errorf("%s: %w", srcPath, err)
			}
			copied++
		}
	}
	return copied, nil
}

// EnsureEmptyDir succeeds when dir does not exist or is an empty directory.
func EnsureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrNotEmpty, dir)
	}
	return nil
}
