package update

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExecutableMode is applied to every executable the updater writes.
const ExecutableMode os.FileMode = 0o755

// BinaryReplacer writes an executable onto a target path. The content is
// copied to a temporary sibling first and renamed over the target, so the
// target is never observed half-written.
type BinaryReplacer struct {
	targetPath string
}

// NewBinaryReplacer creates a replacer for targetPath.
func NewBinaryReplacer(targetPath string) *BinaryReplacer {
	return &BinaryReplacer{targetPath: targetPath}
}

// Replace copies src over the target.
func (r *BinaryReplacer) Replace(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	dir, base := filepath.Split(r.targetPath)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".new-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", r.targetPath, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", r.targetPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, ExecutableMode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, r.targetPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", r.targetPath, err)
	}
	committed = true
	return nil
}

// copyExecutable is the default copy step of the orchestrator.
func copyExecutable(src, dst string) error {
	return NewBinaryReplacer(dst).Replace(src)
}
